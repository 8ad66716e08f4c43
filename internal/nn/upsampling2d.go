package nn

import (
	"fmt"

	"github.com/born-ml/kiln/internal/parallel"
	"github.com/born-ml/kiln/internal/tensor"
)

// Upsampling2D repeats every pixel into a scale x scale block
// (nearest-neighbour upsampling).
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, height*scale, width*scale]
//
// Backward sums the gradient over each block.
//
// Example:
//
//	up := nn.NewUpsampling2D(2)
//	// input (8, 16, 7, 7) -> output (8, 16, 14, 14)
type Upsampling2D struct {
	base
	scale int
	par   parallel.Config
}

// NewUpsampling2D creates an upsampling layer with the given integer factor.
func NewUpsampling2D(scale int) *Upsampling2D {
	if scale <= 0 {
		panic(fmt.Sprintf("upsampling2d: invalid scale factor %d", scale))
	}
	return &Upsampling2D{base: base{kind: KindUpsampling2D}, scale: scale}
}

// Scale returns the upsampling factor.
func (u *Upsampling2D) Scale() int { return u.scale }

// Build computes the enlarged shape.
func (u *Upsampling2D) Build(ctx BuildContext) error {
	if err := u.begin(ctx); err != nil {
		return err
	}
	if ctx.Layout != BatchMajor {
		return fmt.Errorf("%s: needs batch-major (N, C, H, W) input, got %s", u.name, ctx.Layout)
	}
	u.outShape = tensor.Shape{1, u.inShape[1], u.inShape[2] * u.scale, u.inShape[3] * u.scale}
	u.par = ctx.Parallel
	u.built = true
	return nil
}

// Forward copies each input pixel into its output block.
func (u *Upsampling2D) Forward(x *tensor.Tensor, _ bool) *tensor.Tensor {
	n := u.checkInput(x)
	channels, h, w := u.inShape[1], u.inShape[2], u.inShape[3]
	outW := w * u.scale
	out := tensor.New(u.outShape.WithBatch(n))
	xd, od := x.Data(), out.Data()
	inPlane, outPlane := h*w, h*w*u.scale*u.scale

	parallel.ForBatch(n, channels, func(img, ch int) {
		plane := img*channels + ch
		in := xd[plane*inPlane:][:inPlane]
		dst := od[plane*outPlane:][:outPlane]
		for oh := 0; oh < h*u.scale; oh++ {
			row := in[(oh/u.scale)*w:][:w]
			for ow := 0; ow < outW; ow++ {
				dst[oh*outW+ow] = row[ow/u.scale]
			}
		}
	}, u.par)

	u.output = out
	return out
}

// Backward sums grad over every block.
func (u *Upsampling2D) Backward(grad *tensor.Tensor) *tensor.Tensor {
	u.checkGrad(grad)
	n := grad.N()
	channels, h, w := u.inShape[1], u.inShape[2], u.inShape[3]
	outW := w * u.scale
	dX := tensor.New(u.inShape.WithBatch(n))
	gd, dd := grad.Data(), dX.Data()
	inPlane, outPlane := h*w, h*w*u.scale*u.scale

	parallel.ForBatch(n, channels, func(img, ch int) {
		plane := img*channels + ch
		g := gd[plane*outPlane:][:outPlane]
		dst := dd[plane*inPlane:][:inPlane]
		for oh := 0; oh < h*u.scale; oh++ {
			row := dst[(oh/u.scale)*w:][:w]
			for ow := 0; ow < outW; ow++ {
				row[ow/u.scale] += g[oh*outW+ow]
			}
		}
	}, u.par)

	u.grad = dX
	return dX
}
