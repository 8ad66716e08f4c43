package nn

import (
	"fmt"

	"github.com/born-ml/kiln/internal/parallel"
	"github.com/born-ml/kiln/internal/tensor"
)

// GlobalAveragePooling2D averages every channel over its spatial extent.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, 1, 1]
//
// The output is batch-major and can feed Dense directly.
type GlobalAveragePooling2D struct {
	base
	par parallel.Config
}

// NewGlobalAveragePooling2D creates a global average pooling layer.
func NewGlobalAveragePooling2D() *GlobalAveragePooling2D {
	return &GlobalAveragePooling2D{base: base{kind: KindGlobalAveragePooling2D}}
}

// Build collapses the spatial axes.
func (g *GlobalAveragePooling2D) Build(ctx BuildContext) error {
	if err := g.begin(ctx); err != nil {
		return err
	}
	if ctx.Layout != BatchMajor {
		return fmt.Errorf("%s: needs batch-major (N, C, H, W) input, got %s", g.name, ctx.Layout)
	}
	g.outShape = tensor.Shape{1, g.inShape[1], 1, 1}
	g.par = ctx.Parallel
	g.built = true
	return nil
}

// Forward returns the per-channel spatial mean.
func (g *GlobalAveragePooling2D) Forward(x *tensor.Tensor, _ bool) *tensor.Tensor {
	n := g.checkInput(x)
	channels, area := g.inShape[1], g.inShape[2]*g.inShape[3]
	out := tensor.New(g.outShape.WithBatch(n))
	xd, od := x.Data(), out.Data()

	parallel.ForBatch(n, channels, func(img, ch int) {
		plane := img*channels + ch
		var sum float64
		for _, v := range xd[plane*area:][:area] {
			sum += float64(v)
		}
		od[plane] = float32(sum / float64(area))
	}, g.par)

	g.output = out
	return out
}

// Backward spreads each channel gradient evenly over its plane.
func (g *GlobalAveragePooling2D) Backward(grad *tensor.Tensor) *tensor.Tensor {
	g.checkGrad(grad)
	n := grad.N()
	channels, area := g.inShape[1], g.inShape[2]*g.inShape[3]
	dX := tensor.New(g.inShape.WithBatch(n))
	gd, dd := grad.Data(), dX.Data()

	parallel.ForBatch(n, channels, func(img, ch int) {
		plane := img*channels + ch
		v := gd[plane] / float32(area)
		dst := dd[plane*area:][:area]
		for i := range dst {
			dst[i] = v
		}
	}, g.par)

	g.grad = dX
	return dX
}
