package nn

import (
	"fmt"

	"github.com/born-ml/kiln/internal/parallel"
	"github.com/born-ml/kiln/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
//
// Max pooling reduces spatial dimensions by taking the maximum value
// in each window. It has no learnable parameters.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height - poolSize) / stride + 1
//	out_width = (width - poolSize) / stride + 1
//
// Backward routes each output gradient to the input position that held the
// window maximum (first occurrence on ties); all other positions get zero.
//
// Example:
//
//	pool := nn.NewMaxPool2D(2, 2)
//	// input (32, 64, 28, 28) -> output (32, 64, 14, 14)
type MaxPool2D struct {
	base
	poolSize   int
	stride     int
	outH, outW int
	argmax     []int32 // per output element, flat offset inside its (n, c) input plane
	par        parallel.Config
}

// NewMaxPool2D creates a max pooling layer.
//
// Parameters:
//   - poolSize: Size of pooling window (square)
//   - stride: Stride for pooling; 0 selects poolSize (non-overlapping windows)
func NewMaxPool2D(poolSize, stride int) *MaxPool2D {
	if poolSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid pool size %d", poolSize))
	}
	if stride < 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	if stride == 0 {
		stride = poolSize
	}
	return &MaxPool2D{base: base{kind: KindMaxPool2D}, poolSize: poolSize, stride: stride}
}

// PoolSize returns the window size.
func (m *MaxPool2D) PoolSize() int { return m.poolSize }

// Stride returns the window stride.
func (m *MaxPool2D) Stride() int { return m.stride }

// Build computes the pooled shape.
func (m *MaxPool2D) Build(ctx BuildContext) error {
	if err := m.begin(ctx); err != nil {
		return err
	}
	if ctx.Layout != BatchMajor {
		return fmt.Errorf("%s: needs batch-major (N, C, H, W) input, got %s", m.name, ctx.Layout)
	}
	h, w := m.inShape[2], m.inShape[3]
	if h < m.poolSize || w < m.poolSize {
		return fmt.Errorf("%s: pool size %d larger than input %dx%d", m.name, m.poolSize, h, w)
	}
	m.outH = (h-m.poolSize)/m.stride + 1
	m.outW = (w-m.poolSize)/m.stride + 1
	m.outShape = tensor.Shape{1, m.inShape[1], m.outH, m.outW}
	m.par = ctx.Parallel
	m.built = true
	return nil
}

// Forward takes the window maxima and records their positions.
func (m *MaxPool2D) Forward(x *tensor.Tensor, _ bool) *tensor.Tensor {
	n := m.checkInput(x)
	channels, h, w := m.inShape[1], m.inShape[2], m.inShape[3]
	out := tensor.New(m.outShape.WithBatch(n))
	if cap(m.argmax) < out.Len() {
		m.argmax = make([]int32, out.Len())
	}
	m.argmax = m.argmax[:out.Len()]
	xd, od := x.Data(), out.Data()
	outPlane := m.outH * m.outW

	parallel.ForBatch(n, channels, func(img, ch int) {
		plane := img*channels + ch
		in := xd[plane*h*w:][:h*w]
		dst := od[plane*outPlane:][:outPlane]
		idx := m.argmax[plane*outPlane:][:outPlane]
		for oh := 0; oh < m.outH; oh++ {
			for ow := 0; ow < m.outW; ow++ {
				best := (oh*m.stride)*w + ow*m.stride
				for ph := 0; ph < m.poolSize; ph++ {
					row := (oh*m.stride + ph) * w
					for pw := 0; pw < m.poolSize; pw++ {
						if p := row + ow*m.stride + pw; in[p] > in[best] {
							best = p
						}
					}
				}
				dst[oh*m.outW+ow] = in[best]
				idx[oh*m.outW+ow] = int32(best)
			}
		}
	}, m.par)

	m.output = out
	return out
}

// Backward scatters grad onto the recorded maxima.
func (m *MaxPool2D) Backward(grad *tensor.Tensor) *tensor.Tensor {
	m.checkGrad(grad)
	n := grad.N()
	channels, h, w := m.inShape[1], m.inShape[2], m.inShape[3]
	dX := tensor.New(m.inShape.WithBatch(n))
	gd, dd := grad.Data(), dX.Data()
	outPlane := m.outH * m.outW

	parallel.ForBatch(n, channels, func(img, ch int) {
		plane := img*channels + ch
		dst := dd[plane*h*w:][:h*w]
		g := gd[plane*outPlane:][:outPlane]
		for k, p := range m.argmax[plane*outPlane:][:outPlane] {
			dst[p] += g[k]
		}
	}, m.par)

	m.grad = dX
	return dX
}
