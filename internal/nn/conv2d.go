package nn

import (
	"fmt"

	"github.com/born-ml/kiln/internal/parallel"
	"github.com/born-ml/kiln/internal/tensor"
)

// Padding selects how Conv2D treats image borders.
type Padding int

const (
	// Valid uses only positions where the kernel fits entirely inside the input.
	Valid Padding = iota
	// Same pads the input so the output size is ceil(in / stride).
	Same
)

// String returns the padding mode name.
func (p Padding) String() string {
	if p == Same {
		return "same"
	}
	return "valid"
}

// Conv2DConfig configures a Conv2D layer.
type Conv2DConfig struct {
	Filters    int          // Number of output channels (required)
	KernelSize int          // Square kernel side (required)
	Stride     int          // Stride (default: 1)
	Padding    Padding      // Valid or Same (default: Valid)
	InputShape tensor.Shape // Optional (1, C, H, W) when this is the first layer
	Clip       Clip         // Defaults: Relative 1e-8, Absolute 5
}

// Default clipping bounds for Conv2D.
const (
	conv2DRelativeClip = 1e-8
	conv2DAbsoluteClip = 5.0
)

// Conv2D is a 2D convolutional layer over batch-major (N, C, H, W) input.
//
// Performs: output[n,f,oh,ow] = bias[f] + Σ input[n,c,ih,iw] * filters[f,c,fh,fw]
// with ih = oh*stride + fh - padTop and iw = ow*stride + fw - padLeft.
// Out-of-range input positions contribute nothing (zero padding).
//
// Input shape:   [batch, channels, height, width]
// Filters shape: [filters, channels, kernel, kernel]
// Biases shape:  [filters, 1, 1, 1]
// Output shape:  [batch, filters, out_h, out_w]
//
// Where for Valid padding:
//
//	out = (in - kernel) / stride + 1
//
// and for Same padding:
//
//	out      = ceil(in / stride)
//	padTotal = max(0, (out-1)*stride + kernel - in)
//	padTop   = padTotal / 2 (the remainder goes to the bottom/right)
//
// Example:
//
//	conv := nn.NewConv2D(nn.Conv2DConfig{Filters: 8, KernelSize: 3, Padding: nn.Same})
//	// input (32, 1, 28, 28) -> output (32, 8, 28, 28)
type Conv2D struct {
	base
	cfg Conv2DConfig

	channels        int
	outH, outW      int
	padTop, padLeft int
	filters, biases *Parameter
	input           *tensor.Tensor
	par             parallel.Config
}

// NewConv2D creates an unbuilt Conv2D layer.
// Panics on non-positive filter count, kernel size or negative stride.
func NewConv2D(cfg Conv2DConfig) *Conv2D {
	if cfg.Filters <= 0 {
		panic(fmt.Sprintf("conv2d: invalid filter count %d", cfg.Filters))
	}
	if cfg.KernelSize <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size %d", cfg.KernelSize))
	}
	if cfg.Stride < 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", cfg.Stride))
	}
	if cfg.Stride == 0 {
		cfg.Stride = 1
	}
	cfg.Clip = cfg.Clip.withDefaults(conv2DRelativeClip, conv2DAbsoluteClip)
	return &Conv2D{base: base{kind: KindConv2D}, cfg: cfg}
}

// DeclaredInputShape returns the configured input shape, if any.
func (c *Conv2D) DeclaredInputShape() (tensor.Shape, bool) {
	return c.cfg.InputShape, c.cfg.InputShape != (tensor.Shape{})
}

// ConvOutputSize returns the output extent along one axis and the padding
// applied before the first element.
func ConvOutputSize(in, kernel, stride int, padding Padding) (out, padBefore int) {
	if padding == Same {
		out = (in + stride - 1) / stride
		total := max(0, (out-1)*stride+kernel-in)
		return out, total / 2
	}
	if in < kernel {
		return 0, 0
	}
	return (in-kernel)/stride + 1, 0
}

// Build allocates He-normal filters and zero biases for the input channels.
func (c *Conv2D) Build(ctx BuildContext) error {
	if err := c.begin(ctx); err != nil {
		return err
	}
	if ctx.Layout != BatchMajor {
		return fmt.Errorf("%s: needs batch-major (N, C, H, W) input, got %s", c.name, ctx.Layout)
	}

	c.channels = c.inShape[1]
	h, w := c.inShape[2], c.inShape[3]
	k, s := c.cfg.KernelSize, c.cfg.Stride
	c.outH, c.padTop = ConvOutputSize(h, k, s, c.cfg.Padding)
	c.outW, c.padLeft = ConvOutputSize(w, k, s, c.cfg.Padding)
	if c.outH <= 0 || c.outW <= 0 {
		return fmt.Errorf("%s: kernel %d does not fit input %dx%d with %s padding", c.name, k, h, w, c.cfg.Padding)
	}
	c.outShape = tensor.Shape{1, c.cfg.Filters, c.outH, c.outW}

	fanIn := c.channels * k * k
	c.filters = NewParameter("filters", HeNormal(tensor.Shape{c.cfg.Filters, c.channels, k, k}, fanIn, rngOrDefault(ctx.Rand)))
	c.biases = NewParameter("biases", tensor.Zeros(tensor.Shape{c.cfg.Filters, 1, 1, 1}))
	c.par = ctx.Parallel
	c.built = true
	return nil
}

// Config returns the layer configuration with defaults applied.
func (c *Conv2D) Config() Conv2DConfig {
	return c.cfg
}

// Filters returns the filter parameter.
func (c *Conv2D) Filters() *Parameter { return c.filters }

// Biases returns the bias parameter.
func (c *Conv2D) Biases() *Parameter { return c.biases }

// Parameters returns [filters, biases].
func (c *Conv2D) Parameters() []*Parameter {
	return []*Parameter{c.filters, c.biases}
}

// NumParameters returns F*C*K*K + F.
func (c *Conv2D) NumParameters() int {
	return countParameters(c.Parameters())
}

// UpdateParameters subtracts [dFilters, dBiases] updates.
func (c *Conv2D) UpdateParameters(updates []*tensor.Tensor) {
	subtractUpdates(c.name, c.Parameters(), updates)
}

// Forward convolves x with the filters.
//
// Work is split by filter when the batch is small relative to the worker
// count (N <= workers/2), otherwise by image. Each unit of work writes a
// disjoint slice of the output.
func (c *Conv2D) Forward(x *tensor.Tensor, _ bool) *tensor.Tensor {
	n := c.checkInput(x)
	out := tensor.New(c.outShape.WithBatch(n))
	c.input = x

	if n <= c.par.NumWorkers()/2 {
		parallel.For(c.cfg.Filters, func(f int) {
			for img := 0; img < n; img++ {
				c.convolve(x, out, img, f)
			}
		}, c.par)
	} else {
		parallel.For(n, func(img int) {
			for f := 0; f < c.cfg.Filters; f++ {
				c.convolve(x, out, img, f)
			}
		}, c.par)
	}

	c.output = out
	return out
}

// convolve computes the (img, f) output plane.
func (c *Conv2D) convolve(x, out *tensor.Tensor, img, f int) {
	k, s := c.cfg.KernelSize, c.cfg.Stride
	h, w := c.inShape[2], c.inShape[3]
	xd, fd, od := x.Data(), c.filters.Value.Data(), out.Data()
	bias := c.biases.Value.Data()[f]

	plane := od[(img*c.cfg.Filters+f)*c.outH*c.outW:][:c.outH*c.outW]
	for oh := 0; oh < c.outH; oh++ {
		ihBase := oh*s - c.padTop
		for ow := 0; ow < c.outW; ow++ {
			iwBase := ow*s - c.padLeft
			sum := bias
			for ch := 0; ch < c.channels; ch++ {
				inPlane := xd[(img*c.channels+ch)*h*w:][:h*w]
				kernel := fd[(f*c.channels+ch)*k*k:][:k*k]
				for fh := 0; fh < k; fh++ {
					ih := ihBase + fh
					if ih < 0 || ih >= h {
						continue
					}
					for fw := 0; fw < k; fw++ {
						iw := iwBase + fw
						if iw < 0 || iw >= w {
							continue
						}
						sum += inPlane[ih*w+iw] * kernel[fh*k+fw]
					}
				}
			}
			plane[oh*c.outW+ow] = sum
		}
	}
}
