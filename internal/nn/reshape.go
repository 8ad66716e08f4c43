package nn

import (
	"fmt"

	"github.com/born-ml/kiln/internal/tensor"
)

// Reshape rearranges each sample into (channels, height, width).
//
// The element count per sample must not change. Feature-major input (the
// output of a Dense layer) is transposed to one sample per row first, so
// the layer always emits batch-major (N, C, H, W) tensors and can feed
// Conv2D after Dense.
//
// Example:
//
//	r := nn.NewReshape(1, 7, 7)
//	// Dense output (49, 32, 1, 1) -> (32, 1, 7, 7)
type Reshape struct {
	base
	target tensor.Shape
}

// NewReshape creates a layer reshaping samples to (channels, height, width).
func NewReshape(channels, height, width int) *Reshape {
	if channels <= 0 || height <= 0 || width <= 0 {
		panic(fmt.Sprintf("reshape: invalid target %dx%dx%d", channels, height, width))
	}
	return &Reshape{base: base{kind: KindReshape}, target: tensor.Shape{1, channels, height, width}}
}

// Build checks that the target holds as many elements as the input.
func (r *Reshape) Build(ctx BuildContext) error {
	if err := r.begin(ctx); err != nil {
		return err
	}
	if in, out := r.inShape.Cols(), r.target.Cols(); in != out {
		return fmt.Errorf("%s: cannot reshape %s (%d elements) to %s (%d elements)",
			r.name, r.inShape, in, r.target, out)
	}
	r.outShape = r.target
	r.layout = BatchMajor
	r.built = true
	return nil
}

// Forward reshapes x.
func (r *Reshape) Forward(x *tensor.Tensor, _ bool) *tensor.Tensor {
	n := r.checkInput(x)
	if r.inLayout == FeatureMajor {
		x = x.Transpose2D()
	}
	r.output = x.MustReshape(r.outShape.WithBatch(n))
	return r.output
}

// Backward restores the input shape and layout of grad.
func (r *Reshape) Backward(grad *tensor.Tensor) *tensor.Tensor {
	r.checkGrad(grad)
	n := grad.N()
	if r.inLayout == FeatureMajor {
		r.grad = grad.MustReshape(tensor.Shape{n, r.inShape.Cols(), 1, 1}).Transpose2D()
	} else {
		r.grad = grad.MustReshape(r.inShape.WithBatch(n))
	}
	return r.grad
}
