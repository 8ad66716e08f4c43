package nn

import (
	"github.com/born-ml/kiln/internal/tensor"
)

// Flatten collapses (N, C, H, W) into (N, C*H*W, 1, 1).
//
// Feature-major input is already flat and passes through unchanged.
type Flatten struct {
	base
}

// NewFlatten creates a Flatten layer.
func NewFlatten() *Flatten {
	return &Flatten{base: base{kind: KindFlatten}}
}

// Build computes the flattened per-sample shape.
func (f *Flatten) Build(ctx BuildContext) error {
	if err := f.begin(ctx); err != nil {
		return err
	}
	f.outShape = tensor.Shape{1, f.inShape.Cols(), 1, 1}
	f.built = true
	return nil
}

// Forward reshapes x.
func (f *Flatten) Forward(x *tensor.Tensor, _ bool) *tensor.Tensor {
	n := f.checkInput(x)
	if f.inLayout == FeatureMajor {
		f.output = x
	} else {
		f.output = x.MustReshape(f.outShape.WithBatch(n))
	}
	return f.output
}

// Backward restores the input shape of grad.
func (f *Flatten) Backward(grad *tensor.Tensor) *tensor.Tensor {
	f.checkGrad(grad)
	if f.inLayout == FeatureMajor {
		f.grad = grad
	} else {
		f.grad = grad.MustReshape(f.inShape.WithBatch(grad.N()))
	}
	return f.grad
}
