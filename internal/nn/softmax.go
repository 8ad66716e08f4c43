package nn

import (
	"github.com/chewxy/math32"

	"github.com/born-ml/kiln/internal/tensor"
)

// Softmax normalizes each sample's features into a probability
// distribution.
//
// For batch-major input a sample is a row (C*H*W values); for feature-major
// input it is a column. The maximum is subtracted before exponentiation for
// numerical stability.
//
// As the last layer of a model Softmax is a classification head: combined
// with categorical cross-entropy its backward pass is output - target. Used
// anywhere else, Backward applies the full Jacobian:
//
//	dx_i = y_i * (g_i - Σ_j g_j*y_j)
type Softmax struct {
	base
}

// NewSoftmax creates a Softmax layer.
func NewSoftmax() *Softmax {
	return &Softmax{base: base{kind: KindSoftmax}}
}

// Build keeps the input shape and layout.
func (s *Softmax) Build(ctx BuildContext) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	s.built = true
	return nil
}

// samples returns the sample count, features per sample and the stride
// between consecutive features of one sample.
func (s *Softmax) samples(x *tensor.Tensor) (n, features, stride int) {
	if s.inLayout == FeatureMajor {
		return x.C(), x.N(), x.C()
	}
	return x.N(), x.Shape().Cols(), 1
}

// offset returns where sample i starts.
func (s *Softmax) offset(i, features int) int {
	if s.inLayout == FeatureMajor {
		return i
	}
	return i * features
}

// Forward computes softmax per sample.
func (s *Softmax) Forward(x *tensor.Tensor, _ bool) *tensor.Tensor {
	s.checkInput(x)
	out := tensor.ZerosLike(x)
	xd, od := x.Data(), out.Data()
	n, features, stride := s.samples(x)

	for i := 0; i < n; i++ {
		start := s.offset(i, features)
		peak := xd[start]
		for k := 1; k < features; k++ {
			peak = max(peak, xd[start+k*stride])
		}
		var sum float32
		for k := 0; k < features; k++ {
			e := math32.Exp(xd[start+k*stride] - peak)
			od[start+k*stride] = e
			sum += e
		}
		for k := 0; k < features; k++ {
			od[start+k*stride] /= sum
		}
	}

	s.output = out
	return out
}

// Backward applies the softmax Jacobian to grad.
func (s *Softmax) Backward(grad *tensor.Tensor) *tensor.Tensor {
	s.checkGrad(grad)
	dX := tensor.ZerosLike(grad)
	gd, yd, dd := grad.Data(), s.output.Data(), dX.Data()
	n, features, stride := s.samples(grad)

	for i := 0; i < n; i++ {
		start := s.offset(i, features)
		var dot float32
		for k := 0; k < features; k++ {
			j := start + k*stride
			dot += gd[j] * yd[j]
		}
		for k := 0; k < features; k++ {
			j := start + k*stride
			dd[j] = yd[j] * (gd[j] - dot)
		}
	}

	s.grad = dX
	return dX
}

// HeadBackward returns output - target, the gradient of categorical
// cross-entropy with respect to the softmax input.
func (s *Softmax) HeadBackward(target *tensor.Tensor) *tensor.Tensor {
	s.checkGrad(target)
	s.grad = s.output.Sub(target)
	return s.grad
}
