package nn

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/born-ml/kiln/internal/tensor"
)

// Activation is an element-wise, parameter-free layer.
//
// Forward applies f to every element; Backward multiplies the incoming
// gradient by f'(x), evaluated from the cached input and output.
//
// Example:
//
//	relu := nn.NewReLU()
//	y := relu.Forward(x, true) // negative values become 0
type Activation struct {
	base
	fn    func(x float32) float32
	deriv func(x, y float32) float32
	input *tensor.Tensor
}

func newActivation(kind Kind, fn func(float32) float32, deriv func(x, y float32) float32) *Activation {
	return &Activation{base: base{kind: kind}, fn: fn, deriv: deriv}
}

// NewReLU creates max(0, x).
func NewReLU() *Activation {
	return newActivation(KindReLU,
		func(x float32) float32 { return max(x, 0) },
		func(x, _ float32) float32 {
			if x > 0 {
				return 1
			}
			return 0
		})
}

// NewLeakyReLU creates x for x > 0 and alpha*x otherwise.
// A non-positive alpha selects the default 0.01.
func NewLeakyReLU(alpha float32) *Activation {
	if alpha <= 0 {
		alpha = 0.01
	}
	return newActivation(KindLeakyReLU,
		func(x float32) float32 {
			if x > 0 {
				return x
			}
			return alpha * x
		},
		func(x, _ float32) float32 {
			if x > 0 {
				return 1
			}
			return alpha
		})
}

// NewTanh creates the hyperbolic tangent.
func NewTanh() *Activation {
	return newActivation(KindTanh, math32.Tanh,
		func(_, y float32) float32 { return 1 - y*y })
}

// NewSwish creates x * sigmoid(x).
func NewSwish() *Activation {
	return newActivation(KindSwish,
		func(x float32) float32 { return x * sigmoid(x) },
		func(x, y float32) float32 {
			s := sigmoid(x)
			return y + s*(1-y)
		})
}

// NewMish creates x * tanh(softplus(x)).
func NewMish() *Activation {
	return newActivation(KindMish,
		func(x float32) float32 { return x * math32.Tanh(softplus(x)) },
		func(x, _ float32) float32 {
			t := math32.Tanh(softplus(x))
			return t + x*(1-t*t)*sigmoid(x)
		})
}

// NewCustomActivation creates an activation from a user-supplied function
// fn and its derivative. deriv receives the input x and the output y = fn(x)
// of the same element and returns dy/dx.
//
// Example:
//
//	square := nn.NewCustomActivation(
//	    func(x float32) float32 { return x * x },
//	    func(x, _ float32) float32 { return 2 * x },
//	)
func NewCustomActivation(fn func(x float32) float32, deriv func(x, y float32) float32) *Activation {
	return newActivation(KindCustomActivation, fn, deriv)
}

// sigmoid returns 1/(1+e^-x) without overflowing for large |x|.
func sigmoid(x float32) float32 {
	if x >= 0 {
		return 1 / (1 + math32.Exp(-x))
	}
	e := math32.Exp(x)
	return e / (1 + e)
}

// softplus returns log(1+e^x).
func softplus(x float32) float32 {
	if x > 20 {
		return x
	}
	return math32.Log1p(math32.Exp(x))
}

// Build keeps the input shape and layout.
func (a *Activation) Build(ctx BuildContext) error {
	if a.fn == nil || a.deriv == nil {
		return fmt.Errorf("%s: activation needs a function and its derivative", a.kind)
	}
	if err := a.begin(ctx); err != nil {
		return err
	}
	a.built = true
	return nil
}

// Forward applies the activation element-wise.
func (a *Activation) Forward(x *tensor.Tensor, _ bool) *tensor.Tensor {
	a.checkInput(x)
	a.input = x
	a.output = x.Apply(a.fn)
	return a.output
}

// Backward returns grad * f'(x).
func (a *Activation) Backward(grad *tensor.Tensor) *tensor.Tensor {
	a.checkGrad(grad)
	dX := tensor.ZerosLike(grad)
	xd, yd, gd, dd := a.input.Data(), a.output.Data(), grad.Data(), dX.Data()
	for i := range dd {
		dd[i] = gd[i] * a.deriv(xd[i], yd[i])
	}
	a.grad = dX
	return dX
}

// Sigmoid is the logistic activation. As the last layer of a model it acts
// as a binary classification head: its fused backward with binary
// cross-entropy is output - target, and predictions threshold at 0.5.
type Sigmoid struct {
	*Activation
}

// NewSigmoid creates 1/(1+e^-x).
func NewSigmoid() *Sigmoid {
	return &Sigmoid{newActivation(KindSigmoid, sigmoid,
		func(_, y float32) float32 { return y * (1 - y) })}
}

// HeadBackward returns output - target.
func (s *Sigmoid) HeadBackward(target *tensor.Tensor) *tensor.Tensor {
	s.checkGrad(target)
	s.grad = s.output.Sub(target)
	return s.grad
}
