package nn

import (
	"github.com/born-ml/kiln/internal/tensor"
)

// Parameter is a named tensor owned by a layer together with its gradient.
//
// Value and Grad always have identical shapes. Grad is allocated once and
// overwritten (never accumulated) by every Backward call, so references to
// it stay valid for the lifetime of the layer.
//
// Example:
//
//	for _, p := range dense.Parameters() {
//	    fmt.Println(p.Name, p.Value.Shape(), p.Grad.FrobeniusNorm())
//	}
type Parameter struct {
	Name  string         // Parameter name within its layer (e.g. "weights", "filters")
	Value *tensor.Tensor // Current value
	Grad  *tensor.Tensor // Gradient from the last backward pass, nil for buffers
}

// NewParameter creates a trainable parameter with a zeroed gradient.
func NewParameter(name string, value *tensor.Tensor) *Parameter {
	return &Parameter{
		Name:  name,
		Value: value,
		Grad:  tensor.ZerosLike(value),
	}
}

// newBuffer creates a non-trainable parameter (no gradient).
func newBuffer(name string, value *tensor.Tensor) *Parameter {
	return &Parameter{Name: name, Value: value}
}

// NumElements returns the number of scalars in the parameter.
func (p *Parameter) NumElements() int {
	return p.Value.Len()
}

// countParameters sums element counts.
func countParameters(params []*Parameter) int {
	total := 0
	for _, p := range params {
		total += p.NumElements()
	}
	return total
}

// subtractUpdates applies value -= update for each parameter.
func subtractUpdates(layer string, params []*Parameter, updates []*tensor.Tensor) {
	if len(updates) != len(params) {
		panic(layer + ": update count does not match parameter count")
	}
	for i, p := range params {
		p.Value.SubInPlace(updates[i])
	}
}
