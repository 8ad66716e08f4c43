package nn

import (
	"fmt"

	"github.com/born-ml/kiln/internal/tensor"
)

// GradientRegistry maps trainable layer names to their gradient tensors.
//
// It is built once when a model is compiled. The stored references point at
// each Parameter's Grad, which layers overwrite in place, so the registry
// never needs refreshing between steps.
type GradientRegistry struct {
	names  []string
	layers map[string]Trainable
	grads  map[string][]*tensor.Tensor
}

// NewGradientRegistry registers layers in order. Panics on duplicate names.
func NewGradientRegistry(layers []Trainable) *GradientRegistry {
	r := &GradientRegistry{
		names:  make([]string, 0, len(layers)),
		layers: make(map[string]Trainable, len(layers)),
		grads:  make(map[string][]*tensor.Tensor, len(layers)),
	}
	for _, l := range layers {
		name := l.Name()
		if _, dup := r.layers[name]; dup {
			panic(fmt.Sprintf("gradient registry: duplicate layer name %q", name))
		}
		params := l.Parameters()
		grads := make([]*tensor.Tensor, len(params))
		for i, p := range params {
			grads[i] = p.Grad
		}
		r.names = append(r.names, name)
		r.layers[name] = l
		r.grads[name] = grads
	}
	return r
}

// Names returns the registered layer names in model order.
func (r *GradientRegistry) Names() []string {
	return r.names
}

// Layer returns the trainable layer registered under name, or nil.
func (r *GradientRegistry) Layer(name string) Trainable {
	return r.layers[name]
}

// Gradients returns the gradient tensors of the named layer, ordered like
// its Parameters.
func (r *GradientRegistry) Gradients(name string) []*tensor.Tensor {
	return r.grads[name]
}

// Len returns the number of registered layers.
func (r *GradientRegistry) Len() int {
	return len(r.names)
}
