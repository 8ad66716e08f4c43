// Package optim implements optimization algorithms for training kiln models.
//
// This package provides:
//   - Optimizer interface: attach to trainable layers, apply registry gradients
//   - Adam: Adaptive Moment Estimation
//   - SGD: Stochastic Gradient Descent with momentum and Nesterov momentum
//   - RMSprop: running mean of squared gradients, optional momentum
//   - AdaGrad: accumulated squared gradients
//
// Optimizers never touch parameters directly. Apply computes one update
// tensor per parameter and hands the slice to the layer's UpdateParameters,
// which subtracts it.
//
// Example usage:
//
//	opt := optim.NewAdam(optim.DefaultAdamConfig())
//	opt.Attach(trainableLayers)
//
//	for step := range steps {
//	    model.Forward(x, true)
//	    model.Backward(target)
//	    opt.Apply(registry)
//	}
package optim

import (
	"errors"
	"fmt"

	"github.com/born-ml/kiln/internal/nn"
	"github.com/born-ml/kiln/internal/tensor"
)

// ErrStateMismatch is returned by LoadState when saved state does not fit
// the attached layers.
var ErrStateMismatch = errors.New("optimizer state does not match attached layers")

// Optimizer is the contract shared by all optimization algorithms.
//
// Lifecycle: Attach once with the model's trainable layers (moment tensors
// are allocated and zeroed), then call Apply after every backward pass.
type Optimizer interface {
	// Name returns the algorithm name ("adam", "sgd", ...).
	Name() string

	// Attach allocates zeroed state for every parameter of layers.
	// Calling it again discards previous state and resets the step counter.
	Attach(layers []nn.Trainable)

	// Apply increments the step counter and updates every registered layer
	// from its current gradients.
	Apply(reg *nn.GradientRegistry)

	// LearningRate returns the current learning rate.
	LearningRate() float32

	// SetLearningRate changes the learning rate, e.g. for scheduling.
	SetLearningRate(lr float32)

	// Step returns the number of Apply calls since Attach.
	Step() int64

	// State exports the moment tensors. The tensors are live references.
	State() []StateTensor

	// LoadState restores the step counter and copies saved moments into the
	// attached state.
	LoadState(step int64, state []StateTensor) error
}

// StateTensor is one moment tensor of one parameter.
type StateTensor struct {
	Layer  string // Layer name (e.g. "dense_1")
	Param  string // Parameter name within the layer (e.g. "weights")
	Moment string // Moment name (e.g. "m", "v", "velocity")
	Value  *tensor.Tensor
}

// Key returns "<layer>/<param>/<moment>".
func (s StateTensor) Key() string {
	return s.Layer + "/" + s.Param + "/" + s.Moment
}

// slot is the per-parameter state of an optimizer.
type slot struct {
	param   *nn.Parameter
	moments []*tensor.Tensor // ordered like moments.names
	update  *tensor.Tensor   // scratch, reused every Apply
}

// moments keeps per-layer, per-parameter state tensors for an algorithm
// with a fixed set of named moments.
type moments struct {
	algo   string
	names  []string
	order  []string
	layers map[string][]*slot
	step   int64
}

func newMoments(algo string, names ...string) moments {
	return moments{algo: algo, names: names}
}

// attach allocates zeroed moments for every parameter of layers.
func (m *moments) attach(layers []nn.Trainable) {
	m.order = m.order[:0]
	m.layers = make(map[string][]*slot, len(layers))
	m.step = 0
	for _, l := range layers {
		params := l.Parameters()
		slots := make([]*slot, len(params))
		for i, p := range params {
			s := &slot{param: p, update: tensor.ZerosLike(p.Value)}
			s.moments = make([]*tensor.Tensor, len(m.names))
			for k := range m.names {
				s.moments[k] = tensor.ZerosLike(p.Value)
			}
			slots[i] = s
		}
		m.order = append(m.order, l.Name())
		m.layers[l.Name()] = slots
	}
}

// apply advances the step counter and runs rule for every registered
// parameter. rule writes the value to subtract into update.
func (m *moments) apply(reg *nn.GradientRegistry, rule func(s *slot, grad []float32, update []float32)) {
	m.step++
	for _, name := range reg.Names() {
		slots, ok := m.layers[name]
		if !ok {
			panic(fmt.Sprintf("%s: layer %q was not attached", m.algo, name))
		}
		grads := reg.Gradients(name)
		if len(grads) != len(slots) {
			panic(fmt.Sprintf("%s: layer %q has %d gradients, attached %d parameters", m.algo, name, len(grads), len(slots)))
		}
		updates := make([]*tensor.Tensor, len(slots))
		for i, s := range slots {
			rule(s, grads[i].Data(), s.update.Data())
			updates[i] = s.update
		}
		reg.Layer(name).UpdateParameters(updates)
	}
}

func (m *moments) state() []StateTensor {
	var out []StateTensor
	for _, name := range m.order {
		for _, s := range m.layers[name] {
			for k, moment := range m.names {
				out = append(out, StateTensor{Layer: name, Param: s.param.Name, Moment: moment, Value: s.moments[k]})
			}
		}
	}
	return out
}

func (m *moments) load(step int64, state []StateTensor) error {
	dsts := make([]*tensor.Tensor, len(state))
	for i, st := range state {
		dst, err := m.lookup(st)
		if err != nil {
			return err
		}
		if dst.Len() != st.Value.Len() {
			return fmt.Errorf("%s: %s has %d elements, want %d: %w", m.algo, st.Key(), st.Value.Len(), dst.Len(), ErrStateMismatch)
		}
		dsts[i] = dst
	}
	for i, st := range state {
		copy(dsts[i].Data(), st.Value.Data())
	}
	m.step = step
	return nil
}

func (m *moments) lookup(st StateTensor) (*tensor.Tensor, error) {
	slots, ok := m.layers[st.Layer]
	if !ok {
		return nil, fmt.Errorf("%s: unknown layer in %s: %w", m.algo, st.Key(), ErrStateMismatch)
	}
	k := -1
	for i, name := range m.names {
		if name == st.Moment {
			k = i
		}
	}
	if k < 0 {
		return nil, fmt.Errorf("%s: unknown moment in %s: %w", m.algo, st.Key(), ErrStateMismatch)
	}
	for _, s := range slots {
		if s.param.Name == st.Param {
			return s.moments[k], nil
		}
	}
	return nil, fmt.Errorf("%s: unknown parameter in %s: %w", m.algo, st.Key(), ErrStateMismatch)
}
