package optim

import (
	"github.com/born-ml/kiln/internal/nn"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule without momentum:
//
//	update = lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	update = lr * velocity                          // classic
//	update = lr * (gradient + momentum * velocity)  // Nesterov
//
// Momentum helps accelerate SGD in relevant directions and dampens oscillations.
//
// Example:
//
//	opt := optim.NewSGD(optim.SGDConfig{
//	    LearningRate: 0.01,
//	    Momentum:     0.9,
//	})
type SGD struct {
	moments
	cfg SGDConfig
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LearningRate float32 // Learning rate (default: 0.01)
	Momentum     float32 // Momentum factor (default: 0.0, range: [0, 1))
	Nesterov     bool    // Use Nesterov momentum (needs Momentum > 0)
}

// DefaultSGDConfig returns plain SGD with learning rate 0.01.
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{LearningRate: 0.01}
}

// NewSGD creates a new SGD optimizer.
func NewSGD(cfg SGDConfig) *SGD {
	if cfg.LearningRate == 0 {
		cfg.LearningRate = DefaultSGDConfig().LearningRate
	}
	return &SGD{moments: newMoments("sgd", "velocity"), cfg: cfg}
}

// Name returns "sgd".
func (s *SGD) Name() string { return "sgd" }

// Config returns the resolved configuration.
func (s *SGD) Config() SGDConfig { return s.cfg }

// Attach allocates zeroed velocities.
func (s *SGD) Attach(layers []nn.Trainable) { s.attach(layers) }

// Apply performs one SGD step over every registered layer.
func (s *SGD) Apply(reg *nn.GradientRegistry) {
	lr, mu, nesterov := s.cfg.LearningRate, s.cfg.Momentum, s.cfg.Nesterov

	s.apply(reg, func(sl *slot, grad, update []float32) {
		if mu == 0 {
			for i, g := range grad {
				update[i] = lr * g
			}
			return
		}
		v := sl.moments[0].Data()
		for i, g := range grad {
			v[i] = mu*v[i] + g
			if nesterov {
				update[i] = lr * (g + mu*v[i])
			} else {
				update[i] = lr * v[i]
			}
		}
	})
}

// LearningRate returns the current learning rate.
func (s *SGD) LearningRate() float32 { return s.cfg.LearningRate }

// SetLearningRate updates the learning rate.
func (s *SGD) SetLearningRate(lr float32) { s.cfg.LearningRate = lr }

// Step returns the number of updates applied.
func (s *SGD) Step() int64 { return s.step }

// State exports the velocity buffers.
func (s *SGD) State() []StateTensor { return s.state() }

// LoadState restores velocities and the step counter.
func (s *SGD) LoadState(step int64, state []StateTensor) error { return s.load(step, state) }
