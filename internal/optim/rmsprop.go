package optim

import (
	"github.com/chewxy/math32"

	"github.com/born-ml/kiln/internal/nn"
)

// RMSprop divides each gradient by a running root mean square.
//
//	mean_square = rho * mean_square + (1-rho) * gradient²
//	step = gradient / (sqrt(mean_square) + eps)
//	velocity = momentum * velocity + step   // only when Momentum > 0
//	update = lr * (velocity or step)
type RMSprop struct {
	moments
	cfg RMSpropConfig
}

// RMSpropConfig holds configuration for RMSprop.
type RMSpropConfig struct {
	LearningRate float32 // default 0.001
	Rho          float32 // decay of the mean square (default 0.9)
	Epsilon      float32 // default 1e-8
	Momentum     float32 // default 0 (disabled)
}

// DefaultRMSpropConfig returns lr 0.001, rho 0.9, eps 1e-8, no momentum.
func DefaultRMSpropConfig() RMSpropConfig {
	return RMSpropConfig{LearningRate: 0.001, Rho: 0.9, Epsilon: 1e-8}
}

// NewRMSprop creates an RMSprop optimizer. Zero fields take their defaults.
func NewRMSprop(cfg RMSpropConfig) *RMSprop {
	def := DefaultRMSpropConfig()
	if cfg.LearningRate == 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.Rho == 0 {
		cfg.Rho = def.Rho
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = def.Epsilon
	}
	names := []string{"mean_square"}
	if cfg.Momentum > 0 {
		names = append(names, "velocity")
	}
	return &RMSprop{moments: newMoments("rmsprop", names...), cfg: cfg}
}

// Name returns "rmsprop".
func (r *RMSprop) Name() string { return "rmsprop" }

// Config returns the resolved configuration.
func (r *RMSprop) Config() RMSpropConfig { return r.cfg }

// Attach allocates zeroed mean squares (and velocities with momentum).
func (r *RMSprop) Attach(layers []nn.Trainable) { r.attach(layers) }

// Apply performs one RMSprop step over every registered layer.
func (r *RMSprop) Apply(reg *nn.GradientRegistry) {
	lr, rho, eps, mu := r.cfg.LearningRate, r.cfg.Rho, r.cfg.Epsilon, r.cfg.Momentum

	r.apply(reg, func(s *slot, grad, update []float32) {
		ms := s.moments[0].Data()
		for i, g := range grad {
			ms[i] = rho*ms[i] + (1-rho)*g*g
			step := g / (math32.Sqrt(ms[i]) + eps)
			if mu > 0 {
				v := s.moments[1].Data()
				v[i] = mu*v[i] + step
				step = v[i]
			}
			update[i] = lr * step
		}
	})
}

// LearningRate returns the current learning rate.
func (r *RMSprop) LearningRate() float32 { return r.cfg.LearningRate }

// SetLearningRate updates the learning rate.
func (r *RMSprop) SetLearningRate(lr float32) { r.cfg.LearningRate = lr }

// Step returns the number of updates applied.
func (r *RMSprop) Step() int64 { return r.step }

// State exports the mean squares and velocities.
func (r *RMSprop) State() []StateTensor { return r.state() }

// LoadState restores moments and the step counter.
func (r *RMSprop) LoadState(step int64, state []StateTensor) error { return r.load(step, state) }
