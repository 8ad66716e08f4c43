package optim

import (
	"github.com/chewxy/math32"

	"github.com/born-ml/kiln/internal/nn"
)

// AdaGrad scales each gradient by its accumulated history.
//
//	accumulator += gradient²
//	update = lr * gradient / (sqrt(accumulator) + eps)
type AdaGrad struct {
	moments
	cfg AdaGradConfig
}

// AdaGradConfig holds configuration for AdaGrad.
type AdaGradConfig struct {
	LearningRate float32 // default 0.01
	Epsilon      float32 // default 1e-8
}

// DefaultAdaGradConfig returns lr 0.01, eps 1e-8.
func DefaultAdaGradConfig() AdaGradConfig {
	return AdaGradConfig{LearningRate: 0.01, Epsilon: 1e-8}
}

// NewAdaGrad creates an AdaGrad optimizer. Zero fields take their defaults.
func NewAdaGrad(cfg AdaGradConfig) *AdaGrad {
	def := DefaultAdaGradConfig()
	if cfg.LearningRate == 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = def.Epsilon
	}
	return &AdaGrad{moments: newMoments("adagrad", "accumulator"), cfg: cfg}
}

// Name returns "adagrad".
func (a *AdaGrad) Name() string { return "adagrad" }

// Config returns the resolved configuration.
func (a *AdaGrad) Config() AdaGradConfig { return a.cfg }

// Attach allocates zeroed accumulators.
func (a *AdaGrad) Attach(layers []nn.Trainable) { a.attach(layers) }

// Apply performs one AdaGrad step over every registered layer.
func (a *AdaGrad) Apply(reg *nn.GradientRegistry) {
	lr, eps := a.cfg.LearningRate, a.cfg.Epsilon

	a.apply(reg, func(s *slot, grad, update []float32) {
		acc := s.moments[0].Data()
		for i, g := range grad {
			acc[i] += g * g
			update[i] = lr * g / (math32.Sqrt(acc[i]) + eps)
		}
	})
}

// LearningRate returns the current learning rate.
func (a *AdaGrad) LearningRate() float32 { return a.cfg.LearningRate }

// SetLearningRate updates the learning rate.
func (a *AdaGrad) SetLearningRate(lr float32) { a.cfg.LearningRate = lr }

// Step returns the number of updates applied.
func (a *AdaGrad) Step() int64 { return a.step }

// State exports the accumulators.
func (a *AdaGrad) State() []StateTensor { return a.state() }

// LoadState restores accumulators and the step counter.
func (a *AdaGrad) LoadState(step int64, state []StateTensor) error { return a.load(step, state) }
