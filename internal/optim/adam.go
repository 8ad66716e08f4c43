package optim

import (
	"github.com/chewxy/math32"

	"github.com/born-ml/kiln/internal/nn"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule, with one global step t shared by all parameters:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	update = lr * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	moments
	cfg AdamConfig
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LearningRate float32 // Learning rate (default: 0.001)
	Beta1        float32 // First moment decay (default: 0.9)
	Beta2        float32 // Second moment decay (default: 0.999)
	Epsilon      float32 // Term for numerical stability (default: 1e-8)
}

// DefaultAdamConfig returns the standard Adam hyperparameters.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{LearningRate: 0.001, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

// NewAdam creates a new Adam optimizer. Zero fields take their defaults.
func NewAdam(cfg AdamConfig) *Adam {
	def := DefaultAdamConfig()
	if cfg.LearningRate == 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.Beta1 == 0 {
		cfg.Beta1 = def.Beta1
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = def.Beta2
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = def.Epsilon
	}
	return &Adam{moments: newMoments("adam", "m", "v"), cfg: cfg}
}

// Name returns "adam".
func (a *Adam) Name() string { return "adam" }

// Config returns the resolved configuration.
func (a *Adam) Config() AdamConfig { return a.cfg }

// Attach allocates zeroed first and second moments.
func (a *Adam) Attach(layers []nn.Trainable) { a.attach(layers) }

// Apply performs one Adam step over every registered layer.
func (a *Adam) Apply(reg *nn.GradientRegistry) {
	t := float32(a.step + 1)
	b1, b2, lr, eps := a.cfg.Beta1, a.cfg.Beta2, a.cfg.LearningRate, a.cfg.Epsilon
	correction1 := 1 - math32.Pow(b1, t)
	correction2 := 1 - math32.Pow(b2, t)

	a.apply(reg, func(s *slot, grad, update []float32) {
		m, v := s.moments[0].Data(), s.moments[1].Data()
		for i, g := range grad {
			m[i] = b1*m[i] + (1-b1)*g
			v[i] = b2*v[i] + (1-b2)*g*g
			mHat := m[i] / correction1
			vHat := v[i] / correction2
			update[i] = lr * mHat / (math32.Sqrt(vHat) + eps)
		}
	})
}

// LearningRate returns the current learning rate.
func (a *Adam) LearningRate() float32 { return a.cfg.LearningRate }

// SetLearningRate updates the learning rate.
func (a *Adam) SetLearningRate(lr float32) { a.cfg.LearningRate = lr }

// Step returns the global timestep.
func (a *Adam) Step() int64 { return a.step }

// State exports "m" and "v" for every parameter.
func (a *Adam) State() []StateTensor { return a.state() }

// LoadState restores moments and the timestep.
func (a *Adam) LoadState(step int64, state []StateTensor) error { return a.load(step, state) }
