package nn

import (
	"github.com/born-ml/kiln/internal/tensor"
)

// Clip configures gradient clipping for a trainable layer.
//
// Relative bounds a parameter gradient to Relative times the parameter's
// Frobenius norm. Absolute bounds the Frobenius norm of the input gradient
// passed to the previous layer. Zero fields take the layer's defaults;
// Disabled turns every bound off, which gradient checks rely on.
type Clip struct {
	Disabled bool
	Relative float32
	Absolute float32
}

func (c Clip) withDefaults(relative, absolute float32) Clip {
	if c.Relative == 0 {
		c.Relative = relative
	}
	if c.Absolute == 0 {
		c.Absolute = absolute
	}
	return c
}

// clipRelative rescales grad so that ||grad|| <= eps*||param||.
// A zero parameter norm leaves grad untouched.
func clipRelative(grad, param *tensor.Tensor, eps float32) {
	if eps <= 0 {
		return
	}
	limit := float64(eps) * param.FrobeniusNorm()
	norm := grad.FrobeniusNorm()
	if limit > 0 && norm > limit {
		grad.ScaleInPlace(float32(limit / norm))
	}
}

// clipNorm rescales grad so that ||grad|| <= threshold.
func clipNorm(grad *tensor.Tensor, threshold float32) {
	if threshold <= 0 {
		return
	}
	norm := grad.FrobeniusNorm()
	if norm > float64(threshold) {
		grad.ScaleInPlace(float32(float64(threshold) / norm))
	}
}
