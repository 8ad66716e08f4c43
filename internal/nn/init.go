package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/kiln/internal/tensor"
)

// HeNormal initializes weights from N(0, 2/fanIn).
//
// Used for convolution filters, where fanIn = inChannels * kernel².
//
// Parameters:
//   - shape: Shape of the weight tensor
//   - fanIn: Number of inputs feeding each output unit
//   - rng: Random source (the model seed makes runs reproducible)
//
// Returns a tensor initialized with He-normal values.
func HeNormal(shape tensor.Shape, fanIn int, rng *rand.Rand) *tensor.Tensor {
	std := float32(math.Sqrt(2.0 / float64(fanIn)))
	return tensor.RandNormal(shape, std, rng)
}

// HeUniform initializes weights with (U - 0.5) * sqrt(2/fanIn), U ~ U[0, 1).
//
// Used for Dense weights.
func HeUniform(shape tensor.Shape, fanIn int, rng *rand.Rand) *tensor.Tensor {
	bound := float32(math.Sqrt(2.0 / float64(fanIn)))
	return tensor.RandUniform(shape, -0.5*bound, 0.5*bound, rng)
}

// rngOrDefault returns r, or a time-independent fallback source so that
// layers built outside a model still initialize deterministically.
func rngOrDefault(r *rand.Rand) *rand.Rand {
	if r != nil {
		return r
	}
	//nolint:gosec // Weight initialization is not security-critical.
	return rand.New(rand.NewSource(1))
}
