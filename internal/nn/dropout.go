package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/kiln/internal/tensor"
)

// Dropout zeroes a random fraction of activations during training.
//
// Surviving values are scaled by 1/(1-rate) (inverted dropout), so
// inference is the identity and needs no rescaling.
type Dropout struct {
	base
	rate float32
	rng  *rand.Rand
	mask *tensor.Tensor // nil when the last forward ran in inference mode
}

// NewDropout creates a Dropout layer. Panics unless 0 <= rate < 1.
func NewDropout(rate float32) *Dropout {
	if rate < 0 || rate >= 1 {
		panic(fmt.Sprintf("dropout: rate %v outside [0, 1)", rate))
	}
	return &Dropout{base: base{kind: KindDropout}, rate: rate}
}

// Rate returns the drop probability.
func (d *Dropout) Rate() float32 { return d.rate }

// Build keeps the input shape and takes the model's random source.
func (d *Dropout) Build(ctx BuildContext) error {
	if err := d.begin(ctx); err != nil {
		return err
	}
	d.rng = rngOrDefault(ctx.Rand)
	d.built = true
	return nil
}

// Forward applies a fresh mask when training, otherwise passes x through.
func (d *Dropout) Forward(x *tensor.Tensor, training bool) *tensor.Tensor {
	d.checkInput(x)
	if !training || d.rate == 0 {
		d.mask = nil
		d.output = x
		return x
	}

	keep := 1 / (1 - d.rate)
	d.mask = tensor.ZerosLike(x)
	md := d.mask.Data()
	for i := range md {
		if d.rng.Float32() >= d.rate {
			md[i] = keep
		}
	}
	d.output = x.Mul(d.mask)
	return d.output
}

// Backward multiplies grad by the last mask.
func (d *Dropout) Backward(grad *tensor.Tensor) *tensor.Tensor {
	d.checkGrad(grad)
	if d.mask == nil {
		d.grad = grad
	} else {
		d.grad = grad.Mul(d.mask)
	}
	return d.grad
}
