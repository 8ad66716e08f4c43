package nn

import (
	"fmt"

	"github.com/born-ml/kiln/internal/tensor"
)

// DenseConfig configures a Dense layer.
type DenseConfig struct {
	Units     int  // Number of output features (required)
	InputSize int  // Optional input feature count when this is the first layer
	Clip      Clip // Defaults: Relative off, Absolute 2
}

// Default input-gradient bound for Dense.
const denseAbsoluteClip = 2.0

// Dense is a fully connected layer working in feature-major layout.
//
// Performs: output = (weights @ x) / sqrt(in) + bias
//
// Input shape:   [in, batch, 1, 1] feature-major, or batch-major [batch, C, H, W] with C*H*W = in
// Weights shape: [out, in, 1, 1]
// Biases shape:  [out, 1, 1, 1]
// Output shape:  [out, batch, 1, 1] (feature-major)
//
// The 1/sqrt(in) factor keeps activations of wide layers in range; the
// backward products are scaled the same way by their own inner dimension.
//
// Example:
//
//	dense := nn.NewDense(nn.DenseConfig{Units: 10})
//	// input (32, 128, 1, 1) batch-major -> output (10, 32, 1, 1)
type Dense struct {
	base
	cfg DenseConfig

	inFeatures int
	weights    *Parameter
	biases     *Parameter
	input      *tensor.Tensor // feature-major copy of the last input
}

// NewDense creates an unbuilt Dense layer. Panics if units is not positive.
func NewDense(cfg DenseConfig) *Dense {
	if cfg.Units <= 0 {
		panic(fmt.Sprintf("dense: invalid unit count %d", cfg.Units))
	}
	cfg.Clip = cfg.Clip.withDefaults(0, denseAbsoluteClip)
	return &Dense{base: base{kind: KindDense}, cfg: cfg}
}

// DeclaredInputShape returns (1, InputSize, 1, 1) when InputSize is set.
func (d *Dense) DeclaredInputShape() (tensor.Shape, bool) {
	if d.cfg.InputSize <= 0 {
		return tensor.Shape{}, false
	}
	return tensor.Shape{1, d.cfg.InputSize, 1, 1}, true
}

// Build allocates weights (He-uniform) and zero biases.
func (d *Dense) Build(ctx BuildContext) error {
	if err := d.begin(ctx); err != nil {
		return err
	}
	d.inFeatures = d.inShape.Cols()
	if d.cfg.InputSize > 0 && d.cfg.InputSize != d.inFeatures {
		return fmt.Errorf("%s: declared input size %d but receives %d features", d.name, d.cfg.InputSize, d.inFeatures)
	}
	d.outShape = tensor.Shape{1, d.cfg.Units, 1, 1}
	d.layout = FeatureMajor

	d.weights = NewParameter("weights", HeUniform(tensor.Shape{d.cfg.Units, d.inFeatures, 1, 1}, d.inFeatures, rngOrDefault(ctx.Rand)))
	d.biases = NewParameter("biases", tensor.Zeros(tensor.Shape{d.cfg.Units, 1, 1, 1}))
	d.built = true
	return nil
}

// Config returns the layer configuration with defaults applied.
func (d *Dense) Config() DenseConfig {
	return d.cfg
}

// Weights returns the weight parameter.
func (d *Dense) Weights() *Parameter { return d.weights }

// Biases returns the bias parameter.
func (d *Dense) Biases() *Parameter { return d.biases }

// Parameters returns [weights, biases].
func (d *Dense) Parameters() []*Parameter {
	return []*Parameter{d.weights, d.biases}
}

// NumParameters returns out*in + out.
func (d *Dense) NumParameters() int {
	return countParameters(d.Parameters())
}

// UpdateParameters subtracts [dWeights, dBiases] updates.
func (d *Dense) UpdateParameters(updates []*tensor.Tensor) {
	subtractUpdates(d.name, d.Parameters(), updates)
}

// Forward computes (weights @ x)/sqrt(in) + bias.
func (d *Dense) Forward(x *tensor.Tensor, _ bool) *tensor.Tensor {
	n := d.checkInput(x)
	if d.inLayout == BatchMajor {
		x = x.Transpose2D()
	}
	d.input = x

	out := d.weights.Value.MatMul(x, true)
	od, bd := out.Data(), d.biases.Value.Data()
	for r := 0; r < d.cfg.Units; r++ {
		row := od[r*n : (r+1)*n]
		for j := range row {
			row[j] += bd[r]
		}
	}

	d.output = out
	return out
}

// Backward computes Dense gradients from dOut (shape [out, batch, 1, 1]):
//
//	dWeights = (dOut @ xᵀ) / sqrt(batch)
//	dBiases  = row sums of dOut
//	dInput   = (weightsᵀ @ dOut) / sqrt(out)
//
// dInput is rescaled to the Absolute bound and returned in the layout the
// forward input arrived in.
func (d *Dense) Backward(grad *tensor.Tensor) *tensor.Tensor {
	d.checkGrad(grad)

	d.weights.Grad.CopyFrom(grad.MatMul(d.input.Transpose2D(), true))
	d.biases.Grad.CopyFrom(grad.SumRows(1))

	dX := d.weights.Value.Transpose2D().MatMul(grad, true)

	if !d.cfg.Clip.Disabled {
		clipRelative(d.weights.Grad, d.weights.Value, d.cfg.Clip.Relative)
		clipRelative(d.biases.Grad, d.biases.Value, d.cfg.Clip.Relative)
		clipNorm(dX, d.cfg.Clip.Absolute)
	}

	if d.inLayout == BatchMajor {
		n := grad.C()
		dX = dX.Transpose2D().View(d.inShape.WithBatch(n))
	}

	d.grad = dX
	return dX
}
