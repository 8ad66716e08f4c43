package nn

import (
	"github.com/chewxy/math32"

	"github.com/born-ml/kiln/internal/parallel"
	"github.com/born-ml/kiln/internal/tensor"
)

// BatchNormConfig configures a BatchNorm layer.
type BatchNormConfig struct {
	Momentum float32 // Running-statistics momentum (default: 0.9)
	Epsilon  float32 // Variance floor (default: 1e-5)

	// ZeroMomentum forces momentum 0, so the running statistics always
	// equal the last training batch. Momentum is ignored when set.
	ZeroMomentum bool
}

// DefaultBatchNormConfig returns momentum 0.9 and epsilon 1e-5.
func DefaultBatchNormConfig() BatchNormConfig {
	return BatchNormConfig{Momentum: 0.9, Epsilon: 1e-5}
}

// BatchNorm normalizes each channel with batch statistics during training
// and running statistics during inference.
//
// Training:
//
//	mean, var    = per-channel statistics over batch and spatial axes
//	running_mean = momentum*running_mean + (1-momentum)*mean
//	running_var  = momentum*running_var  + (1-momentum)*var
//	y            = gamma * (x-mean)/sqrt(var+eps) + beta
//
// Inference uses running_mean/running_var and mutates nothing.
//
// Batch-major input normalizes over (N, H, W) per channel C. Feature-major
// input (the output of Dense) normalizes each feature row over its samples.
//
// gamma and beta are ordinary parameters; their gradients are divided by
// the number of values per channel before the optimizer sees them.
type BatchNorm struct {
	base
	cfg BatchNormConfig

	channels    int
	gamma, beta *Parameter
	runningMean *Parameter
	runningVar  *Parameter

	xHat   *tensor.Tensor
	stdInv []float32
	par    parallel.Config
}

// NewBatchNorm creates an unbuilt BatchNorm layer.
func NewBatchNorm(cfg BatchNormConfig) *BatchNorm {
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = 1e-5
	}
	switch {
	case cfg.ZeroMomentum:
		cfg.Momentum = 0
	case cfg.Momentum <= 0:
		cfg.Momentum = 0.9
	}
	return &BatchNorm{base: base{kind: KindBatchNorm}, cfg: cfg}
}

// Build allocates gamma=1, beta=0, running mean 0 and running variance 1.
func (b *BatchNorm) Build(ctx BuildContext) error {
	if err := b.begin(ctx); err != nil {
		return err
	}
	if b.inLayout == FeatureMajor {
		b.channels = b.inShape.Cols()
	} else {
		b.channels = b.inShape[1]
	}
	shape := tensor.Shape{1, b.channels, 1, 1}
	b.gamma = NewParameter("gamma", tensor.Ones(shape))
	b.beta = NewParameter("beta", tensor.Zeros(shape))
	b.runningMean = newBuffer("running_mean", tensor.Zeros(shape))
	b.runningVar = newBuffer("running_var", tensor.Ones(shape))
	b.stdInv = make([]float32, b.channels)
	b.par = ctx.Parallel
	b.built = true
	return nil
}

// Config returns the layer configuration.
func (b *BatchNorm) Config() BatchNormConfig {
	return b.cfg
}

// Parameters returns [gamma, beta].
func (b *BatchNorm) Parameters() []*Parameter {
	return []*Parameter{b.gamma, b.beta}
}

// Buffers returns [running_mean, running_var].
func (b *BatchNorm) Buffers() []*Parameter {
	return []*Parameter{b.runningMean, b.runningVar}
}

// NumParameters returns 2*C.
func (b *BatchNorm) NumParameters() int {
	return countParameters(b.Parameters())
}

// UpdateParameters subtracts [dGamma, dBeta] updates.
func (b *BatchNorm) UpdateParameters(updates []*tensor.Tensor) {
	subtractUpdates(b.name, b.Parameters(), updates)
}

// channelView describes how the values of one channel are laid out.
type channelView struct {
	layout   Layout
	channels int
	count    int // values per channel
	spatial  int // H*W (batch-major only)
	n        int // batch size
}

func (b *BatchNorm) view(n int) channelView {
	v := channelView{layout: b.inLayout, channels: b.channels, n: n}
	if b.inLayout == FeatureMajor {
		v.count = n
	} else {
		v.spatial = b.inShape.Spatial()
		v.count = n * v.spatial
	}
	return v
}

// index returns the flat offset of the j-th value of channel c.
func (v channelView) index(c, j int) int {
	if v.layout == FeatureMajor {
		return c*v.n + j
	}
	return (j/v.spatial*v.channels+c)*v.spatial + j%v.spatial
}

// Forward normalizes x. training selects batch statistics and updates the
// running statistics.
func (b *BatchNorm) Forward(x *tensor.Tensor, training bool) *tensor.Tensor {
	n := b.checkInput(x)
	v := b.view(n)
	out := tensor.ZerosLike(x)
	xHat := tensor.ZerosLike(x)
	xd, od, hd := x.Data(), out.Data(), xHat.Data()
	gamma, beta := b.gamma.Value.Data(), b.beta.Value.Data()
	rm, rv := b.runningMean.Value.Data(), b.runningVar.Value.Data()
	mom, eps := b.cfg.Momentum, b.cfg.Epsilon

	parallel.For(b.channels, func(c int) {
		var mean, variance float32
		if training {
			var sum float64
			for j := 0; j < v.count; j++ {
				sum += float64(xd[v.index(c, j)])
			}
			mean = float32(sum / float64(v.count))
			var sq float64
			for j := 0; j < v.count; j++ {
				d := float64(xd[v.index(c, j)] - mean)
				sq += d * d
			}
			variance = float32(sq / float64(v.count))
			rm[c] = mom*rm[c] + (1-mom)*mean
			rv[c] = mom*rv[c] + (1-mom)*variance
		} else {
			mean, variance = rm[c], rv[c]
		}

		stdInv := 1 / math32.Sqrt(variance+eps)
		b.stdInv[c] = stdInv
		for j := 0; j < v.count; j++ {
			i := v.index(c, j)
			h := (xd[i] - mean) * stdInv
			hd[i] = h
			od[i] = gamma[c]*h + beta[c]
		}
	}, b.par)

	b.xHat = xHat
	b.output = out
	return out
}

// Backward computes, per channel with m values:
//
//	dGamma = Σ dOut*xHat / m
//	dBeta  = Σ dOut / m
//	dXHat  = dOut*gamma
//	dx     = stdInv * (dXHat - mean(dXHat) - xHat*mean(dXHat*xHat))
func (b *BatchNorm) Backward(grad *tensor.Tensor) *tensor.Tensor {
	b.checkGrad(grad)
	v := b.view(b.inLayout.BatchSize(grad))
	dX := tensor.ZerosLike(grad)
	gd, hd, dd := grad.Data(), b.xHat.Data(), dX.Data()
	gamma := b.gamma.Value.Data()
	dGamma, dBeta := b.gamma.Grad.Data(), b.beta.Grad.Data()
	m := float64(v.count)

	parallel.For(b.channels, func(c int) {
		var sumG, sumGH, sumD, sumDH float64
		for j := 0; j < v.count; j++ {
			i := v.index(c, j)
			g, h := float64(gd[i]), float64(hd[i])
			d := g * float64(gamma[c])
			sumG += g
			sumGH += g * h
			sumD += d
			sumDH += d * h
		}
		dGamma[c] = float32(sumGH / m)
		dBeta[c] = float32(sumG / m)

		meanD := float32(sumD / m)
		meanDH := float32(sumDH / m)
		stdInv := b.stdInv[c]
		for j := 0; j < v.count; j++ {
			i := v.index(c, j)
			dd[i] = stdInv * (gd[i]*gamma[c] - meanD - hd[i]*meanDH)
		}
	}, b.par)

	b.grad = dX
	return dX
}
