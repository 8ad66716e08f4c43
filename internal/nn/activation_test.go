package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/born-ml/kiln/internal/tensor"
)

func TestActivationValues(t *testing.T) {
	x := tensor.MustFromSlice([]float32{-2, -0.5, 0, 0.5, 2}, tensor.Shape{1, 5, 1, 1})

	tests := []struct {
		name  string
		layer Layer
		want  func(float64) float64
	}{
		{"relu", NewReLU(), func(v float64) float64 { return math.Max(v, 0) }},
		{"leaky_relu", NewLeakyReLU(0.1), func(v float64) float64 {
			if v > 0 {
				return v
			}
			return 0.1 * v
		}},
		{"sigmoid", NewSigmoid(), func(v float64) float64 { return 1 / (1 + math.Exp(-v)) }},
		{"tanh", NewTanh(), math.Tanh},
		{"swish", NewSwish(), func(v float64) float64 { return v / (1 + math.Exp(-v)) }},
		{"mish", NewMish(), func(v float64) float64 { return v * math.Tanh(math.Log1p(math.Exp(v))) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustBuild(t, tt.layer, testContext(tensor.Shape{1, 5, 1, 1}, BatchMajor))
			assert.Equal(t, tt.name+"_1", tt.layer.Name())

			y := tt.layer.Forward(x, true)
			for i, v := range x.Data() {
				assert.InDelta(t, tt.want(float64(v)), float64(y.Data()[i]), 1e-6)
			}
		})
	}
}

// TestActivationDerivatives compares Backward with fd.Derivative of the
// forward function at several points.
func TestActivationDerivatives(t *testing.T) {
	points := []float32{-3, -1.2, -0.3, 0.4, 1.1, 2.5}
	x := tensor.MustFromSlice(points, tensor.Shape{1, len(points), 1, 1})

	layers := map[string]func() Layer{
		"relu":       func() Layer { return NewReLU() },
		"leaky_relu": func() Layer { return NewLeakyReLU(0.2) },
		"sigmoid":    func() Layer { return NewSigmoid() },
		"tanh":       func() Layer { return NewTanh() },
		"swish":      func() Layer { return NewSwish() },
		"mish":       func() Layer { return NewMish() },
	}

	for name, ctor := range layers {
		t.Run(name, func(t *testing.T) {
			layer := ctor()
			mustBuild(t, layer, testContext(x.Shape(), BatchMajor))
			layer.Forward(x, true)
			dX := layer.Backward(tensor.Ones(x.Shape()))

			probe := ctor()
			mustBuild(t, probe, testContext(tensor.Shape{1, 1, 1, 1}, BatchMajor))
			f := func(v float64) float64 {
				in := tensor.Full(tensor.Shape{1, 1, 1, 1}, float32(v))
				return float64(probe.Forward(in, true).Data()[0])
			}
			for i, p := range points {
				want := fd.Derivative(f, float64(p), &fd.Settings{Formula: fd.Central, Step: 1e-2})
				assert.InDelta(t, want, float64(dX.Data()[i]), 1e-3, "x=%v", p)
			}
		})
	}
}

func TestActivationPreservesLayout(t *testing.T) {
	relu := NewReLU()
	mustBuild(t, relu, testContext(tensor.Shape{1, 4, 1, 1}, FeatureMajor))

	assert.Equal(t, FeatureMajor, relu.Layout())
	y := relu.Forward(tensor.Full(tensor.Shape{4, 3, 1, 1}, -1), true)
	assert.Equal(t, tensor.Shape{4, 3, 1, 1}, y.Shape())
	assert.Zero(t, y.Sum())
}

func TestSigmoidHead(t *testing.T) {
	s := NewSigmoid()
	mustBuild(t, s, testContext(tensor.Shape{1, 1, 1, 1}, FeatureMajor))

	out := s.Forward(tensor.MustFromSlice([]float32{0, 2}, tensor.Shape{1, 2, 1, 1}), true)
	target := BinaryTargets([]int{1, 0}, FeatureMajor)
	g := s.HeadBackward(target)

	assert.InDeltaSlice(t, []float64{float64(out.Data()[0]) - 1, float64(out.Data()[1])}, toFloat64(g.Data()), 1e-7)
	assert.Same(t, g, s.Gradient())
}

func TestSoftmaxRowsSumToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, layout := range []Layout{BatchMajor, FeatureMajor} {
		sm := NewSoftmax()
		mustBuild(t, sm, testContext(tensor.Shape{1, 5, 1, 1}, layout))

		x := tensor.RandNormal(layout.BatchShape(tensor.Shape{1, 5, 1, 1}, 3), 4, rng)
		y := sm.Forward(x, true)

		preds := Predictions(y, layout)
		var plain []int
		if layout == FeatureMajor {
			plain = x.Transpose2D().ArgmaxAxis(0)
		} else {
			plain = x.ArgmaxAxis(0)
		}
		assert.Equal(t, plain, preds, layout.String())

		for i := 0; i < 3; i++ {
			var sum float64
			for k := 0; k < 5; k++ {
				sum += float64(classProbability(y, layout, i, k))
			}
			assert.InDelta(t, 1, sum, 1e-6)
		}
	}
}

func TestSoftmaxStableForLargeInputs(t *testing.T) {
	sm := NewSoftmax()
	mustBuild(t, sm, testContext(tensor.Shape{1, 3, 1, 1}, BatchMajor))

	y := sm.Forward(tensor.MustFromSlice([]float32{1000, 1000, -1000}, tensor.Shape{1, 3, 1, 1}), true)
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0}, toFloat64(y.Data()), 1e-6)
}

func TestSoftmaxJacobianGradientCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	sm := NewSoftmax()
	mustBuild(t, sm, testContext(tensor.Shape{1, 4, 1, 1}, FeatureMajor))

	x := tensor.RandNormal(tensor.Shape{4, 3, 1, 1}, 1, rng)
	r := tensor.RandNormal(x.Shape(), 1, rng)
	sm.Forward(x, true)
	dX := sm.Backward(r).Clone()

	loss := func() float64 { return weightedSum(sm.Forward(x, true), r) }
	requireGradientsClose(t, "dInput", dX, numericGradient(x, 1e-2, loss), 1e-3)
}

func TestSoftmaxHeadBackward(t *testing.T) {
	sm := NewSoftmax()
	mustBuild(t, sm, testContext(tensor.Shape{1, 3, 1, 1}, BatchMajor))
	y := sm.Forward(tensor.Zeros(tensor.Shape{2, 3, 1, 1}), true)

	g := sm.HeadBackward(OneHot([]int{0, 2}, 3, BatchMajor))
	want := y.Sub(OneHot([]int{0, 2}, 3, BatchMajor))
	require.True(t, g.AllClose(want, 1e-7))
	assert.InDelta(t, -2.0/3.0, g.At(0, 0, 0, 0), 1e-6)
}

func toFloat64(data []float32) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}
	return out
}
