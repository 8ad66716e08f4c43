package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kiln/internal/tensor"
)

func TestNamerCountsPerKind(t *testing.T) {
	n := NewNamer()
	assert.Equal(t, "dense_1", n.Next(KindDense))
	assert.Equal(t, "conv_2d_1", n.Next(KindConv2D))
	assert.Equal(t, "dense_2", n.Next(KindDense))
	assert.Equal(t, "max_pool_2d_1", n.Next(KindMaxPool2D))
	assert.Equal(t, 2, n.Count(KindDense))
	assert.Equal(t, 0, n.Count(KindSoftmax))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "batch_norm", KindBatchNorm.String())
	assert.Equal(t, "leaky_relu", KindLeakyReLU.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}

func TestLayoutShapes(t *testing.T) {
	sample := tensor.Shape{1, 3, 2, 2}
	assert.Equal(t, tensor.Shape{5, 3, 2, 2}, BatchMajor.BatchShape(sample, 5))
	assert.Equal(t, tensor.Shape{12, 5, 1, 1}, FeatureMajor.BatchShape(sample, 5))

	x := tensor.Zeros(tensor.Shape{12, 5, 1, 1})
	assert.Equal(t, 12, BatchMajor.BatchSize(x))
	assert.Equal(t, 5, FeatureMajor.BatchSize(x))
}

func TestForwardBeforeBuildPanics(t *testing.T) {
	assert.PanicsWithValue(t, "relu: forward called before build", func() {
		NewReLU().Forward(tensor.Zeros(tensor.Shape{1, 1, 1, 1}), true)
	})
}

func TestForwardShapeMismatchPanics(t *testing.T) {
	relu := NewReLU()
	mustBuild(t, relu, testContext(tensor.Shape{1, 4, 1, 1}, BatchMajor))

	defer func() {
		r := recover()
		var shapeErr *tensor.ShapeError
		require.ErrorAs(t, r.(error), &shapeErr)
		assert.Equal(t, "relu_1 forward", shapeErr.Op)
	}()
	relu.Forward(tensor.Zeros(tensor.Shape{2, 3, 1, 1}), true)
}

func TestFlatten(t *testing.T) {
	f := NewFlatten()
	mustBuild(t, f, testContext(tensor.Shape{1, 2, 3, 4}, BatchMajor))
	assert.Equal(t, tensor.Shape{1, 24, 1, 1}, f.OutputShape())

	x := tensor.Zeros(tensor.Shape{2, 2, 3, 4})
	for i := range x.Data() {
		x.Data()[i] = float32(i)
	}
	out := f.Forward(x, true)
	assert.Equal(t, tensor.Shape{2, 24, 1, 1}, out.Shape())
	assert.Equal(t, x.Data(), out.Data())

	dX := f.Backward(out)
	assert.Equal(t, x.Shape(), dX.Shape())
}

func TestFlattenFeatureMajorPassesThrough(t *testing.T) {
	f := NewFlatten()
	mustBuild(t, f, testContext(tensor.Shape{1, 6, 1, 1}, FeatureMajor))

	x := tensor.Ones(tensor.Shape{6, 3, 1, 1})
	assert.Same(t, x, f.Forward(x, true))
	assert.Equal(t, FeatureMajor, f.Layout())
}

func TestDropoutTraining(t *testing.T) {
	d := NewDropout(0.25)
	mustBuild(t, d, testContext(tensor.Shape{1, 100, 10, 10}, BatchMajor))

	x := tensor.Ones(tensor.Shape{2, 100, 10, 10})
	out := d.Forward(x, true)

	kept := 0
	for _, v := range out.Data() {
		if v != 0 {
			assert.InDelta(t, 1/0.75, v, 1e-6)
			kept++
		}
	}
	frac := float64(kept) / float64(out.Len())
	assert.InDelta(t, 0.75, frac, 0.02)
	// Inverted dropout preserves the expected activation.
	assert.InDelta(t, 1, out.Mean(), 0.03)

	g := d.Backward(tensor.Ones(x.Shape()))
	assert.True(t, g.Equal(out), "backward reuses the forward mask")
}

func TestDropoutInferenceIsIdentity(t *testing.T) {
	d := NewDropout(0.5)
	mustBuild(t, d, testContext(tensor.Shape{1, 4, 1, 1}, BatchMajor))

	x := tensor.Ones(tensor.Shape{3, 4, 1, 1})
	assert.Same(t, x, d.Forward(x, false))

	g := tensor.Full(x.Shape(), 2)
	assert.Same(t, g, d.Backward(g))
}

func TestDropoutRateValidation(t *testing.T) {
	assert.Panics(t, func() { NewDropout(1) })
	assert.Panics(t, func() { NewDropout(-0.1) })
	assert.NotPanics(t, func() { NewDropout(0) })
}

func TestCrossEntropy(t *testing.T) {
	probs := tensor.MustFromSlice([]float32{
		0.7, 0.2, 0.1,
		0.1, 0.1, 0.8,
	}, tensor.Shape{2, 3, 1, 1})
	want := -(math.Log(0.7) + math.Log(0.8)) / 2

	assert.InDelta(t, want, CrossEntropy(probs, []int{0, 2}, BatchMajor), 1e-6)
	assert.InDelta(t, want, CrossEntropy(probs.Transpose2D(), []int{0, 2}, FeatureMajor), 1e-6)

	// Zero probability stays finite.
	zero := tensor.MustFromSlice([]float32{1, 0}, tensor.Shape{1, 2, 1, 1})
	assert.InDelta(t, -math.Log(1e-12), CrossEntropy(zero, []int{1}, BatchMajor), 1e-6)
}

func TestBinaryCrossEntropy(t *testing.T) {
	probs := tensor.MustFromSlice([]float32{0.9, 0.2}, tensor.Shape{1, 2, 1, 1})
	want := -(math.Log(0.9) + math.Log(0.8)) / 2
	assert.InDelta(t, want, BinaryCrossEntropy(probs, []int{1, 0}), 1e-6)
}

func TestMeanSquaredError(t *testing.T) {
	a := tensor.MustFromSlice([]float32{1, 2, 3, 4}, tensor.Shape{4, 1, 1, 1})
	b := tensor.MustFromSlice([]float32{1, 0, 3, 1}, tensor.Shape{4, 1, 1, 1})
	assert.InDelta(t, (4.0+9.0)/4, MeanSquaredError(a, b), 1e-9)
}

func TestPredictionsAndAccuracy(t *testing.T) {
	probs := tensor.MustFromSlice([]float32{
		0.1, 0.6, 0.3,
		0.5, 0.2, 0.3,
	}, tensor.Shape{2, 3, 1, 1})
	assert.Equal(t, []int{1, 0}, Predictions(probs, BatchMajor))
	assert.Equal(t, []int{1, 0}, Predictions(probs.Transpose2D(), FeatureMajor))

	binary := tensor.MustFromSlice([]float32{0.49, 0.5, 0.9}, tensor.Shape{1, 3, 1, 1})
	assert.Equal(t, []int{0, 1, 1}, Predictions(binary, FeatureMajor))

	assert.InDelta(t, 2.0/3.0, Accuracy([]int{1, 0, 2}, []int{1, 1, 2}), 1e-12)
	assert.Zero(t, Accuracy(nil, nil))
}

func TestTargetEncoding(t *testing.T) {
	bm := OneHot([]int{2, 0}, 3, BatchMajor)
	assert.Equal(t, []float32{0, 0, 1, 1, 0, 0}, bm.Data())

	fm := OneHot([]int{2, 0}, 3, FeatureMajor)
	assert.Equal(t, tensor.Shape{3, 2, 1, 1}, fm.Shape())
	assert.Equal(t, []float32{0, 1, 0, 0, 1, 0}, fm.Data())

	assert.Equal(t, tensor.Shape{1, 3, 1, 1}, BinaryTargets([]int{0, 1, 1}, FeatureMajor).Shape())
	assert.Panics(t, func() { BinaryTargets([]int{2}, BatchMajor) })
}

func TestGradientRegistry(t *testing.T) {
	namer := NewNamer()
	ctx := testContext(tensor.Shape{1, 4, 1, 1}, BatchMajor)
	ctx.Namer = namer

	d1 := NewDense(DenseConfig{Units: 3})
	require.NoError(t, d1.Build(ctx))
	ctx.InputShape, ctx.Layout = d1.OutputShape(), d1.Layout()
	d2 := NewDense(DenseConfig{Units: 2})
	require.NoError(t, d2.Build(ctx))

	reg := NewGradientRegistry([]Trainable{d1, d2})
	assert.Equal(t, []string{"dense_1", "dense_2"}, reg.Names())
	assert.Equal(t, 2, reg.Len())
	assert.Same(t, d2, reg.Layer("dense_2"))
	assert.Nil(t, reg.Layer("dense_3"))

	grads := reg.Gradients("dense_1")
	require.Len(t, grads, 2)
	assert.Same(t, d1.Weights().Grad, grads[0])
	assert.Same(t, d1.Biases().Grad, grads[1])

	// References stay valid across backward passes.
	out := d2.Forward(d1.Forward(tensor.Ones(tensor.Shape{2, 4, 1, 1}), true), true)
	d1.Backward(d2.Backward(tensor.Ones(out.Shape())))
	assert.Same(t, d1.Weights().Grad, reg.Gradients("dense_1")[0])
	assert.NotZero(t, reg.Gradients("dense_1")[0].AbsMax())

	assert.Panics(t, func() { NewGradientRegistry([]Trainable{d1, d1}) })
}
