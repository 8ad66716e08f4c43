package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kiln/internal/parallel"
	"github.com/born-ml/kiln/internal/tensor"
)

func TestNewKindNames(t *testing.T) {
	assert.Equal(t, "reshape", KindReshape.String())
	assert.Equal(t, "up_sampling_2d", KindUpsampling2D.String())
	assert.Equal(t, "global_average_pooling_2d", KindGlobalAveragePooling2D.String())
	assert.Equal(t, "custom_activation", KindCustomActivation.String())
}

func TestReshapeBatchMajor(t *testing.T) {
	r := NewReshape(3, 2, 2)
	mustBuild(t, r, testContext(tensor.Shape{1, 2, 2, 3}, BatchMajor))
	assert.Equal(t, tensor.Shape{1, 3, 2, 2}, r.OutputShape())
	assert.Equal(t, BatchMajor, r.Layout())

	x := tensor.RandNormal(tensor.Shape{2, 2, 2, 3}, 1, rand.New(rand.NewSource(1)))
	out := r.Forward(x, true)
	assert.Equal(t, tensor.Shape{2, 3, 2, 2}, out.Shape())
	assert.Equal(t, x.Data(), out.Data())

	dX := r.Backward(out)
	assert.True(t, dX.Equal(x))
}

func TestReshapeFeatureMajorInput(t *testing.T) {
	r := NewReshape(1, 2, 2)
	mustBuild(t, r, testContext(tensor.Shape{1, 4, 1, 1}, FeatureMajor))

	// Four features for three samples: x[f, n] = 10*n + f.
	x := tensor.New(tensor.Shape{4, 3, 1, 1})
	for f := 0; f < 4; f++ {
		for n := 0; n < 3; n++ {
			x.Data()[f*3+n] = float32(10*n + f)
		}
	}
	out := r.Forward(x, true)
	require.Equal(t, tensor.Shape{3, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{10, 11, 12, 13}, out.Data()[4:8])

	dX := r.Backward(out)
	assert.Equal(t, x.Shape(), dX.Shape())
	assert.True(t, dX.Equal(x))
}

func TestReshapeRejectsElementCountChange(t *testing.T) {
	err := NewReshape(2, 2, 2).Build(testContext(tensor.Shape{1, 1, 3, 3}, BatchMajor))
	assert.ErrorContains(t, err, "cannot reshape")
	assert.Panics(t, func() { NewReshape(0, 1, 1) })
}

func TestUpsampling2DForward(t *testing.T) {
	u := NewUpsampling2D(2)
	mustBuild(t, u, testContext(tensor.Shape{1, 1, 2, 2}, BatchMajor))
	assert.Equal(t, tensor.Shape{1, 1, 4, 4}, u.OutputShape())

	x := tensor.MustFromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	out := u.Forward(x, true)
	assert.Equal(t, []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}, out.Data())

	dX := u.Backward(tensor.Ones(out.Shape()))
	assert.Equal(t, []float32{4, 4, 4, 4}, dX.Data())
}

func TestUpsampling2DGradientCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	u := NewUpsampling2D(3)
	mustBuild(t, u, testContext(tensor.Shape{1, 2, 2, 3}, BatchMajor))

	x := tensor.RandNormal(tensor.Shape{2, 2, 2, 3}, 1, rng)
	r := tensor.RandNormal(u.OutputShape().WithBatch(2), 1, rng)
	u.Forward(x, true)
	dX := u.Backward(r).Clone()

	loss := func() float64 { return weightedSum(u.Forward(x, true), r) }
	requireGradientsClose(t, "dInput", dX, numericGradient(x, 0.05, loss), 1e-3)
}

func TestUpsampling2DParallelMatchesSerial(t *testing.T) {
	x := tensor.RandNormal(tensor.Shape{3, 4, 5, 5}, 1, rand.New(rand.NewSource(4)))
	serial := NewUpsampling2D(2)
	mustBuild(t, serial, testContext(tensor.Shape{1, 4, 5, 5}, BatchMajor))
	pooled := NewUpsampling2D(2)
	ctx := testContext(tensor.Shape{1, 4, 5, 5}, BatchMajor)
	ctx.Parallel = parallel.Config{Backend: parallel.Pool, Workers: 4, MinChunk: 1}
	mustBuild(t, pooled, ctx)

	want := serial.Forward(x, true)
	assert.True(t, pooled.Forward(x, true).Equal(want))
	assert.True(t, pooled.Backward(want).Equal(serial.Backward(want)))
}

func TestUpsampling2DBuildErrors(t *testing.T) {
	assert.Panics(t, func() { NewUpsampling2D(0) })
	assert.Error(t, NewUpsampling2D(2).Build(testContext(tensor.Shape{1, 4, 1, 1}, FeatureMajor)))
}

func TestGlobalAveragePooling2D(t *testing.T) {
	g := NewGlobalAveragePooling2D()
	mustBuild(t, g, testContext(tensor.Shape{1, 2, 2, 2}, BatchMajor))
	assert.Equal(t, tensor.Shape{1, 2, 1, 1}, g.OutputShape())

	x := tensor.MustFromSlice([]float32{
		1, 2, 3, 4, // image 0, channel 0
		0, 0, 0, 8, // image 0, channel 1
		-1, -1, -1, -1, // image 1, channel 0
		5, 5, 5, 5, // image 1, channel 1
	}, tensor.Shape{2, 2, 2, 2})
	out := g.Forward(x, true)
	assert.Equal(t, tensor.Shape{2, 2, 1, 1}, out.Shape())
	assert.Equal(t, []float32{2.5, 2, -1, 5}, out.Data())

	dX := g.Backward(tensor.MustFromSlice([]float32{4, 8, 0, -4}, out.Shape()))
	assert.Equal(t, []float32{1, 1, 1, 1, 2, 2, 2, 2, 0, 0, 0, 0, -1, -1, -1, -1}, dX.Data())
}

func TestGlobalAveragePooling2DGradientCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	g := NewGlobalAveragePooling2D()
	mustBuild(t, g, testContext(tensor.Shape{1, 3, 3, 4}, BatchMajor))

	x := tensor.RandNormal(tensor.Shape{2, 3, 3, 4}, 1, rng)
	r := tensor.RandNormal(tensor.Shape{2, 3, 1, 1}, 1, rng)
	g.Forward(x, true)
	dX := g.Backward(r).Clone()

	loss := func() float64 { return weightedSum(g.Forward(x, true), r) }
	requireGradientsClose(t, "dInput", dX, numericGradient(x, 0.05, loss), 1e-3)
}

func TestCustomActivation(t *testing.T) {
	square := NewCustomActivation(
		func(x float32) float32 { return x * x },
		func(x, _ float32) float32 { return 2 * x },
	)
	mustBuild(t, square, testContext(tensor.Shape{1, 2, 2, 2}, BatchMajor))
	assert.Equal(t, "custom_activation_1", square.Name())

	rng := rand.New(rand.NewSource(8))
	x := tensor.RandNormal(tensor.Shape{3, 2, 2, 2}, 1, rng)
	out := square.Forward(x, true)
	for i, v := range x.Data() {
		assert.Equal(t, v*v, out.Data()[i])
	}

	r := tensor.RandNormal(out.Shape(), 1, rng)
	dX := square.Backward(r).Clone()
	loss := func() float64 { return weightedSum(square.Forward(x, true), r) }
	requireGradientsClose(t, "dInput", dX, numericGradient(x, 1e-2, loss), 1e-3)
}

func TestCustomActivationNeedsDerivative(t *testing.T) {
	broken := NewCustomActivation(func(x float32) float32 { return x }, nil)
	assert.Error(t, broken.Build(testContext(tensor.Shape{1, 1, 1, 1}, BatchMajor)))
}
