package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/born-ml/kiln/internal/parallel"
	"github.com/born-ml/kiln/internal/tensor"
)

// testContext returns a serial, seeded build context for a per-sample shape.
func testContext(shape tensor.Shape, layout Layout) BuildContext {
	return BuildContext{
		InputShape: shape,
		Layout:     layout,
		Namer:      NewNamer(),
		Parallel:   parallel.SerialConfig(),
		Rand:       rand.New(rand.NewSource(42)),
	}
}

// mustBuild builds l or fails the test.
func mustBuild(t *testing.T, l Layer, ctx BuildContext) {
	t.Helper()
	require.NoError(t, l.Build(ctx))
}

// weightedSum returns Σ out[i]*r[i] in float64. Its gradient with respect
// to out is r, which makes r a convenient upstream gradient.
func weightedSum(out, r *tensor.Tensor) float64 {
	var s float64
	rd := r.Data()
	for i, v := range out.Data() {
		s += float64(v) * float64(rd[i])
	}
	return s
}

// numericGradient differentiates loss with respect to the elements of
// target by central differences. loss must read target's current data.
func numericGradient(target *tensor.Tensor, step float64, loss func() float64) []float64 {
	data := target.Data()
	origin := make([]float64, len(data))
	for i, v := range data {
		origin[i] = float64(v)
	}

	f := func(x []float64) float64 {
		for i, v := range x {
			data[i] = float32(v)
		}
		return loss()
	}
	grad := fd.Gradient(nil, f, origin, &fd.Settings{Formula: fd.Central, Step: step})

	for i, v := range origin {
		data[i] = float32(v)
	}
	return grad
}

// requireGradientsClose compares an analytic gradient with a numeric one.
func requireGradientsClose(t *testing.T, name string, analytic *tensor.Tensor, numeric []float64, tol float64) {
	t.Helper()
	require.Len(t, numeric, analytic.Len(), name)
	for i, v := range analytic.Data() {
		require.InDelta(t, numeric[i], float64(v), tol, "%s[%d]", name, i)
	}
}
