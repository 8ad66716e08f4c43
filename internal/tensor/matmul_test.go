package tensor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

// naiveMatMul is the reference triple loop over the 2-D views.
func naiveMatMul(a, b *Tensor) []float64 {
	m, k, n := a.Shape().Rows(), a.Shape().Cols(), b.Shape().Cols()
	out := make([]float64, m*n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var s float64
			for p := 0; p < k; p++ {
				s += float64(a.Data()[i*k+p]) * float64(b.Data()[p*n+j])
			}
			out[i*n+j] = s
		}
	}
	return out
}

func TestMatMulSmall(t *testing.T) {
	a := mustFromSlice(t, []float32{1, 2, 3, 4, 5, 6}, Shape{2, 3, 1, 1})
	b := mustFromSlice(t, []float32{7, 8, 9, 10, 11, 12}, Shape{3, 2, 1, 1})

	c := a.MatMul(b, false)
	assert.Equal(t, Shape{2, 2, 1, 1}, c.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, c.Data())
}

func TestMatMulFlattensTrailingAxes(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := RandNormal(Shape{4, 2, 3, 1}, 1, rng) // 4x6
	b := RandNormal(Shape{6, 5, 1, 1}, 1, rng) // 6x5
	c := a.MatMul(b, false)

	assert.Equal(t, Shape{4, 5, 1, 1}, c.Shape())
	want := naiveMatMul(a, b)
	for i, v := range c.Data() {
		assert.InDelta(t, want[i], float64(v), 1e-4)
	}
}

func TestMatMulScaleExactness(t *testing.T) {
	for _, inner := range []int{5, 16, 7} {
		rng := rand.New(rand.NewSource(11))
		a := RandNormal(Shape{3, inner, 1, 1}, 1, rng)
		b := RandNormal(Shape{inner, 7, 1, 1}, 1, rng)

		plain := a.MatMul(b, false)
		scaled := a.MatMul(b, true)
		div := float32(math.Sqrt(float64(inner)))
		want := make([]float32, plain.Len())
		for i, v := range plain.Data() {
			want[i] = v / div
		}
		assert.Equal(t, want, scaled.Data(), "inner=%d", inner)
	}
}

func TestMatMulInnerMismatch(t *testing.T) {
	a := Zeros(Shape{2, 3, 1, 1})
	b := Zeros(Shape{4, 2, 1, 1})

	defer func() {
		r := recover()
		err, ok := r.(*ShapeError)
		if !ok {
			t.Fatalf("expected *ShapeError panic, got %v", r)
		}
		assert.Equal(t, "matmul", err.Op)
	}()
	a.MatMul(b, false)
}

func TestTranspose2D(t *testing.T) {
	x := mustFromSlice(t, seq(6), Shape{2, 3, 1, 1})
	y := x.Transpose2D()

	assert.Equal(t, Shape{3, 2, 1, 1}, y.Shape())
	assert.Equal(t, []float32{0, 3, 1, 4, 2, 5}, y.Data())
	assert.True(t, y.Transpose2D().Equal(x))

	// Spatial axes fold into the column count.
	img := Zeros(Shape{2, 2, 2, 2})
	assert.Equal(t, Shape{8, 2, 1, 1}, img.Transpose2D().Shape())
}

func BenchmarkMatMul(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	x := RandNormal(Shape{128, 256, 1, 1}, 1, rng)
	w := RandNormal(Shape{256, 128, 1, 1}, 1, rng)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = x.MatMul(w, true)
	}
}
