package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func toFloat64(data []float32) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}
	return out
}

func TestAddExact(t *testing.T) {
	a := mustFromSlice(t, []float32{1, 2, 3, 4}, Shape{1, 4, 1, 1})
	b := mustFromSlice(t, []float32{10, 20, 30, 40}, Shape{1, 4, 1, 1})

	assert.Equal(t, []float32{11, 22, 33, 44}, a.Add(b).Data())
	assert.Equal(t, []float32{-9, -18, -27, -36}, a.Sub(b).Data())
	assert.Equal(t, []float32{10, 40, 90, 160}, a.Mul(b).Data())
	assert.Equal(t, []float32{10, 10, 10, 10}, b.Div(a).Data())
}

func TestBroadcastChannel(t *testing.T) {
	// x[n,c,h,w] = 100n + 10c + h*2 + w
	x := Zeros(Shape{2, 3, 2, 2})
	for n := 0; n < 2; n++ {
		for c := 0; c < 3; c++ {
			for h := 0; h < 2; h++ {
				for w := 0; w < 2; w++ {
					x.Set(float32(100*n+10*c+2*h+w), n, c, h, w)
				}
			}
		}
	}
	bias := mustFromSlice(t, []float32{1, 2, 3}, Shape{1, 3, 1, 1})

	sum := x.Add(bias)
	diff := x.Sub(bias)
	quot := x.Div(bias)
	for n := 0; n < 2; n++ {
		for c := 0; c < 3; c++ {
			for h := 0; h < 2; h++ {
				for w := 0; w < 2; w++ {
					base := x.At(n, c, h, w)
					b := float32(c + 1)
					assert.Equal(t, base+b, sum.At(n, c, h, w))
					assert.Equal(t, base-b, diff.At(n, c, h, w))
					assert.Equal(t, base/b, quot.At(n, c, h, w))
				}
			}
		}
	}
}

func TestBroadcastSampleChannelMul(t *testing.T) {
	x := Ones(Shape{2, 2, 3, 3})
	scale := mustFromSlice(t, []float32{1, 2, 3, 4}, Shape{2, 2, 1, 1})

	y := x.Mul(scale)
	for n := 0; n < 2; n++ {
		for c := 0; c < 2; c++ {
			want := float32(n*2 + c + 1)
			for h := 0; h < 3; h++ {
				for w := 0; w < 3; w++ {
					assert.Equal(t, want, y.At(n, c, h, w))
				}
			}
		}
	}

	// (N, C, 1, 1) is a Mul-only pattern.
	assert.Panics(t, func() { x.Add(scale) })
}

func TestBroadcastErrorNamesShapes(t *testing.T) {
	a := Zeros(Shape{2, 3, 4, 4})
	b := Zeros(Shape{2, 4, 1, 1})

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(*BroadcastError)
		require.True(t, ok, "expected *BroadcastError, got %T", r)
		assert.Equal(t, a.Shape(), err.Left)
		assert.Equal(t, b.Shape(), err.Right)
		assert.Contains(t, err.Error(), "(2, 3, 4, 4)")
		assert.Contains(t, err.Error(), "(2, 4, 1, 1)")
	}()
	a.Mul(b)
}

func TestInPlaceOps(t *testing.T) {
	x := mustFromSlice(t, []float32{1, -2, 3, -4}, Shape{1, 4, 1, 1})
	y := Ones(Shape{1, 4, 1, 1})

	same := x.AddInPlace(y)
	assert.Same(t, x, same)
	assert.Equal(t, []float32{2, -1, 4, -3}, x.Data())

	x.SubInPlace(y).MulInPlace(Full(Shape{1, 4, 1, 1}, 2))
	assert.Equal(t, []float32{2, -4, 6, -8}, x.Data())

	x.ScaleInPlace(0.5).Clip(-2, 2)
	assert.Equal(t, []float32{1, -2, 2, -2}, x.Data())

	x.Fill(3)
	assert.Equal(t, []float32{3, 3, 3, 3}, x.Data())

	x.CopyFrom(mustFromSlice(t, []float32{4, 3, 2, 1}, Shape{4, 1, 1, 1}))
	assert.Equal(t, []float32{4, 3, 2, 1}, x.Data())
	assert.Panics(t, func() { x.CopyFrom(Zeros(Shape{1, 1, 1, 1})) })
}

func TestUnaryOps(t *testing.T) {
	x := mustFromSlice(t, []float32{1, 4, 9, 16}, Shape{2, 2, 1, 1})

	assert.Equal(t, []float32{1, 2, 3, 4}, x.Sqrt().Data())
	assert.Equal(t, []float32{1, 16, 81, 256}, x.Square().Data())
	assert.Equal(t, []float32{2, 5, 10, 17}, x.AddScalar(1).Data())
	assert.Equal(t, []float32{0, 3, 8, 15}, x.SubScalar(1).Data())
	assert.Equal(t, []float32{-1, -4, -9, -16}, x.Apply(func(v float32) float32 { return -v }).Data())
	// Source untouched.
	assert.Equal(t, []float32{1, 4, 9, 16}, x.Data())
}

func TestAllClose(t *testing.T) {
	a := mustFromSlice(t, []float32{1, 2}, Shape{1, 2, 1, 1})
	b := mustFromSlice(t, []float32{1.0005, 2}, Shape{1, 2, 1, 1})

	assert.True(t, a.AllClose(b, 1e-3))
	assert.False(t, a.AllClose(b, 1e-4))
	assert.False(t, a.Equal(b))
	assert.False(t, a.AllClose(Zeros(Shape{2, 1, 1, 1}), 1))
}

func TestReductions(t *testing.T) {
	x := mustFromSlice(t, []float32{3, -4, 1, 0, 2, -7}, Shape{2, 3, 1, 1})

	assert.InDelta(t, -5, x.Sum(), 1e-9)
	assert.InDelta(t, -5.0/6.0, x.Mean(), 1e-9)
	assert.Equal(t, float32(3), x.Max())
	assert.Equal(t, float32(7), x.AbsMax())
	assert.InDelta(t, math.Sqrt(9+16+1+0+4+49), x.FrobeniusNorm(), 1e-9)
	assert.InDelta(t, 17, x.L1Norm(), 1e-9)
	assert.Equal(t, 0, x.Argmax())

	rows := x.SumRows(2)
	assert.Equal(t, Shape{2, 1, 1, 1}, rows.Shape())
	assert.True(t, floats.EqualApprox(toFloat64(rows.Data()), []float64{0, -10}, 1e-6))
}

func TestArgmaxAxis(t *testing.T) {
	x := mustFromSlice(t, []float32{
		// n=0: c=0 rows [1 5] [2 0], c=1 rows [9 1] [1 1]
		1, 5, 2, 0, 9, 1, 1, 1,
		// n=1
		0, 0, 0, 3, 1, 2, 8, 4,
	}, Shape{2, 2, 2, 2})

	assert.Equal(t, []int{4, 6}, x.ArgmaxAxis(0))
	assert.Equal(t, []int{1, 0, 3, 2}, x.ArgmaxAxis(1))
	assert.Equal(t, []int{1, 0, 0, 0, 0, 1, 1, 0}, x.ArgmaxAxis(2))

	assert.PanicsWithError(t, "argmax: shape mismatch (2, 2, 2, 2) vs (0, 0, 0, 0): unsupported axis 3", func() {
		x.ArgmaxAxis(3)
	})
}

func TestSumChannels(t *testing.T) {
	x := Ones(Shape{3, 2, 2, 2})
	x.Set(5, 2, 1, 0, 0)

	s := x.SumChannels()
	assert.Equal(t, Shape{1, 2, 1, 1}, s.Shape())
	assert.Equal(t, []float32{12, 16}, s.Data())
}
