package tensor

import (
	"fmt"
	"math"
)

// Reductions walk the buffer in canonical row-major order and accumulate in
// float64, so results are deterministic for a given tensor.

// Sum returns the sum of all elements.
func (t *Tensor) Sum() float64 {
	var s float64
	for _, v := range t.data {
		s += float64(v)
	}
	return s
}

// Mean returns the arithmetic mean of all elements.
func (t *Tensor) Mean() float64 {
	return t.Sum() / float64(len(t.data))
}

// Max returns the largest element.
func (t *Tensor) Max() float32 {
	m := t.data[0]
	for _, v := range t.data[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// AbsMax returns the largest absolute value.
func (t *Tensor) AbsMax() float32 {
	var m float32
	for _, v := range t.data {
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}

// FrobeniusNorm returns sqrt(sum of squares).
func (t *Tensor) FrobeniusNorm() float64 {
	var s float64
	for _, v := range t.data {
		s += float64(v) * float64(v)
	}
	return math.Sqrt(s)
}

// L1Norm returns the sum of absolute values.
func (t *Tensor) L1Norm() float64 {
	var s float64
	for _, v := range t.data {
		s += math.Abs(float64(v))
	}
	return s
}

// Argmax returns the flat index of the largest element (first on ties).
func (t *Tensor) Argmax() int {
	return argmax(t.data)
}

// ArgmaxAxis returns per-group argmax indices.
//
// Axis 0 groups by sample (argmax over C*H*W, N results), axis 1 by
// (sample, channel) over H*W, axis 2 by (sample, channel, row) over W.
// Any other axis panics with a *ShapeError.
func (t *Tensor) ArgmaxAxis(axis int) []int {
	var group int
	switch axis {
	case 0:
		group = t.shape.Cols()
	case 1:
		group = t.shape.Spatial()
	case 2:
		group = t.shape[3]
	default:
		panic(&ShapeError{Op: "argmax", Left: t.shape, Detail: fmt.Sprintf("unsupported axis %d", axis)})
	}
	out := make([]int, len(t.data)/group)
	for g := range out {
		out[g] = argmax(t.data[g*group : (g+1)*group])
	}
	return out
}

func argmax(data []float32) int {
	best := 0
	for i, v := range data {
		if v > data[best] {
			best = i
		}
	}
	return best
}

// SumRows sums each row of the (N, C*H*W) view into an (N, 1, 1, 1) tensor,
// multiplying every sum by scale.
func (t *Tensor) SumRows(scale float32) *Tensor {
	rows, cols := t.shape.Rows(), t.shape.Cols()
	out := New(Shape{rows, 1, 1, 1})
	for r := 0; r < rows; r++ {
		var s float64
		for _, v := range t.data[r*cols : (r+1)*cols] {
			s += float64(v)
		}
		out.data[r] = float32(s) * scale
	}
	return out
}

// SumChannels sums over batch and spatial axes, returning (1, C, 1, 1).
func (t *Tensor) SumChannels() *Tensor {
	n, c, spatial := t.shape[0], t.shape[1], t.shape.Spatial()
	acc := make([]float64, c)
	for s := 0; s < n; s++ {
		for ch := 0; ch < c; ch++ {
			base := (s*c + ch) * spatial
			for _, v := range t.data[base : base+spatial] {
				acc[ch] += float64(v)
			}
		}
	}
	out := New(Shape{1, c, 1, 1})
	for ch, v := range acc {
		out.data[ch] = float32(v)
	}
	return out
}
