package tensor

import (
	"github.com/chewxy/math32"
)

// broadcastMode identifies which operand pairing an elementwise op uses.
type broadcastMode int

const (
	broadcastExact        broadcastMode = iota // identical shapes
	broadcastChannel                           // right is (1, C, 1, 1)
	broadcastSampleChannel                     // right is (N, C, 1, 1), Mul only
)

// resolveBroadcast picks the pattern for left op right or panics with a
// *BroadcastError naming both shapes.
func resolveBroadcast(op string, left, right Shape, allowSampleChannel bool) broadcastMode {
	switch {
	case left == right:
		return broadcastExact
	case right[0] == 1 && right[1] == left[1] && right[2] == 1 && right[3] == 1:
		return broadcastChannel
	case allowSampleChannel && right[0] == left[0] && right[1] == left[1] && right[2] == 1 && right[3] == 1:
		return broadcastSampleChannel
	}
	panic(&BroadcastError{Op: op, Left: left, Right: right})
}

// zipInto writes f(t[i], other[broadcast(i)]) into dst, which must have t's shape.
func (t *Tensor) zipInto(dst *Tensor, other *Tensor, op string, allowSampleChannel bool, f func(a, b float32) float32) {
	mode := resolveBroadcast(op, t.shape, other.shape, allowSampleChannel)
	a, b, out := t.data, other.data, dst.data

	switch mode {
	case broadcastExact:
		for i := range a {
			out[i] = f(a[i], b[i])
		}
	case broadcastChannel:
		n, c, spatial := t.shape[0], t.shape[1], t.shape.Spatial()
		for s := 0; s < n; s++ {
			for ch := 0; ch < c; ch++ {
				v := b[ch]
				base := (s*c + ch) * spatial
				for k := base; k < base+spatial; k++ {
					out[k] = f(a[k], v)
				}
			}
		}
	case broadcastSampleChannel:
		spatial := t.shape.Spatial()
		for nc, v := range b {
			base := nc * spatial
			for k := base; k < base+spatial; k++ {
				out[k] = f(a[k], v)
			}
		}
	}
}

func (t *Tensor) zip(other *Tensor, op string, allowSampleChannel bool, f func(a, b float32) float32) *Tensor {
	result := New(t.shape)
	t.zipInto(result, other, op, allowSampleChannel, f)
	return result
}

// Add performs element-wise addition.
//
// other must either match t's shape or be (1, C, 1, 1), in which case it is
// broadcast across the batch and spatial axes.
//
// Example:
//
//	x := tensor.Ones(tensor.Shape{8, 3, 4, 4})
//	bias := tensor.Full(tensor.Shape{1, 3, 1, 1}, 0.5)
//	y := x.Add(bias) // every channel shifted by 0.5
func (t *Tensor) Add(other *Tensor) *Tensor {
	return t.zip(other, "add", false, func(a, b float32) float32 { return a + b })
}

// Sub performs element-wise subtraction with the same broadcasting as Add.
func (t *Tensor) Sub(other *Tensor) *Tensor {
	return t.zip(other, "sub", false, func(a, b float32) float32 { return a - b })
}

// Mul performs element-wise multiplication.
// In addition to Add's patterns, other may be (N, C, 1, 1), broadcast across
// the spatial axes of each sample.
func (t *Tensor) Mul(other *Tensor) *Tensor {
	return t.zip(other, "mul", true, func(a, b float32) float32 { return a * b })
}

// Div performs element-wise division with the same broadcasting as Add.
func (t *Tensor) Div(other *Tensor) *Tensor {
	return t.zip(other, "div", false, func(a, b float32) float32 { return a / b })
}

// AddInPlace adds other into t and returns t.
func (t *Tensor) AddInPlace(other *Tensor) *Tensor {
	t.zipInto(t, other, "add", false, func(a, b float32) float32 { return a + b })
	return t
}

// SubInPlace subtracts other from t and returns t.
func (t *Tensor) SubInPlace(other *Tensor) *Tensor {
	t.zipInto(t, other, "sub", false, func(a, b float32) float32 { return a - b })
	return t
}

// MulInPlace multiplies t by other and returns t.
func (t *Tensor) MulInPlace(other *Tensor) *Tensor {
	t.zipInto(t, other, "mul", true, func(a, b float32) float32 { return a * b })
	return t
}

// AddScalar returns t + s.
func (t *Tensor) AddScalar(s float32) *Tensor {
	return t.Apply(func(v float32) float32 { return v + s })
}

// SubScalar returns t - s.
func (t *Tensor) SubScalar(s float32) *Tensor {
	return t.Apply(func(v float32) float32 { return v - s })
}

// MulScalar returns t * s.
func (t *Tensor) MulScalar(s float32) *Tensor {
	return t.Apply(func(v float32) float32 { return v * s })
}

// DivScalar returns t / s.
func (t *Tensor) DivScalar(s float32) *Tensor {
	return t.Apply(func(v float32) float32 { return v / s })
}

// Sqrt returns the element-wise square root.
func (t *Tensor) Sqrt() *Tensor {
	return t.Apply(math32.Sqrt)
}

// Square returns the element-wise square.
func (t *Tensor) Square() *Tensor {
	return t.Apply(func(v float32) float32 { return v * v })
}

// Apply returns a new tensor with f applied to every element.
func (t *Tensor) Apply(f func(float32) float32) *Tensor {
	result := New(t.shape)
	for i, v := range t.data {
		result.data[i] = f(v)
	}
	return result
}

// ApplyInPlace replaces every element with f(element) and returns t.
func (t *Tensor) ApplyInPlace(f func(float32) float32) *Tensor {
	for i, v := range t.data {
		t.data[i] = f(v)
	}
	return t
}

// ScaleInPlace multiplies every element by s and returns t.
func (t *Tensor) ScaleInPlace(s float32) *Tensor {
	for i := range t.data {
		t.data[i] *= s
	}
	return t
}

// Clip clamps every element into [lo, hi] in place and returns t.
func (t *Tensor) Clip(lo, hi float32) *Tensor {
	for i, v := range t.data {
		if v < lo {
			t.data[i] = lo
		} else if v > hi {
			t.data[i] = hi
		}
	}
	return t
}

// Fill sets every element to v and returns t.
func (t *Tensor) Fill(v float32) *Tensor {
	for i := range t.data {
		t.data[i] = v
	}
	return t
}

// Zero sets every element to 0 and returns t.
func (t *Tensor) Zero() *Tensor {
	clear(t.data)
	return t
}

// CopyFrom copies src's elements into t. The element counts must match;
// shapes may differ.
func (t *Tensor) CopyFrom(src *Tensor) *Tensor {
	if len(src.data) != len(t.data) {
		panic(&ShapeError{Op: "copy", Left: t.shape, Right: src.shape, Detail: "element counts differ"})
	}
	copy(t.data, src.data)
	return t
}

// Equal reports whether both tensors have the same shape and identical elements.
func (t *Tensor) Equal(other *Tensor) bool {
	if t.shape != other.shape {
		return false
	}
	for i, v := range t.data {
		if v != other.data[i] {
			return false
		}
	}
	return true
}

// AllClose reports whether both tensors have the same shape and every pair of
// elements differs by at most tol.
func (t *Tensor) AllClose(other *Tensor, tol float32) bool {
	if t.shape != other.shape {
		return false
	}
	for i, v := range t.data {
		if math32.Abs(v-other.data[i]) > tol {
			return false
		}
	}
	return true
}
