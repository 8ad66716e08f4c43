// Package tensor implements the dense 4-axis float32 container used by kiln.
//
// A Tensor has a logical (N, C, H, W) shape and one contiguous row-major
// buffer addressed by ((n*C+c)*H+h)*W+w. Operations either allocate a new
// tensor (Add, MatMul, Reshape, ...) or mutate the receiver in place
// (AddInPlace, Fill, Clip, ...). Views built with Wrap or Image share the
// buffer of the tensor they were derived from.
//
// Shape violations are programming errors and panic with *ShapeError or
// *BroadcastError.
package tensor

import (
	"fmt"
	"strings"
)

// Tensor is a dense float32 tensor of shape (N, C, H, W).
//
// Example:
//
//	x := tensor.Zeros(tensor.Shape{32, 1, 28, 28})
//	img := x.Image(0) // (1, 1, 28, 28) view sharing x's buffer
//	img.Set(1, 0, 0, 3, 4)
type Tensor struct {
	shape Shape
	data  []float32
}

// New allocates a zero-filled tensor. Panics if any dimension is not positive.
func New(shape Shape) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	return &Tensor{shape: shape, data: make([]float32, shape.NumElements())}
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// N returns the batch dimension.
func (t *Tensor) N() int { return t.shape[0] }

// C returns the channel dimension.
func (t *Tensor) C() int { return t.shape[1] }

// H returns the height dimension.
func (t *Tensor) H() int { return t.shape[2] }

// W returns the width dimension.
func (t *Tensor) W() int { return t.shape[3] }

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Data returns the backing buffer without copying.
// Writes through the returned slice are visible to every view of the buffer.
func (t *Tensor) Data() []float32 {
	return t.data
}

// Index returns the flat offset of (n, c, h, w).
func (t *Tensor) Index(n, c, h, w int) int {
	s := t.shape
	return ((n*s[1]+c)*s[2]+h)*s[3] + w
}

// At returns the element at (n, c, h, w).
func (t *Tensor) At(n, c, h, w int) float32 {
	return t.data[t.Index(n, c, h, w)]
}

// Set stores v at (n, c, h, w).
func (t *Tensor) Set(v float32, n, c, h, w int) {
	t.data[t.Index(n, c, h, w)] = v
}

// Image returns a (1, C, H, W) view of sample n sharing the receiver's buffer.
func (t *Tensor) Image(n int) *Tensor {
	if n < 0 || n >= t.shape[0] {
		panic(fmt.Sprintf("tensor: image index %d out of range [0, %d)", n, t.shape[0]))
	}
	size := t.shape.Cols()
	return &Tensor{
		shape: t.shape.WithBatch(1),
		data:  t.data[n*size : (n+1)*size : (n+1)*size],
	}
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.shape, data: data}
}

// SameShape reports whether both tensors have identical shapes.
func (t *Tensor) SameShape(other *Tensor) bool {
	return t.shape == other.shape
}

// String returns a short description: shape plus up to eight leading values.
func (t *Tensor) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tensor%s[", t.shape)
	limit := min(len(t.data), 8)
	for i := 0; i < limit; i++ {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%.4g", t.data[i])
	}
	if len(t.data) > limit {
		b.WriteString(" ...")
	}
	b.WriteString("]")
	return b.String()
}
