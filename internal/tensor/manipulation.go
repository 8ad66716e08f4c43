package tensor

import "fmt"

// Reshape returns a copy of t with a new shape.
// The element count must be unchanged; the row-major order of elements is
// preserved, so reshaping back yields an identical tensor.
func (t *Tensor) Reshape(shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, &ShapeError{Op: "reshape", Left: t.shape, Right: shape, Detail: err.Error()}
	}
	if shape.NumElements() != len(t.data) {
		return nil, &ShapeError{
			Op:     "reshape",
			Left:   t.shape,
			Right:  shape,
			Detail: fmt.Sprintf("%d elements cannot become %d", len(t.data), shape.NumElements()),
		}
	}
	out := New(shape)
	copy(out.data, t.data)
	return out, nil
}

// MustReshape is Reshape that panics on error.
func (t *Tensor) MustReshape(shape Shape) *Tensor {
	out, err := t.Reshape(shape)
	if err != nil {
		panic(err)
	}
	return out
}

// View returns a tensor sharing t's buffer under a different shape with the
// same element count.
func (t *Tensor) View(shape Shape) *Tensor {
	if shape.NumElements() != len(t.data) {
		panic(&ShapeError{Op: "view", Left: t.shape, Right: shape, Detail: "element counts differ"})
	}
	return &Tensor{shape: shape, data: t.data}
}

// Flatten returns a (N, C*H*W, 1, 1) copy.
func (t *Tensor) Flatten() *Tensor {
	return t.MustReshape(Shape{t.shape[0], t.shape.Cols(), 1, 1})
}

// OneHot encodes labels as a (len(labels), classes, 1, 1) tensor.
// Panics if a label is outside [0, classes).
func OneHot(labels []int, classes int) *Tensor {
	out := New(Shape{len(labels), classes, 1, 1})
	for i, l := range labels {
		if l < 0 || l >= classes {
			panic(fmt.Sprintf("tensor: label %d out of range [0, %d)", l, classes))
		}
		out.data[i*classes+l] = 1
	}
	return out
}
