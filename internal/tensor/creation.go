package tensor

import (
	"fmt"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape) *Tensor {
	return New(shape)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape) *Tensor {
	return Full(shape, 1)
}

// Full creates a tensor filled with value.
//
// Example:
//
//	variance := tensor.Full(tensor.Shape{1, 16, 1, 1}, 1)
func Full(shape Shape, value float32) *Tensor {
	t := New(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// ZerosLike creates a zero tensor with the same shape as t.
func ZerosLike(t *Tensor) *Tensor {
	return New(t.shape)
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	t := New(shape)
	copy(t.data, data)
	return t, nil
}

// MustFromSlice is FromSlice that panics on error.
func MustFromSlice(data []float32, shape Shape) *Tensor {
	t, err := FromSlice(data, shape)
	if err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	return t
}

// Wrap builds a tensor over the caller's slice without copying.
// Panics if len(data) does not match the shape.
func Wrap(data []float32, shape Shape) *Tensor {
	if shape.NumElements() != len(data) {
		panic(&ShapeError{
			Op:     "wrap",
			Right:  shape,
			Detail: fmt.Sprintf("buffer holds %d elements, shape needs %d", len(data), shape.NumElements()),
		})
	}
	return &Tensor{shape: shape, data: data}
}

// RandNormal creates a tensor with values drawn from N(0, std²).
func RandNormal(shape Shape, std float32, rng *rand.Rand) *Tensor {
	t := New(shape)
	for i := range t.data {
		t.data[i] = float32(rng.NormFloat64()) * std
	}
	return t
}

// RandUniform creates a tensor with values drawn uniformly from [lo, hi).
func RandUniform(shape Shape, lo, hi float32, rng *rand.Rand) *Tensor {
	t := New(shape)
	span := hi - lo
	for i := range t.data {
		t.data[i] = lo + rng.Float32()*span
	}
	return t
}
