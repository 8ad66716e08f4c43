// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand"

	"github.com/born-ml/kiln/internal/tensor"
)

// Type aliases for public API

// Tensor is a dense four-dimensional float32 tensor.
type Tensor = tensor.Tensor

// Shape is the (N, C, H, W) extent of a tensor.
type Shape = tensor.Shape

// ShapeError reports an operation applied to incompatible shapes.
type ShapeError = tensor.ShapeError

// BroadcastError reports a binary operation whose operand cannot be
// broadcast.
type BroadcastError = tensor.BroadcastError

// New creates a zero-filled tensor.
func New(shape Shape) *Tensor {
	return tensor.New(shape)
}

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape) *Tensor {
	return tensor.Zeros(shape)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape) *Tensor {
	return tensor.Ones(shape)
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float32) *Tensor {
	return tensor.Full(shape, value)
}

// FromSlice copies data into a new tensor of the given shape.
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2, 1, 1})
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// MustFromSlice is like FromSlice but panics on error.
func MustFromSlice(data []float32, shape Shape) *Tensor {
	return tensor.MustFromSlice(data, shape)
}

// Wrap builds a tensor over data without copying.
func Wrap(data []float32, shape Shape) *Tensor {
	return tensor.Wrap(data, shape)
}

// RandNormal draws values from N(0, std²).
func RandNormal(shape Shape, std float32, rng *rand.Rand) *Tensor {
	return tensor.RandNormal(shape, std, rng)
}

// RandUniform draws values from U(lo, hi).
func RandUniform(shape Shape, lo, hi float32, rng *rand.Rand) *Tensor {
	return tensor.RandUniform(shape, lo, hi, rng)
}

// OneHot encodes labels as an (N, classes, 1, 1) tensor.
func OneHot(labels []int, classes int) *Tensor {
	return tensor.OneHot(labels, classes)
}
