// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense float32 tensors used by kiln models.
//
// # Overview
//
// Every tensor is four-dimensional, (N, C, H, W), stored contiguously in
// row-major order: element (n, c, h, w) lives at ((n*C+c)*H+h)*W+w.
// Two-dimensional data uses the (rows, cols, 1, 1) form.
//
// # Basic Usage
//
//	import "github.com/born-ml/kiln/tensor"
//
//	func main() {
//	    x := tensor.Ones(tensor.Shape{2, 3, 1, 1})
//	    b := tensor.Full(tensor.Shape{1, 3, 1, 1}, 0.5)
//
//	    y := x.Add(b)                       // per-channel broadcast
//	    z := y.MatMul(y.Transpose2D(), true) // scaled by 1/sqrt(3)
//	}
//
// # Broadcasting
//
// Binary operations accept an operand of identical shape or a per-channel
// operand of shape (1, C, 1, 1). Mul additionally accepts (N, C, 1, 1).
// Any other combination panics with *BroadcastError.
//
// # Errors
//
// Shape violations are programming errors and panic with *ShapeError or
// *BroadcastError. Constructors that take caller data, such as FromSlice,
// return the error instead.
package tensor
