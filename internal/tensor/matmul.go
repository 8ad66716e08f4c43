package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// general views the tensor as a row-major (N, C*H*W) matrix.
func (t *Tensor) general() blas32.General {
	rows, cols := t.shape.Rows(), t.shape.Cols()
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: t.data}
}

// MatMul multiplies the 2-D views of t (N, C*H*W) and other (N', C'*H'*W').
//
// The inner dimensions must agree (C*H*W == N'), otherwise MatMul panics with
// a *ShapeError. The result has shape (N, C', H', W'). When scale is true
// every element of the product is divided by sqrt(C*H*W), which keeps
// activations of wide layers in range.
//
// Example:
//
//	w := tensor.Ones(tensor.Shape{4, 3, 1, 1}) // 4x3
//	x := tensor.Ones(tensor.Shape{3, 2, 1, 1}) // 3x2
//	y := w.MatMul(x, false)                    // (4, 2, 1, 1), every element 3
func (t *Tensor) MatMul(other *Tensor, scale bool) *Tensor {
	inner := t.shape.Cols()
	if inner != other.shape.Rows() {
		panic(&ShapeError{
			Op:     "matmul",
			Left:   t.shape,
			Right:  other.shape,
			Detail: fmt.Sprintf("inner dimensions %d and %d differ", inner, other.shape.Rows()),
		})
	}

	out := New(Shape{t.shape[0], other.shape[1], other.shape[2], other.shape[3]})
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, t.general(), other.general(), 0, out.general())
	if scale {
		// Divide after accumulation: the result is exactly the unscaled
		// product over sqrt(inner).
		div := float32(math.Sqrt(float64(inner)))
		for i := range out.data {
			out.data[i] /= div
		}
	}
	return out
}

// Transpose2D transposes the (N, C*H*W) view, returning shape (C*H*W, N, 1, 1).
func (t *Tensor) Transpose2D() *Tensor {
	rows, cols := t.shape.Rows(), t.shape.Cols()
	out := New(Shape{cols, rows, 1, 1})
	for r := 0; r < rows; r++ {
		src := t.data[r*cols : (r+1)*cols]
		for c, v := range src {
			out.data[c*rows+r] = v
		}
	}
	return out
}
