package tensor

import "fmt"

// ShapeError reports an operation whose operand shapes or element counts
// are incompatible (matmul inner dimensions, reshape counts, bad axis).
//
// Tensor operations panic with a *ShapeError; the condition is a
// programming mistake in model construction, not a recoverable state.
type ShapeError struct {
	Op     string // Operation name (e.g., "matmul", "reshape")
	Left   Shape  // Receiver shape
	Right  Shape  // Other operand or requested shape
	Detail string // Additional details
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: shape mismatch %s vs %s: %s", e.Op, e.Left, e.Right, e.Detail)
	}
	return fmt.Sprintf("%s: shape mismatch %s vs %s", e.Op, e.Left, e.Right)
}

// BroadcastError reports an elementwise operation whose operands match none
// of the supported broadcast patterns.
type BroadcastError struct {
	Op    string
	Left  Shape
	Right Shape
}

// Error implements the error interface.
func (e *BroadcastError) Error() string {
	return fmt.Sprintf("%s: cannot broadcast %s with %s", e.Op, e.Left, e.Right)
}
