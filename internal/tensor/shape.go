package tensor

import "fmt"

// Shape is the logical (N, C, H, W) extent of a tensor.
//
// Every tensor in kiln is four-dimensional. Tabular and Dense data use
// (N, F, 1, 1) or, in feature-major layout, (F, N, 1, 1).
type Shape [4]int

// NumElements returns N*C*H*W.
func (s Shape) NumElements() int {
	return s[0] * s[1] * s[2] * s[3]
}

// Validate checks that all dimensions are positive.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Rows returns the row count of the 2-D view (N).
func (s Shape) Rows() int {
	return s[0]
}

// Cols returns the column count of the 2-D view (C*H*W).
func (s Shape) Cols() int {
	return s[1] * s[2] * s[3]
}

// Spatial returns H*W.
func (s Shape) Spatial() int {
	return s[2] * s[3]
}

// WithBatch returns a copy of s with the leading dimension replaced.
func (s Shape) WithBatch(n int) Shape {
	s[0] = n
	return s
}

// String formats the shape as (N, C, H, W).
func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", s[0], s[1], s[2], s[3])
}
