package model

import (
	"errors"
	"fmt"

	"github.com/born-ml/kiln/internal/nn"
)

var (
	// ErrEmptyModel is returned when an operation needs at least one layer.
	ErrEmptyModel = errors.New("model has no layers")

	// ErrNotCompiled is returned by training operations before Compile.
	ErrNotCompiled = errors.New("model is not compiled")

	// ErrCompiled is returned by Add after Compile; the gradient registry
	// is fixed once the model is compiled.
	ErrCompiled = errors.New("model is already compiled")

	// ErrOptimizerMismatch is returned by Load when the stored optimizer
	// state belongs to a different algorithm than the attached optimizer.
	ErrOptimizerMismatch = errors.New("stored optimizer does not match attached optimizer")
)

// UnbuiltModelError reports a layer that could not be built while being
// added to a Sequential model, most commonly a first layer with no known
// input shape.
type UnbuiltModelError struct {
	Index int     // Position the layer would have taken
	Kind  nn.Kind // Layer type
	Err   error   // Underlying build error
}

// Error implements the error interface.
func (e *UnbuiltModelError) Error() string {
	return fmt.Sprintf("model: cannot build layer %d (%s): %v", e.Index, e.Kind, e.Err)
}

// Unwrap returns the underlying build error.
func (e *UnbuiltModelError) Unwrap() error {
	return e.Err
}

// errNoInputShape is the cause reported for a first layer without shape.
var errNoInputShape = errors.New("first layer needs an input shape (use WithInputShape or the layer's InputShape/InputSize)")
