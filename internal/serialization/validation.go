package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize    = 64 * 1024 * 1024 // maximum JSON header size
	MaxTensorCount   = 100_000          // maximum number of tensors in a file
	MaxTensorNameLen = 1024             // maximum tensor name length
)

// ValidationLevel controls the strictness of validation.
type ValidationLevel int

const (
	// ValidationStrict checks names, shapes, sizes and offsets (default).
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks names, shapes and sizes only.
	ValidationNormal
	// ValidationNone skips validation. Use only with trusted input.
	ValidationNone
)

// ValidateTensorName checks a slash-separated tensor key.
//
// Names consist of non-empty segments separated by '/'. A segment may not
// be "." or "..", and names may not contain backslashes or null bytes.
func ValidateTensorName(name string) error {
	invalid := func(details string) error {
		return &ValidationError{Kind: ErrInvalidTensorName, Tensor: name, Details: details}
	}
	if name == "" {
		return invalid("empty name")
	}
	if len(name) > MaxTensorNameLen {
		return invalid(fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen))
	}
	if strings.ContainsAny(name, "\\\x00") {
		return invalid("contains backslash or null byte")
	}
	for _, seg := range strings.Split(name, "/") {
		switch seg {
		case "":
			return invalid("empty path segment")
		case ".", "..":
			return invalid(fmt.Sprintf("segment %q not allowed", seg))
		}
	}
	return nil
}

// validateTensorMeta checks dtype, shape and byte size of one entry.
func validateTensorMeta(t TensorMeta) error {
	if t.DType != DTypeFloat32 {
		return &ValidationError{Kind: ErrUnsupportedDType, Tensor: t.Name, Details: t.DType}
	}
	if len(t.Shape) != 4 {
		return &ValidationError{Kind: ErrSizeMismatch, Tensor: t.Name, Details: fmt.Sprintf("shape %v is not 4-D", t.Shape)}
	}
	elems := int64(1)
	for _, d := range t.Shape {
		if d <= 0 {
			return &ValidationError{Kind: ErrSizeMismatch, Tensor: t.Name, Details: fmt.Sprintf("shape %v has a non-positive dimension", t.Shape)}
		}
		elems *= int64(d)
	}
	if t.Size != elems*bytesPerElement {
		return &ValidationError{Kind: ErrSizeMismatch, Tensor: t.Name, Details: fmt.Sprintf("size %d bytes for shape %v", t.Size, t.Shape)}
	}
	return nil
}

// ValidateTensorOffsets checks for negative, overlapping and out-of-bounds
// tensor regions.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{Kind: ErrTooManyTensors, Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount)}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{Kind: ErrOutOfBounds, Tensor: t.Name, Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size)}
		}
		if t.Offset+t.Size > dataSize {
			return &ValidationError{Kind: ErrOutOfBounds, Tensor: t.Name, Details: fmt.Sprintf("offset %d + size %d > data size %d", t.Offset, t.Size, dataSize)}
		}
		if i+1 < len(sorted) {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Kind:    ErrOffsetOverlap,
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap", t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// ValidateHeader validates every tensor entry of h against a data section
// of dataSize bytes.
func ValidateHeader(h *Header, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}
	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{Kind: ErrTooManyTensors, Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount)}
	}

	seen := make(map[string]bool, len(h.Tensors))
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if seen[t.Name] {
			return &ValidationError{Kind: ErrDuplicateTensor, Tensor: t.Name, Details: "listed twice"}
		}
		seen[t.Name] = true
		if err := validateTensorMeta(t); err != nil {
			return err
		}
	}

	if level == ValidationStrict {
		return ValidateTensorOffsets(h.Tensors, dataSize)
	}
	return nil
}
