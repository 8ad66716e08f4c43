package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Writer writes a .kiln file.
type Writer struct {
	file   *os.File
	closed bool
}

// NewWriter creates (or truncates) the file at path.
func NewWriter(path string) (*Writer, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &Writer{file: file}, nil
}

// Write stores tensors in the given order with header. Tensor entries,
// format version and creation time in header are filled in by Write.
func (w *Writer) Write(tensors []NamedTensor, header Header) error {
	if w.closed {
		return fmt.Errorf("writer: %w", ErrClosed)
	}
	return WriteTo(w.file, tensors, header)
}

// Close closes the writer and the underlying file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// WriteTo encodes tensors and header as a .kiln stream.
func WriteTo(dst io.Writer, tensors []NamedTensor, header Header) error {
	header.FormatVersion = FormatVersion
	header.KilnVersion = kilnVersion
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}

	header.Tensors = make([]TensorMeta, 0, len(tensors))
	seen := make(map[string]bool, len(tensors))
	var offset int64
	var data []byte
	for _, nt := range tensors {
		if err := ValidateTensorName(nt.Name); err != nil {
			return err
		}
		if seen[nt.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateTensor, nt.Name)
		}
		seen[nt.Name] = true

		shape := nt.Value.Shape()
		size := int64(nt.Value.Len() * bytesPerElement)
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   nt.Name,
			DType:  DTypeFloat32,
			Shape:  shape[:],
			Offset: offset,
			Size:   size,
		})
		data = encodeFloats(data, nt.Value.Data())
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	flags := uint32(0)
	if header.Optimizer != nil {
		flags |= FlagHasOptimizer
	}
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	sum := checksum(data)
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], sum[:])
	if header.Optimizer != nil {
		binary.LittleEndian.PutUint64(fixed[StepOffset:StepOffset+8], uint64(header.Optimizer.Step))
	}

	if _, err := dst.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := dst.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}

	headerEnd := int64(FixedHeaderSize + len(headerJSON))
	if padding := alignedDataOffset(int64(len(headerJSON))) - headerEnd; padding > 0 {
		if _, err := dst.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := dst.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}
