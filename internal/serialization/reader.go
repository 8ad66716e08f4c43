package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/kiln/internal/tensor"
)

// Reader reads tensors from a .kiln file.
//
// The data section is read and checksummed when the reader is created;
// lookups afterwards are served from memory.
type Reader struct {
	header Header
	flags  uint32
	index  map[string]int // tensor name -> position in header.Tensors
	data   []byte
	closed bool
}

// ReaderOptions configures the behavior of Reader.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// NewReader opens a .kiln file with strict validation.
func NewReader(path string) (*Reader, error) {
	return NewReaderWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// NewReaderWithOptions opens a .kiln file with custom options.
func NewReaderWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	r, err := ReadFrom(file, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// ReadFrom parses a complete .kiln stream.
func ReadFrom(src io.Reader, opts ReaderOptions) (*Reader, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(src, fixed); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, fmt.Errorf("%w: got %q, expected %q", ErrInvalidMagic, fixed[0:4], MagicBytes)
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	r := &Reader{flags: binary.LittleEndian.Uint32(fixed[8:12])}
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	var stored [ChecksumSize]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(src, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header JSON: %w", err)
	}
	if err := json.Unmarshal(headerJSON, &r.header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	if r.header.Optimizer != nil {
		r.header.Optimizer.Step = int64(binary.LittleEndian.Uint64(fixed[StepOffset : StepOffset+8]))
	}

	padding := alignedDataOffset(int64(headerSize)) - int64(FixedHeaderSize) - int64(headerSize)
	if _, err := io.CopyN(io.Discard, src, padding); err != nil {
		return nil, fmt.Errorf("failed to skip padding: %w", err)
	}

	data, err := io.ReadAll(io.LimitReader(src, int64(dataSize)))
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if uint64(len(data)) != dataSize {
		return nil, fmt.Errorf("%w: data section has %d bytes, header says %d", ErrOutOfBounds, len(data), dataSize)
	}
	if !opts.SkipChecksumValidation && checksum(data) != stored {
		return nil, ErrChecksumMismatch
	}
	if err := ValidateHeader(&r.header, int64(len(data)), opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	r.data = data
	r.index = make(map[string]int, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		r.index[meta.Name] = i
	}
	return r, nil
}

// Header returns the file header.
func (r *Reader) Header() Header {
	return r.header
}

// HasOptimizer reports whether the file carries optimizer state.
func (r *Reader) HasOptimizer() bool {
	return r.flags&FlagHasOptimizer != 0 && r.header.Optimizer != nil
}

// Metadata returns the metadata map from the header.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns all tensor names in file order.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns the metadata of a tensor.
func (r *Reader) TensorInfo(name string) (TensorMeta, error) {
	i, ok := r.index[name]
	if !ok {
		return TensorMeta{}, fmt.Errorf("%w: %q", ErrMissingTensor, name)
	}
	return r.header.Tensors[i], nil
}

// LoadTensor decodes a tensor into a new allocation.
func (r *Reader) LoadTensor(name string) (*tensor.Tensor, error) {
	if r.closed {
		return nil, fmt.Errorf("reader: %w", ErrClosed)
	}
	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	if err := validateTensorMeta(meta); err != nil {
		return nil, err
	}
	t := tensor.New(tensor.Shape(meta.Shape))
	decodeFloats(t.Data(), r.data[meta.Offset:meta.Offset+meta.Size])
	return t, nil
}

// LoadInto decodes a tensor into dst. The stored element count must equal
// dst's; shapes are otherwise not compared.
func (r *Reader) LoadInto(name string, dst *tensor.Tensor) error {
	if r.closed {
		return fmt.Errorf("reader: %w", ErrClosed)
	}
	meta, err := r.TensorInfo(name)
	if err != nil {
		return err
	}
	if want := int64(dst.Len() * bytesPerElement); meta.Size != want {
		return fmt.Errorf("%w: %q stores %d elements, live tensor has %d", ErrSizeMismatch, name, meta.Size/bytesPerElement, dst.Len())
	}
	decodeFloats(dst.Data(), r.data[meta.Offset:meta.Offset+meta.Size])
	return nil
}

// ReadAll decodes every tensor.
func (r *Reader) ReadAll() (map[string]*tensor.Tensor, error) {
	out := make(map[string]*tensor.Tensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		t, err := r.LoadTensor(meta.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to load tensor %s: %w", meta.Name, err)
		}
		out[meta.Name] = t
	}
	return out, nil
}

// Close releases the decoded data.
func (r *Reader) Close() error {
	r.closed = true
	r.data = nil
	return nil
}
