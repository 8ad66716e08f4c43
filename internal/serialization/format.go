package serialization

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"time"

	"github.com/born-ml/kiln/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "KILN"
	FormatVersion   = 1
	HeaderAlignment = 64   // Tensor data starts on a 64-byte boundary
	FixedHeaderSize = 72   // 0x48 bytes
	ChecksumSize    = 32   // SHA-256
	ChecksumOffset  = 0x20 // Checksum position in the fixed header
	StepOffset      = 0x40 // Optimizer step counter (int64 LE) in the fixed header
	DTypeFloat32    = "float32"
	bytesPerElement = 4
	kilnVersion     = "0.1.0"
)

// Flags for the .kiln format.
const (
	FlagHasOptimizer uint32 = 1 << 0 // optimizer state included
	FlagHasMetadata  uint32 = 1 << 1 // custom metadata included
)

// Header is the JSON header of a .kiln file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	KilnVersion   string            `json:"kiln_version"`
	ModelType     string            `json:"model_type"`
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Optimizer     *OptimizerMeta    `json:"optimizer,omitempty"`
}

// OptimizerMeta records the optimizer that produced the saved state.
type OptimizerMeta struct {
	Name         string  `json:"name"`          // "adam", "sgd", ...
	Step         int64   `json:"-"`             // global step counter, kept in the fixed header
	LearningRate float32 `json:"learning_rate"` // at save time
}

// TensorMeta describes a tensor in the .kiln file.
type TensorMeta struct {
	Name   string `json:"name"`   // Key, e.g. "dense_1/weights"
	DType  string `json:"dtype"`  // Always "float32"
	Shape  []int  `json:"shape"`  // (N, C, H, W)
	Offset int64  `json:"offset"` // Bytes from the start of the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// NamedTensor pairs a key with the tensor stored under it.
type NamedTensor struct {
	Name  string
	Value *tensor.Tensor
}

// alignedDataOffset returns where the data section starts for a JSON
// header of headerSize bytes.
func alignedDataOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}

// encodeFloats appends data as little-endian float32.
func encodeFloats(dst []byte, data []float32) []byte {
	for _, v := range data {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// decodeFloats fills dst from little-endian float32 bytes.
func decodeFloats(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*bytesPerElement:]))
	}
}

func checksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}
