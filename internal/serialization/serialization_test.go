package serialization

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kiln/internal/tensor"
)

func sampleTensors() []NamedTensor {
	rng := rand.New(rand.NewSource(1))
	return []NamedTensor{
		{Name: "conv_2d_1/filters", Value: tensor.RandNormal(tensor.Shape{4, 1, 3, 3}, 1, rng)},
		{Name: "conv_2d_1/biases", Value: tensor.RandNormal(tensor.Shape{4, 1, 1, 1}, 1, rng)},
		{Name: "optimizer/conv_2d_1/filters/m", Value: tensor.RandNormal(tensor.Shape{4, 1, 3, 3}, 1, rng)},
	}
}

func encode(t *testing.T, tensors []NamedTensor, header Header) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteTo(&buf, tensors, header))
	return buf.Bytes()
}

func TestRoundTripStream(t *testing.T) {
	tensors := sampleTensors()
	raw := encode(t, tensors, Header{
		ModelType: "sequential",
		Metadata:  map[string]string{"input_shape": "(1, 1, 8, 8)"},
		Optimizer: &OptimizerMeta{Name: "adam", Step: 12, LearningRate: 0.001},
	})

	assert.Equal(t, MagicBytes, string(raw[:4]))
	assert.Equal(t, uint32(FormatVersion), binary.LittleEndian.Uint32(raw[4:8]))
	assert.Equal(t, uint64(12), binary.LittleEndian.Uint64(raw[StepOffset:StepOffset+8]))
	headerSize := binary.LittleEndian.Uint64(raw[16:24])
	assert.NotContains(t, string(raw[FixedHeaderSize:FixedHeaderSize+int(headerSize)]), `"step"`)

	r, err := ReadFrom(bytes.NewReader(raw), ReaderOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"conv_2d_1/filters", "conv_2d_1/biases", "optimizer/conv_2d_1/filters/m"}, r.TensorNames())
	assert.True(t, r.HasOptimizer())
	assert.Equal(t, int64(12), r.Header().Optimizer.Step)
	assert.Equal(t, "(1, 1, 8, 8)", r.Metadata()["input_shape"])

	all, err := r.ReadAll()
	require.NoError(t, err)
	for _, nt := range tensors {
		got := all[nt.Name]
		require.NotNil(t, got, nt.Name)
		assert.Equal(t, nt.Value.Shape(), got.Shape())
		assert.Equal(t, nt.Value.Data(), got.Data(), "bit-exact payload for %s", nt.Name)
	}
}

func TestDataSectionAligned(t *testing.T) {
	tensors := sampleTensors()
	raw := encode(t, tensors, Header{})

	headerSize := binary.LittleEndian.Uint64(raw[16:24])
	dataSize := binary.LittleEndian.Uint64(raw[24:32])
	start := alignedDataOffset(int64(headerSize))
	assert.Zero(t, start%HeaderAlignment)
	assert.Equal(t, int(start)+int(dataSize), len(raw))

	// First payload value is the first filter weight, little-endian.
	want := tensors[0].Value.Data()[0]
	var got [1]float32
	decodeFloats(got[:], raw[start:start+4])
	assert.Equal(t, want, got[0])
}

func TestRoundTripFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.kiln")
	tensors := sampleTensors()

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(tensors, Header{ModelType: "sequential"}))
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Write(tensors, Header{}), ErrClosed)

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	dst := tensor.Zeros(tensor.Shape{4, 1, 3, 3})
	require.NoError(t, r.LoadInto("conv_2d_1/filters", dst))
	assert.True(t, dst.Equal(tensors[0].Value))
	assert.False(t, r.HasOptimizer())
}

func TestLoadIntoAcceptsSameCountDifferentShape(t *testing.T) {
	raw := encode(t, sampleTensors(), Header{})
	r, err := ReadFrom(bytes.NewReader(raw), ReaderOptions{})
	require.NoError(t, err)

	dst := tensor.Zeros(tensor.Shape{1, 36, 1, 1})
	assert.NoError(t, r.LoadInto("conv_2d_1/filters", dst))
}

func TestSizeMismatch(t *testing.T) {
	raw := encode(t, sampleTensors(), Header{})
	r, err := ReadFrom(bytes.NewReader(raw), ReaderOptions{})
	require.NoError(t, err)

	err = r.LoadInto("conv_2d_1/filters", tensor.Zeros(tensor.Shape{4, 2, 3, 3}))
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestMissingTensor(t *testing.T) {
	raw := encode(t, sampleTensors(), Header{})
	r, err := ReadFrom(bytes.NewReader(raw), ReaderOptions{})
	require.NoError(t, err)

	_, err = r.LoadTensor("dense_1/weights")
	assert.ErrorIs(t, err, ErrMissingTensor)
	assert.ErrorIs(t, r.LoadInto("dense_1/weights", tensor.Zeros(tensor.Shape{1, 1, 1, 1})), ErrMissingTensor)
}

func TestCorruptedChecksum(t *testing.T) {
	raw := encode(t, sampleTensors(), Header{})
	raw[len(raw)-1] ^= 0xFF

	_, err := ReadFrom(bytes.NewReader(raw), ReaderOptions{})
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	_, err = ReadFrom(bytes.NewReader(raw), ReaderOptions{SkipChecksumValidation: true})
	assert.NoError(t, err)
}

func TestCorruptedFileOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.kiln")
	raw := encode(t, sampleTensors(), Header{})
	raw[len(raw)-5] ^= 0x01
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err := NewReader(path)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestHeaderErrors(t *testing.T) {
	raw := encode(t, sampleTensors(), Header{})

	badMagic := append([]byte(nil), raw...)
	copy(badMagic, "BORN")
	_, err := ReadFrom(bytes.NewReader(badMagic), ReaderOptions{})
	assert.ErrorIs(t, err, ErrInvalidMagic)

	badVersion := append([]byte(nil), raw...)
	binary.LittleEndian.PutUint32(badVersion[4:8], 9)
	_, err = ReadFrom(bytes.NewReader(badVersion), ReaderOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	truncated := raw[:len(raw)-8]
	_, err = ReadFrom(bytes.NewReader(truncated), ReaderOptions{})
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = ReadFrom(bytes.NewReader(raw[:10]), ReaderOptions{})
	assert.Error(t, err)
}

func TestWriteRejectsBadNames(t *testing.T) {
	one := tensor.Zeros(tensor.Shape{1, 1, 1, 1})
	var buf bytes.Buffer

	err := WriteTo(&buf, []NamedTensor{{Name: "../escape", Value: one}}, Header{})
	assert.ErrorIs(t, err, ErrInvalidTensorName)

	err = WriteTo(&buf, []NamedTensor{{Name: "a/b", Value: one}, {Name: "a/b", Value: one}}, Header{})
	assert.ErrorIs(t, err, ErrDuplicateTensor)
}
