package main

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kiln/model"
	"github.com/born-ml/kiln/tensor"
)

func writeIDX(t *testing.T, path string, header []uint32, payload []byte) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, header))
	buf.Write(payload)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestLoadMNIST(t *testing.T) {
	dir := t.TempDir()
	pixels := make([]byte, 3*2*2)
	for i := range pixels {
		pixels[i] = byte(i * 20)
	}
	writeIDX(t, filepath.Join(dir, "train-images-idx3-ubyte"), []uint32{idxImageMagic, 3, 2, 2}, pixels)
	writeIDX(t, filepath.Join(dir, "train-labels-idx1-ubyte"), []uint32{idxLabelMagic, 3}, []byte{7, 0, 9})

	data, err := loadMNIST(dir, true, 0)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 1, 2, 2}, data.images.Shape())
	assert.Equal(t, []int{7, 0, 9}, data.labels)
	assert.InDelta(t, 20.0/255, data.images.At(0, 0, 0, 1), 1e-6)
	assert.InDelta(t, 220.0/255, data.images.At(2, 0, 1, 1), 1e-6)

	limited, err := loadMNIST(dir, true, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, limited.len())

	_, err = loadMNIST(dir, false, 0)
	assert.Error(t, err, "test set files are absent")
}

func TestReadIDXRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels")
	writeIDX(t, path, []uint32{idxImageMagic, 1}, []byte{1})
	_, err := readIDXLabels(path, 0)
	assert.ErrorContains(t, err, "invalid magic number")
}

func TestSplit(t *testing.T) {
	data := syntheticDigits(10, 8, 4, rand.New(rand.NewSource(1)))
	train, val, err := data.split(0.3)
	require.NoError(t, err)
	assert.Equal(t, 7, train.len())
	require.NotNil(t, val)
	assert.Equal(t, 3, val.len())
	assert.Equal(t, tensor.Shape{3, 1, 8, 8}, val.images.Shape())
	assert.Equal(t, data.images.At(7, 0, 2, 3), val.images.At(0, 0, 2, 3))

	all, none, err := data.split(0)
	require.NoError(t, err)
	assert.Equal(t, 10, all.len())
	assert.Nil(t, none)
}

func TestSplitKeepsTrainingSamples(t *testing.T) {
	data := syntheticDigits(10, 8, 4, rand.New(rand.NewSource(1)))
	for _, fraction := range []float64{1, 1.5, -0.1} {
		_, _, err := data.split(fraction)
		assert.Error(t, err, "fraction %g", fraction)
	}

	tiny := syntheticDigits(1, 8, 4, rand.New(rand.NewSource(1)))
	train, val, err := tiny.split(0.99)
	require.NoError(t, err)
	assert.Equal(t, 1, train.len())
	assert.Nil(t, val)
}

func TestSyntheticDigitsLightTheirBand(t *testing.T) {
	data := syntheticDigits(20, 10, 5, rand.New(rand.NewSource(2)))
	for i, label := range data.labels {
		row := label * 2
		assert.Greater(t, data.images.At(i, 0, row, 5), float32(0.5), "sample %d", i)
	}
}

func TestArchitecturesBuild(t *testing.T) {
	for _, arch := range []string{"cnn", "mlp"} {
		m := model.New(model.WithInputShape(tensor.Shape{1, 1, 28, 28}), model.WithSerial(), model.WithSeed(1))
		require.NoError(t, addLayers(m, arch, 10), arch)
		assert.Equal(t, tensor.Shape{1, 10, 1, 1}, m.OutputShape(), arch)
	}
	assert.Error(t, addLayers(model.New(), "rnn", 10))

	for _, name := range []string{"adam", "SGD", "rmsprop", "adagrad"} {
		opt, err := newOptimizer(name, 0.01)
		require.NoError(t, err)
		assert.InDelta(t, 0.01, opt.LearningRate(), 1e-9)
	}
	_, err := newOptimizer("lbfgs", 0.01)
	assert.Error(t, err)
}
