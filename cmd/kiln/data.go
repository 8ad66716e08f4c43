package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/born-ml/kiln/tensor"
)

// IDX magic numbers for unsigned-byte images and labels.
const (
	idxImageMagic = 0x00000803
	idxLabelMagic = 0x00000801
)

// dataset holds images (N, 1, H, W) normalised to [0, 1] and their labels.
type dataset struct {
	images  *tensor.Tensor
	labels  []int
	classes int
}

func (d *dataset) len() int { return len(d.labels) }

// split returns the first (1-valFraction) of d for training and the rest
// for validation. valFraction must be in [0, 1) and leave at least one
// training sample.
func (d *dataset) split(valFraction float64) (train, val *dataset, err error) {
	if valFraction < 0 || valFraction >= 1 {
		return nil, nil, fmt.Errorf("validation fraction %g outside [0, 1)", valFraction)
	}
	n := d.len()
	nVal := int(float64(n) * valFraction)
	nTrain := n - nVal
	if nTrain == 0 {
		return nil, nil, fmt.Errorf("validation fraction %g leaves no training samples out of %d", valFraction, n)
	}
	per := d.images.Len() / n
	shape := d.images.Shape()

	train = &dataset{
		images:  tensor.Wrap(d.images.Data()[:nTrain*per], shape.WithBatch(nTrain)),
		labels:  d.labels[:nTrain],
		classes: d.classes,
	}
	if nVal == 0 {
		return train, nil, nil
	}
	val = &dataset{
		images:  tensor.Wrap(d.images.Data()[nTrain*per:], shape.WithBatch(nVal)),
		labels:  d.labels[nTrain:],
		classes: d.classes,
	}
	return train, val, nil
}

// loadMNIST reads the IDX files of the MNIST training or test set from
// dir. maxSamples <= 0 loads everything.
//
// Expected files in dir:
//   - train-images-idx3-ubyte, train-labels-idx1-ubyte
//   - t10k-images-idx3-ubyte, t10k-labels-idx1-ubyte
func loadMNIST(dir string, train bool, maxSamples int) (*dataset, error) {
	prefix := "t10k"
	if train {
		prefix = "train"
	}
	images, err := readIDXImages(filepath.Join(dir, prefix+"-images-idx3-ubyte"), maxSamples)
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}
	labels, err := readIDXLabels(filepath.Join(dir, prefix+"-labels-idx1-ubyte"), maxSamples)
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}
	if images.N() != len(labels) {
		return nil, fmt.Errorf("image count (%d) != label count (%d)", images.N(), len(labels))
	}
	return &dataset{images: images, labels: labels, classes: 10}, nil
}

// readIDXImages reads an IDX image file:
//
//	magic number: 0x00000803
//	number of images, rows, cols: big-endian uint32 each
//	pixel data: unsigned bytes (0-255)
func readIDXImages(path string, maxSamples int) (*tensor.Tensor, error) {
	//nolint:gosec // G304: dataset path comes from a command-line flag
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var head [4]uint32
	if err := binary.Read(file, binary.BigEndian, &head); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if head[0] != idxImageMagic {
		return nil, fmt.Errorf("invalid magic number: got %#x, want %#x", head[0], idxImageMagic)
	}
	n, rows, cols := int(head[1]), int(head[2]), int(head[3])
	if maxSamples > 0 && n > maxSamples {
		n = maxSamples
	}

	raw := make([]byte, n*rows*cols)
	if _, err := io.ReadFull(file, raw); err != nil {
		return nil, fmt.Errorf("failed to read pixels: %w", err)
	}
	images := tensor.New(tensor.Shape{n, 1, rows, cols})
	for i, px := range raw {
		images.Data()[i] = float32(px) / 255
	}
	return images, nil
}

// readIDXLabels reads an IDX label file:
//
//	magic number: 0x00000801
//	number of labels: big-endian uint32
//	label data: unsigned bytes
func readIDXLabels(path string, maxSamples int) ([]int, error) {
	//nolint:gosec // G304: dataset path comes from a command-line flag
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var head [2]uint32
	if err := binary.Read(file, binary.BigEndian, &head); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if head[0] != idxLabelMagic {
		return nil, fmt.Errorf("invalid magic number: got %#x, want %#x", head[0], idxLabelMagic)
	}
	n := int(head[1])
	if maxSamples > 0 && n > maxSamples {
		n = maxSamples
	}

	raw := make([]byte, n)
	if _, err := io.ReadFull(file, raw); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	labels := make([]int, n)
	for i, l := range raw {
		labels[i] = int(l)
	}
	return labels, nil
}

// syntheticDigits generates n noisy size x size images of `classes`
// horizontal bars: class k lights a band of rows starting at k*size/classes.
// This is not MNIST, only a quick separable problem to exercise the
// pipeline without downloads.
func syntheticDigits(n, size, classes int, rng *rand.Rand) *dataset {
	images := tensor.New(tensor.Shape{n, 1, size, size})
	labels := make([]int, n)
	band := max(size/classes, 1)
	data := images.Data()
	for i := range labels {
		label := rng.Intn(classes)
		labels[i] = label
		img := data[i*size*size : (i+1)*size*size]
		for j := range img {
			img[j] = 0.1 * float32(rng.Float64())
		}
		start := label * size / classes
		for row := start; row < start+band && row < size; row++ {
			for col := 1; col < size-1; col++ {
				img[row*size+col] = 0.8 + 0.2*float32(rng.Float64())
			}
		}
	}
	return &dataset{images: images, labels: labels, classes: classes}
}
