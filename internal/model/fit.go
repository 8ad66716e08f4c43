package model

import (
	"context"
	"fmt"
	"time"

	"github.com/born-ml/kiln/internal/tensor"
)

// BatchSource supplies training batches. Batch i returns a batch-major
// input tensor and one label per sample.
type BatchSource interface {
	NumBatches() int
	Batch(i int) (x *tensor.Tensor, labels []int)
}

// ValidationSource is implemented by batch sources that also carry a
// held-out set evaluated at the end of every epoch.
type ValidationSource interface {
	Validation() (x *tensor.Tensor, labels []int, ok bool)
}

// EpochStats summarises one training epoch.
type EpochStats struct {
	Epoch         int     // 1-based epoch number
	TrainLoss     float64 // Mean batch loss
	TrainAccuracy float64 // Mean batch accuracy
	HasValidation bool
	ValLoss       float64
	ValAccuracy   float64
	Duration      time.Duration
}

// Callback is invoked after every epoch. A non-nil error stops Fit and is
// returned by it.
type Callback func(stats EpochStats) error

// Fit trains the model for the given number of epochs over source and
// returns the statistics of every completed epoch.
//
// The context is checked between batches; a cancelled context stops
// training after the batch in flight and Fit returns ctx.Err() together
// with the epochs completed so far.
func (m *Sequential) Fit(ctx context.Context, source BatchSource, epochs int, callbacks ...Callback) ([]EpochStats, error) {
	if m.registry == nil {
		return nil, fmt.Errorf("model: fit: %w", ErrNotCompiled)
	}
	batches := source.NumBatches()
	if batches <= 0 {
		return nil, fmt.Errorf("model: fit: batch source is empty")
	}

	history := make([]EpochStats, 0, epochs)
	for epoch := 1; epoch <= epochs; epoch++ {
		start := time.Now()
		var totalLoss, totalAcc float64
		for b := 0; b < batches; b++ {
			if err := ctx.Err(); err != nil {
				return history, err
			}
			x, labels := source.Batch(b)
			loss, acc, err := m.TrainStep(x, labels)
			if err != nil {
				return history, fmt.Errorf("model: epoch %d batch %d: %w", epoch, b, err)
			}
			totalLoss += loss
			totalAcc += acc
		}

		stats := EpochStats{
			Epoch:         epoch,
			TrainLoss:     totalLoss / float64(batches),
			TrainAccuracy: totalAcc / float64(batches),
		}
		if vs, ok := source.(ValidationSource); ok {
			if vx, vlabels, ok := vs.Validation(); ok {
				stats.ValLoss, stats.ValAccuracy = m.Evaluate(vx, vlabels)
				stats.HasValidation = true
			}
		}
		stats.Duration = time.Since(start)
		history = append(history, stats)

		for _, cb := range callbacks {
			if err := cb(stats); err != nil {
				return history, err
			}
		}
	}
	return history, nil
}

// SliceSource serves fixed-size batches from in-memory tensors.
//
// The last batch may be smaller than BatchSize. Batches are views over the
// source data, not copies.
type SliceSource struct {
	x         *tensor.Tensor
	labels    []int
	batchSize int

	valX      *tensor.Tensor
	valLabels []int
}

// NewSliceSource splits x (N, C, H, W) and its N labels into batches.
// A non-positive batchSize yields a single full batch. x must hold at
// least one sample.
func NewSliceSource(x *tensor.Tensor, labels []int, batchSize int) *SliceSource {
	if x.N() != len(labels) {
		panic(fmt.Sprintf("model: slice source has %d samples but %d labels", x.N(), len(labels)))
	}
	if x.N() == 0 {
		panic("model: slice source has no samples")
	}
	if batchSize <= 0 || batchSize > x.N() {
		batchSize = x.N()
	}
	return &SliceSource{x: x, labels: labels, batchSize: batchSize}
}

// WithValidation attaches a held-out set and returns s.
func (s *SliceSource) WithValidation(x *tensor.Tensor, labels []int) *SliceSource {
	if x.N() != len(labels) {
		panic(fmt.Sprintf("model: validation set has %d samples but %d labels", x.N(), len(labels)))
	}
	s.valX, s.valLabels = x, labels
	return s
}

// NumBatches returns ceil(N / batchSize).
func (s *SliceSource) NumBatches() int {
	return (s.x.N() + s.batchSize - 1) / s.batchSize
}

// Batch returns batch i.
func (s *SliceSource) Batch(i int) (*tensor.Tensor, []int) {
	start := i * s.batchSize
	end := min(start+s.batchSize, s.x.N())
	per := s.x.Len() / s.x.N()
	data := s.x.Data()[start*per : end*per]
	return tensor.Wrap(data, s.x.Shape().WithBatch(end-start)), s.labels[start:end]
}

// Validation returns the held-out set, if any.
func (s *SliceSource) Validation() (*tensor.Tensor, []int, bool) {
	return s.valX, s.valLabels, s.valX != nil
}
