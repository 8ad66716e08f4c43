// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package model provides the Sequential model that trains kiln layers.
//
// # Basic Usage
//
//	m := model.New(
//	    model.WithInputShape(tensor.Shape{1, 1, 28, 28}),
//	    model.WithSeed(42),
//	)
//	m.MustAdd(
//	    nn.NewConv2D(nn.Conv2DConfig{Filters: 8, KernelSize: 3, Padding: nn.Same}),
//	    nn.NewReLU(),
//	    nn.NewMaxPool2D(2, 2),
//	    nn.NewFlatten(),
//	    nn.NewDense(nn.DenseConfig{Units: 10}),
//	    nn.NewSoftmax(),
//	)
//	if err := m.Compile(optim.NewAdam(optim.DefaultAdamConfig())); err != nil {
//	    log.Fatal(err)
//	}
//
//	source := model.NewSliceSource(images, labels, 32).WithValidation(valImages, valLabels)
//	best := model.NewBestCheckpoint(m, model.ValAccuracy, "best.kiln")
//	history, err := m.Fit(ctx, source, 10, best.Callback())
//
// # Persistence
//
// Save writes every parameter, BatchNorm running statistics and the
// optimizer state into a single .kiln file. Load restores them into a model
// of the same architecture.
package model

import (
	"github.com/born-ml/kiln/internal/model"
	"github.com/born-ml/kiln/internal/parallel"
	"github.com/born-ml/kiln/internal/tensor"
)

// Sequential is a linear stack of layers.
type Sequential = model.Sequential

// Option configures a Sequential model.
type Option = model.Option

// LayerInfo describes one layer for display.
type LayerInfo = model.LayerInfo

// UnbuiltModelError reports a layer that could not be built.
type UnbuiltModelError = model.UnbuiltModelError

// Model errors.
var (
	ErrEmptyModel        = model.ErrEmptyModel
	ErrNotCompiled       = model.ErrNotCompiled
	ErrCompiled          = model.ErrCompiled
	ErrOptimizerMismatch = model.ErrOptimizerMismatch
)

// New creates an empty model.
func New(opts ...Option) *Sequential {
	return model.New(opts...)
}

// WithInputShape sets the per-sample input shape of the first layer.
func WithInputShape(shape tensor.Shape) Option {
	return model.WithInputShape(shape)
}

// WithWorkers spreads layer kernels over n goroutines; n <= 1 runs
// single-threaded. The default uses one worker per CPU.
func WithWorkers(n int) Option {
	if n <= 1 {
		return WithSerial()
	}
	return model.WithParallel(parallel.Config{Backend: parallel.Pool, Workers: n, MinChunk: 1})
}

// WithSerial runs every layer single-threaded, for reproducible results.
func WithSerial() Option {
	return model.WithParallel(parallel.SerialConfig())
}

// WithSeed makes initialisation and dropout reproducible.
func WithSeed(seed int64) Option {
	return model.WithSeed(seed)
}

// WithName sets the model name stored in saved files.
func WithName(name string) Option {
	return model.WithName(name)
}

// IsFormatError reports whether err came from a malformed or mismatched
// model file.
func IsFormatError(err error) bool {
	return model.IsFormatError(err)
}

// Training

// BatchSource supplies training batches.
type BatchSource = model.BatchSource

// ValidationSource is a batch source with a held-out set.
type ValidationSource = model.ValidationSource

// SliceSource serves batches from in-memory tensors.
type SliceSource = model.SliceSource

// EpochStats summarises one training epoch.
type EpochStats = model.EpochStats

// Callback is invoked after every epoch.
type Callback = model.Callback

// NewSliceSource splits x and labels into batches of batchSize.
func NewSliceSource(x *tensor.Tensor, labels []int, batchSize int) *SliceSource {
	return model.NewSliceSource(x, labels, batchSize)
}

// Checkpointing

// Metric selects an EpochStats value monitored by BestCheckpoint.
type Metric = model.Metric

// Monitored metrics.
const (
	ValLoss       = model.ValLoss
	ValAccuracy   = model.ValAccuracy
	TrainLoss     = model.TrainLoss
	TrainAccuracy = model.TrainAccuracy
)

// ParseMetric returns the metric with the given name, such as "val_loss".
func ParseMetric(name string) (Metric, error) {
	return model.ParseMetric(name)
}

// BestCheckpoint saves the model when a monitored metric improves.
type BestCheckpoint = model.BestCheckpoint

// NewBestCheckpoint creates a checkpoint callback writing to path.
func NewBestCheckpoint(m *Sequential, metric Metric, path string) *BestCheckpoint {
	return model.NewBestCheckpoint(m, metric, path)
}
