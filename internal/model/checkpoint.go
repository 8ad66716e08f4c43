package model

import (
	"fmt"
	"math"
)

// Metric selects an EpochStats value monitored by BestCheckpoint.
type Metric int

// Monitored metrics. Losses improve downwards, accuracies upwards.
const (
	ValLoss Metric = iota
	ValAccuracy
	TrainLoss
	TrainAccuracy
)

var metricNames = [...]string{
	ValLoss:       "val_loss",
	ValAccuracy:   "val_accuracy",
	TrainLoss:     "train_loss",
	TrainAccuracy: "train_accuracy",
}

// String returns the snake_case metric name.
func (m Metric) String() string {
	if m < 0 || int(m) >= len(metricNames) {
		return fmt.Sprintf("metric(%d)", int(m))
	}
	return metricNames[m]
}

// ParseMetric returns the metric with the given name.
func ParseMetric(name string) (Metric, error) {
	for i, n := range metricNames {
		if n == name {
			return Metric(i), nil
		}
	}
	return 0, fmt.Errorf("model: unknown metric %q", name)
}

func (m Metric) lowerIsBetter() bool {
	return m == ValLoss || m == TrainLoss
}

// value extracts the metric from stats; ok is false for validation metrics
// of an epoch without validation.
func (m Metric) value(stats EpochStats) (v float64, ok bool) {
	switch m {
	case ValLoss:
		return stats.ValLoss, stats.HasValidation
	case ValAccuracy:
		return stats.ValAccuracy, stats.HasValidation
	case TrainLoss:
		return stats.TrainLoss, true
	case TrainAccuracy:
		return stats.TrainAccuracy, true
	}
	return 0, false
}

// BestCheckpoint saves the model whenever the monitored metric improves
// on the best value seen so far.
//
// Example:
//
//	best := model.NewBestCheckpoint(m, model.ValAccuracy, "best.kiln")
//	_, err := m.Fit(ctx, source, 10, best.Callback())
type BestCheckpoint struct {
	model  *Sequential
	metric Metric
	path   string

	best      float64
	bestEpoch int
	saves     int
}

// NewBestCheckpoint creates a checkpoint callback writing to path.
func NewBestCheckpoint(m *Sequential, metric Metric, path string) *BestCheckpoint {
	b := &BestCheckpoint{model: m, metric: metric, path: path, best: math.Inf(-1)}
	if metric.lowerIsBetter() {
		b.best = math.Inf(1)
	}
	return b
}

// Callback returns the Fit callback.
func (b *BestCheckpoint) Callback() Callback {
	return b.observe
}

func (b *BestCheckpoint) observe(stats EpochStats) error {
	v, ok := b.metric.value(stats)
	if !ok || math.IsNaN(v) {
		return nil
	}
	improved := v > b.best
	if b.metric.lowerIsBetter() {
		improved = v < b.best
	}
	if !improved {
		return nil
	}
	if err := b.model.Save(b.path); err != nil {
		return fmt.Errorf("checkpoint %s: %w", b.metric, err)
	}
	b.best = v
	b.bestEpoch = stats.Epoch
	b.saves++
	return nil
}

// Best returns the best metric value and its epoch; epoch is 0 when
// nothing has been saved yet.
func (b *BestCheckpoint) Best() (value float64, epoch int) {
	return b.best, b.bestEpoch
}

// Saves returns how many times the model was written.
func (b *BestCheckpoint) Saves() int { return b.saves }

// Path returns the checkpoint file path.
func (b *BestCheckpoint) Path() string { return b.path }
