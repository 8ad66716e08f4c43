package model

import (
	"fmt"

	"github.com/born-ml/kiln/internal/nn"
	"github.com/born-ml/kiln/internal/tensor"
)

// Forward runs x through every layer and returns the model output.
// x is a batch-major (N, C, H, W) batch of the model input shape.
func (m *Sequential) Forward(x *tensor.Tensor, training bool) *tensor.Tensor {
	if len(m.records) == 0 {
		panic("model: " + ErrEmptyModel.Error())
	}
	out := x
	for _, r := range m.records {
		out = r.layer.Forward(out, training)
	}
	return out
}

// Backward back-propagates from target, which has the shape of the last
// output. An output head fuses its loss and starts from output - target;
// any other last layer receives output - target as its output gradient
// (the gradient of half the squared error). Returns the input gradient of
// the first layer.
func (m *Sequential) Backward(target *tensor.Tensor) *tensor.Tensor {
	last := m.last().layer
	if last.Output() == nil {
		panic(fmt.Sprintf("%s: backward called before forward", last.Name()))
	}

	var grad *tensor.Tensor
	if head, ok := last.(nn.Head); ok {
		grad = head.HeadBackward(target)
	} else {
		grad = last.Backward(last.Output().Sub(target))
	}
	for i := len(m.records) - 2; i >= 0; i-- {
		grad = m.records[i].layer.Backward(grad)
	}
	return grad
}

// Apply lets the optimizer update every trainable layer from the gradients
// of the last Backward.
func (m *Sequential) Apply() error {
	if m.registry == nil {
		return fmt.Errorf("model: apply: %w", ErrNotCompiled)
	}
	m.opt.Apply(m.registry)
	return nil
}

// Targets encodes labels in the shape and layout of the model output: 0/1
// targets for a single-unit output, one-hot targets otherwise.
func (m *Sequential) Targets(labels []int) *tensor.Tensor {
	layout := m.OutputLayout()
	classes := m.OutputShape().Cols()
	if classes == 1 {
		return nn.BinaryTargets(labels, layout)
	}
	return nn.OneHot(labels, classes, layout)
}

// Loss returns the cross-entropy of output against labels: binary for a
// single-unit output, categorical otherwise.
func (m *Sequential) Loss(output *tensor.Tensor, labels []int) float64 {
	if m.OutputShape().Cols() == 1 {
		return nn.BinaryCrossEntropy(output, labels)
	}
	return nn.CrossEntropy(output, labels, m.OutputLayout())
}

// TrainStep runs one forward/backward/update cycle on a batch and returns
// the batch loss and accuracy computed from the training-mode output.
func (m *Sequential) TrainStep(x *tensor.Tensor, labels []int) (loss, accuracy float64, err error) {
	if m.registry == nil {
		return 0, 0, fmt.Errorf("model: train step: %w", ErrNotCompiled)
	}
	if n := x.N(); n != len(labels) {
		return 0, 0, fmt.Errorf("model: train step: batch has %d samples but %d labels", n, len(labels))
	}

	out := m.Forward(x, true)
	m.Backward(m.Targets(labels))
	m.opt.Apply(m.registry)

	preds := nn.Predictions(out, m.OutputLayout())
	return m.Loss(out, labels), nn.Accuracy(preds, labels), nil
}

// Predict returns the predicted class of every sample in x. Single-unit
// outputs are thresholded at 0.5.
func (m *Sequential) Predict(x *tensor.Tensor) []int {
	out := m.Forward(x, false)
	return nn.Predictions(out, m.OutputLayout())
}

// Evaluate returns the loss and accuracy of the model on x in inference
// mode.
func (m *Sequential) Evaluate(x *tensor.Tensor, labels []int) (loss, accuracy float64) {
	out := m.Forward(x, false)
	preds := nn.Predictions(out, m.OutputLayout())
	return m.Loss(out, labels), nn.Accuracy(preds, labels)
}
