// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/kiln/internal/nn"
	"github.com/born-ml/kiln/internal/tensor"
)

// Layer is the contract every layer kind implements.
type Layer = nn.Layer

// Trainable is a layer that owns parameters updated by an optimizer.
type Trainable = nn.Trainable

// Buffered is a layer holding persistent non-trainable state.
type Buffered = nn.Buffered

// Head is an output layer whose backward pass is fused with its loss.
type Head = nn.Head

// InputDeclarer is a layer that can carry its own input shape.
type InputDeclarer = nn.InputDeclarer

// Parameter is a named tensor with its gradient.
type Parameter = nn.Parameter

// BuildContext carries what a layer needs to allocate its state.
type BuildContext = nn.BuildContext

// Namer hands out model-unique layer names.
type Namer = nn.Namer

// GradientRegistry maps trainable layer names to gradient tensors.
type GradientRegistry = nn.GradientRegistry

// NewNamer creates a Namer with all counters at zero.
func NewNamer() *Namer {
	return nn.NewNamer()
}

// NewGradientRegistry registers layers in order.
func NewGradientRegistry(layers []Trainable) *GradientRegistry {
	return nn.NewGradientRegistry(layers)
}

// Kind identifies a layer type.
type Kind = nn.Kind

// Layer kinds.
const (
	KindDense     = nn.KindDense
	KindConv2D    = nn.KindConv2D
	KindBatchNorm = nn.KindBatchNorm
	KindReLU      = nn.KindReLU
	KindLeakyReLU = nn.KindLeakyReLU
	KindSigmoid   = nn.KindSigmoid
	KindTanh      = nn.KindTanh
	KindSoftmax   = nn.KindSoftmax
	KindMish      = nn.KindMish
	KindSwish     = nn.KindSwish
	KindFlatten   = nn.KindFlatten
	KindMaxPool2D = nn.KindMaxPool2D
	KindDropout   = nn.KindDropout

	KindReshape                = nn.KindReshape
	KindUpsampling2D           = nn.KindUpsampling2D
	KindGlobalAveragePooling2D = nn.KindGlobalAveragePooling2D
	KindCustomActivation       = nn.KindCustomActivation
)

// Layout describes how a batch is arranged in a tensor.
type Layout = nn.Layout

// Layouts.
const (
	BatchMajor   = nn.BatchMajor
	FeatureMajor = nn.FeatureMajor
)

// Clip configures gradient clipping for a trainable layer.
type Clip = nn.Clip

// Layers

// Dense is a fully connected layer.
type Dense = nn.Dense

// DenseConfig configures a Dense layer.
type DenseConfig = nn.DenseConfig

// NewDense creates an unbuilt Dense layer.
//
// Example:
//
//	dense := nn.NewDense(nn.DenseConfig{Units: 10})
func NewDense(cfg DenseConfig) *Dense {
	return nn.NewDense(cfg)
}

// Conv2D is a 2D convolutional layer.
type Conv2D = nn.Conv2D

// Conv2DConfig configures a Conv2D layer.
type Conv2DConfig = nn.Conv2DConfig

// Padding selects how Conv2D treats image borders.
type Padding = nn.Padding

// Padding modes.
const (
	Valid = nn.Valid
	Same  = nn.Same
)

// NewConv2D creates an unbuilt Conv2D layer.
//
// Example:
//
//	conv := nn.NewConv2D(nn.Conv2DConfig{Filters: 8, KernelSize: 3, Padding: nn.Same})
func NewConv2D(cfg Conv2DConfig) *Conv2D {
	return nn.NewConv2D(cfg)
}

// ConvOutputSize returns the output extent and leading padding of one
// spatial axis.
func ConvOutputSize(in, kernel, stride int, padding Padding) (out, padBefore int) {
	return nn.ConvOutputSize(in, kernel, stride, padding)
}

// BatchNorm normalizes each channel.
type BatchNorm = nn.BatchNorm

// BatchNormConfig configures a BatchNorm layer.
type BatchNormConfig = nn.BatchNormConfig

// DefaultBatchNormConfig returns momentum 0.9 and epsilon 1e-5.
func DefaultBatchNormConfig() BatchNormConfig {
	return nn.DefaultBatchNormConfig()
}

// NewBatchNorm creates an unbuilt BatchNorm layer.
func NewBatchNorm(cfg BatchNormConfig) *BatchNorm {
	return nn.NewBatchNorm(cfg)
}

// MaxPool2D takes the maximum over square windows.
type MaxPool2D = nn.MaxPool2D

// NewMaxPool2D creates a max pooling layer; stride 0 equals poolSize.
func NewMaxPool2D(poolSize, stride int) *MaxPool2D {
	return nn.NewMaxPool2D(poolSize, stride)
}

// Flatten collapses (N, C, H, W) into (N, C*H*W, 1, 1).
type Flatten = nn.Flatten

// NewFlatten creates a Flatten layer.
func NewFlatten() *Flatten {
	return nn.NewFlatten()
}

// GlobalAveragePooling2D averages every channel over its spatial extent.
type GlobalAveragePooling2D = nn.GlobalAveragePooling2D

// NewGlobalAveragePooling2D creates a global average pooling layer.
func NewGlobalAveragePooling2D() *GlobalAveragePooling2D {
	return nn.NewGlobalAveragePooling2D()
}

// Upsampling2D repeats every pixel into a scale x scale block.
type Upsampling2D = nn.Upsampling2D

// NewUpsampling2D creates an upsampling layer with the given integer factor.
func NewUpsampling2D(scale int) *Upsampling2D {
	return nn.NewUpsampling2D(scale)
}

// Reshape rearranges each sample into (channels, height, width).
type Reshape = nn.Reshape

// NewReshape creates a layer reshaping samples to (channels, height, width).
func NewReshape(channels, height, width int) *Reshape {
	return nn.NewReshape(channels, height, width)
}

// Dropout zeroes a random fraction of activations during training.
type Dropout = nn.Dropout

// NewDropout creates a Dropout layer with the given drop rate.
func NewDropout(rate float32) *Dropout {
	return nn.NewDropout(rate)
}

// Activations

// Activation is an element-wise, parameter-free layer.
type Activation = nn.Activation

// Sigmoid is the logistic activation and binary classification head.
type Sigmoid = nn.Sigmoid

// Softmax normalizes each sample into a probability distribution.
type Softmax = nn.Softmax

// NewReLU creates max(0, x).
func NewReLU() *Activation { return nn.NewReLU() }

// NewLeakyReLU creates a leaky ReLU with negative slope alpha.
func NewLeakyReLU(alpha float32) *Activation { return nn.NewLeakyReLU(alpha) }

// NewTanh creates tanh(x).
func NewTanh() *Activation { return nn.NewTanh() }

// NewSwish creates x*sigmoid(x).
func NewSwish() *Activation { return nn.NewSwish() }

// NewMish creates x*tanh(softplus(x)).
func NewMish() *Activation { return nn.NewMish() }

// NewCustomActivation creates an element-wise activation from fn and its
// derivative deriv(x, fn(x)).
func NewCustomActivation(fn func(x float32) float32, deriv func(x, y float32) float32) *Activation {
	return nn.NewCustomActivation(fn, deriv)
}

// NewSigmoid creates 1/(1+e^-x).
func NewSigmoid() *Sigmoid { return nn.NewSigmoid() }

// NewSoftmax creates a Softmax layer.
func NewSoftmax() *Softmax { return nn.NewSoftmax() }

// Losses

// OneHot encodes labels as targets in the given layout.
func OneHot(labels []int, classes int, layout Layout) *tensor.Tensor {
	return nn.OneHot(labels, classes, layout)
}

// BinaryTargets encodes 0/1 labels as a single-unit target.
func BinaryTargets(labels []int, layout Layout) *tensor.Tensor {
	return nn.BinaryTargets(labels, layout)
}

// CrossEntropy returns the mean categorical cross-entropy.
func CrossEntropy(output *tensor.Tensor, labels []int, layout Layout) float64 {
	return nn.CrossEntropy(output, labels, layout)
}

// BinaryCrossEntropy returns the mean binary cross-entropy.
func BinaryCrossEntropy(output *tensor.Tensor, labels []int) float64 {
	return nn.BinaryCrossEntropy(output, labels)
}

// MeanSquaredError returns mean((output - target)²).
func MeanSquaredError(output, target *tensor.Tensor) float64 {
	return nn.MeanSquaredError(output, target)
}

// Predictions returns the predicted class of every sample.
func Predictions(output *tensor.Tensor, layout Layout) []int {
	return nn.Predictions(output, layout)
}

// Accuracy returns the fraction of predictions equal to labels.
func Accuracy(predictions, labels []int) float64 {
	return nn.Accuracy(predictions, labels)
}
