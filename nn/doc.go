// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers of a kiln model.
//
// # Overview
//
// This package contains:
//   - Layers: Dense, Conv2D, BatchNorm, MaxPool2D, GlobalAveragePooling2D,
//     Upsampling2D, Flatten, Reshape, Dropout
//   - Activations: ReLU, LeakyReLU, Sigmoid, Tanh, Swish, Mish, Softmax,
//     CustomActivation
//   - Losses: CrossEntropy, BinaryCrossEntropy, MeanSquaredError
//   - Utilities: Layer interface, Parameter, Namer, GradientRegistry
//
// # Basic Usage
//
// Layers are usually added to a model.Sequential, which builds them with
// the right input shape:
//
//	import (
//	    "github.com/born-ml/kiln/model"
//	    "github.com/born-ml/kiln/nn"
//	    "github.com/born-ml/kiln/tensor"
//	)
//
//	func main() {
//	    m := model.New(model.WithInputShape(tensor.Shape{1, 1, 28, 28}))
//	    m.MustAdd(
//	        nn.NewConv2D(nn.Conv2DConfig{Filters: 8, KernelSize: 3}),
//	        nn.NewReLU(),
//	        nn.NewMaxPool2D(2, 2),
//	        nn.NewFlatten(),
//	        nn.NewDense(nn.DenseConfig{Units: 10}),
//	        nn.NewSoftmax(),
//	    )
//	}
//
// # Layouts
//
// Convolutional layers work on batch-major (N, C, H, W) tensors. Dense
// layers emit feature-major (features, N, 1, 1) tensors, one sample per
// column. Shape-preserving layers keep whatever layout they receive.
//
// # Gradients
//
// Layers compute their own gradients. Gradient clipping is always on by
// default and can be tuned or disabled per layer through Clip.
package nn
