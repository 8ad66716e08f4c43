// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training kiln models.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with optional (Nesterov) momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - RMSprop: running mean of squared gradients, optional momentum
//   - AdaGrad: accumulated squared gradients
//   - Optimizer interface shared by all of them
//
// # Basic Usage
//
// An optimizer is handed to model.Sequential.Compile, which attaches it to
// every trainable layer:
//
//	opt := optim.NewAdam(optim.AdamConfig{LearningRate: 0.001})
//	if err := m.Compile(opt); err != nil {
//	    log.Fatal(err)
//	}
//
// # Training Loop Pattern
//
// Compile does the bookkeeping; a manual step looks like:
//
//	out := m.Forward(x, true)
//	m.Backward(m.Targets(labels))
//	opt.Apply(m.Registry())
//
// # State
//
// State and LoadState expose every moment tensor, keyed
// "<layer>/<param>/<moment>", so training can be resumed from a saved
// model file.
package optim
