// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/kiln/internal/optim"
)

// Optimizer is the interface shared by all optimizers.
type Optimizer = optim.Optimizer

// StateTensor is one moment tensor of an optimizer.
type StateTensor = optim.StateTensor

// ErrStateMismatch is returned when loaded state does not fit the attached
// layers.
var ErrStateMismatch = optim.ErrStateMismatch

// SGD (Stochastic Gradient Descent)

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD.
type SGDConfig = optim.SGDConfig

// DefaultSGDConfig returns learning rate 0.01 without momentum.
func DefaultSGDConfig() SGDConfig {
	return optim.DefaultSGDConfig()
}

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	opt := optim.NewSGD(optim.SGDConfig{LearningRate: 0.01, Momentum: 0.9})
func NewSGD(cfg SGDConfig) *SGD {
	return optim.NewSGD(cfg)
}

// Adam (Adaptive Moment Estimation)

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam.
type AdamConfig = optim.AdamConfig

// DefaultAdamConfig returns learning rate 0.001, betas 0.9/0.999 and
// epsilon 1e-8.
func DefaultAdamConfig() AdamConfig {
	return optim.DefaultAdamConfig()
}

// NewAdam creates a new Adam optimizer. Zero config fields take defaults.
func NewAdam(cfg AdamConfig) *Adam {
	return optim.NewAdam(cfg)
}

// RMSprop

// RMSprop represents the RMSprop optimizer.
type RMSprop = optim.RMSprop

// RMSpropConfig contains configuration for RMSprop.
type RMSpropConfig = optim.RMSpropConfig

// DefaultRMSpropConfig returns learning rate 0.001, rho 0.9 and epsilon 1e-8.
func DefaultRMSpropConfig() RMSpropConfig {
	return optim.DefaultRMSpropConfig()
}

// NewRMSprop creates a new RMSprop optimizer.
func NewRMSprop(cfg RMSpropConfig) *RMSprop {
	return optim.NewRMSprop(cfg)
}

// AdaGrad

// AdaGrad represents the AdaGrad optimizer.
type AdaGrad = optim.AdaGrad

// AdaGradConfig contains configuration for AdaGrad.
type AdaGradConfig = optim.AdaGradConfig

// DefaultAdaGradConfig returns learning rate 0.01 and epsilon 1e-8.
func DefaultAdaGradConfig() AdaGradConfig {
	return optim.DefaultAdaGradConfig()
}

// NewAdaGrad creates a new AdaGrad optimizer.
func NewAdaGrad(cfg AdaGradConfig) *AdaGrad {
	return optim.NewAdaGrad(cfg)
}
