// Copyright 2025 Gogh ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides closure-driven optimizers.
//
// Optimizers re-evaluate the loss through a caller-supplied closure,
// which lets line-search methods like L-BFGS probe trial points.
package optim

import (
	"github.com/gogh-ml/gogh/internal/nn"
	"github.com/gogh-ml/gogh/internal/optim"
	"github.com/gogh-ml/gogh/internal/tensor"
)

// Closure re-evaluates the objective and returns the loss plus the
// gradients keyed by raw tensor.
type Closure = optim.Closure

// Optimizer is the common interface for all optimizers.
type Optimizer = optim.Optimizer

// LBFGS is a limited-memory quasi-Newton optimizer with strong Wolfe
// line search. It is the default optimizer for style transfer.
type LBFGS[B tensor.Backend] = optim.LBFGS[B]

// LBFGSConfig configures LBFGS. The zero value selects the defaults.
type LBFGSConfig = optim.LBFGSConfig

// NewLBFGS creates an L-BFGS optimizer over the given parameters.
//
// Example:
//
//	pixels := nn.NewParameter("pixels", img)
//	opt := optim.NewLBFGS([]*nn.Parameter[B]{pixels}, optim.LBFGSConfig{}, backend)
//	loss, err := opt.Step(closure)
func NewLBFGS[B tensor.Backend](params []*nn.Parameter[B], config LBFGSConfig, backend B) *LBFGS[B] {
	return optim.NewLBFGS(params, config, backend)
}

// Adam is a first-order optimizer with adaptive per-element learning
// rates, available as a cheaper alternative to LBFGS.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig configures Adam. The zero value selects the defaults.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer over the given parameters.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	return optim.NewAdam(params, config, backend)
}
