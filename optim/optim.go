// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/fusedopt/internal/backend"
	"github.com/born-ml/fusedopt/internal/optim"
	"github.com/born-ml/fusedopt/tensor"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Parameter pairs a named value tensor with its gradient.
type Parameter = optim.Parameter

// NewParameter wraps a value tensor as a trainable parameter.
//
// Example:
//
//	w, _ := tensor.FromFloat32(weights, tensor.Shape{784, 10})
//	param := optim.NewParameter("fc.weight", w)
func NewParameter(name string, value *tensor.RawTensor) *Parameter {
	return optim.NewParameter(name, value)
}

// AdamMode selects how weight decay enters the Adam update.
type AdamMode = backend.AdamMode

// Weight decay modes.
const (
	// ModeOriginal folds weight decay into the gradient (classic Adam).
	ModeOriginal AdamMode = backend.ModeOriginal
	// ModeAdamW decays the parameter directly, decoupled from the gradient.
	ModeAdamW AdamMode = backend.ModeAdamW
)

// ParseAdamMode resolves a weight decay mode name ("adam", "adamw").
func ParseAdamMode(name string) (AdamMode, bool) {
	return backend.ParseAdamMode(name)
}

// Adam (Adaptive Moment Estimation)

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for the Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer with bias correction.
//
// Example:
//
//	optimizer, err := optim.NewAdam(
//	    params,
//	    optim.AdamConfig{
//	        LR:    0.001,
//	        Betas: [2]float64{0.9, 0.999},
//	        Eps:   1e-8,
//	    },
//	)
func NewAdam(params []*Parameter, config AdamConfig) (*Adam, error) {
	return optim.NewAdam(params, config)
}

// NewAdamW creates an Adam optimizer with decoupled weight decay
// (Loshchilov & Hutter). A zero WeightDecay defaults to 0.01.
//
// Example:
//
//	optimizer, err := optim.NewAdamW(
//	    params,
//	    optim.AdamConfig{
//	        LR:          3e-4,
//	        WeightDecay: 0.01,
//	    },
//	)
func NewAdamW(params []*Parameter, config AdamConfig) (*Adam, error) {
	return optim.NewAdamW(params, config)
}

// Learning rate schedules

// CosineSchedule returns the learning rate for step under linear warmup
// followed by cosine decay from maxLR to minLR over totalSteps.
//
// Example:
//
//	optimizer.SetLR(optim.CosineSchedule(step, 100, 10000, 3e-4, 3e-5))
func CosineSchedule(step, warmupSteps, totalSteps int, maxLR, minLR float64) float64 {
	return optim.CosineSchedule(step, warmupSteps, totalSteps, maxLR, minLR)
}

// ClipGradNorm rescales all gradients in place so their global L2 norm does
// not exceed maxNorm. It returns the norm measured before clipping.
//
// Example:
//
//	norm := optim.ClipGradNorm(params, 1.0)
func ClipGradNorm(params []*Parameter, maxNorm float64) float64 {
	return optim.ClipGradNorm(params, maxNorm)
}
