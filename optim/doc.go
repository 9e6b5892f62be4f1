// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the Adam and AdamW optimizers for training loops.
//
// # Overview
//
// This package contains:
//   - Adam: Adaptive Moment Estimation with bias correction
//   - AdamW: Adam with decoupled weight decay
//   - Optimizer interface for custom optimizers
//   - CosineSchedule for warmup plus cosine learning-rate decay
//
// Both optimizers default to the fused CPU kernel, which updates the
// parameter, both moment estimates, and the optional AMSGrad maximum in a
// single vectorized pass over each tensor. Setting AdamConfig.Fused to false
// selects a BLAS-based unfused path for float32 and float64 parameters.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/fusedopt/optim"
//	    "github.com/born-ml/fusedopt/tensor"
//	)
//
//	func main() {
//	    w, _ := tensor.FromFloat32(weights, tensor.Shape{784, 10})
//	    param := optim.NewParameter("fc.weight", w)
//
//	    optimizer, err := optim.NewAdamW(
//	        []*optim.Parameter{param},
//	        optim.AdamConfig{
//	            LR:    0.001,
//	            Betas: [2]float64{0.9, 0.999},
//	        },
//	    )
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    // Training loop
//	    for step := 0; step < numSteps; step++ {
//	        optimizer.ZeroGrad()
//	        param.SetGrad(computeGradient(param.Value()))
//	        optimizer.Step()
//	    }
//	}
//
// # Optimizers
//
// Adam (Adaptive Moment Estimation):
//
//	optimizer, err := optim.NewAdam(
//	    params,
//	    optim.AdamConfig{
//	        LR:    0.001,
//	        Betas: [2]float64{0.9, 0.999},
//	        Eps:   1e-8,
//	    },
//	)
//
// AdamW (decoupled weight decay, the transformer default):
//
//	optimizer, err := optim.NewAdamW(
//	    params,
//	    optim.AdamConfig{
//	        LR:          3e-4,
//	        WeightDecay: 0.01,
//	    },
//	)
//
// # Mixed Precision
//
// The fused kernel accepts float16 and bfloat16 parameters directly and
// carries out arithmetic in float32. When training with a loss-scaled
// backward pass, point AdamConfig.GradScale at the scale factor and the
// kernel unscales each gradient as part of the fused step, writing the
// unscaled values back to the gradient buffer.
//
// # Learning Rate Schedules
//
//	for step := 0; step < totalSteps; step++ {
//	    optimizer.SetLR(optim.CosineSchedule(step, warmup, totalSteps, maxLR, minLR))
//	    // ... forward, backward ...
//	    optimizer.Step()
//	}
//
// # Checkpointing
//
// SaveState writes the optimizer's timestep and moment buffers to a .bopt
// file; LoadState restores them into an optimizer built over the same
// parameter names. Parameter values themselves are checkpointed by whatever
// owns the model.
//
//	if err := optimizer.SaveState("adamw.bopt"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// later, in a fresh process
//	optimizer, _ := optim.NewAdamW(params, cfg)
//	if err := optimizer.LoadState("adamw.bopt"); err != nil {
//	    log.Fatal(err)
//	}
package optim
