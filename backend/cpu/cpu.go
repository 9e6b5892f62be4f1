// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"github.com/born-ml/fusedopt/internal/backend"
	internalcpu "github.com/born-ml/fusedopt/internal/backend/cpu"
	"github.com/born-ml/fusedopt/tensor"
)

// FusedAdamArgs carries one parameter's buffers and the scalar
// hyperparameters for a single fused step. All tensors must share one shape,
// dtype and device; Param, Grad, ExpAvg and ExpAvgSq are updated in place.
type FusedAdamArgs = backend.FusedAdamArgs

// AdamMode selects how weight decay enters the update.
type AdamMode = backend.AdamMode

// Weight decay modes.
const (
	ModeOriginal AdamMode = backend.ModeOriginal // decay folded into the gradient
	ModeAdamW    AdamMode = backend.ModeAdamW    // decay applied to the parameter directly
)

// Compile-time check that the kernel satisfies the registry signature.
var _ backend.FusedAdamFn = FusedAdamStep

// FusedAdamStep applies one Adam/AdamW step to a CPU tensor in a single
// fused pass. It panics on malformed arguments; see the optim package for a
// driver that validates configuration up front.
//
// Example:
//
//	cpu.FusedAdamStep(cpu.FusedAdamArgs{
//	    Param:    param,
//	    Grad:     grad,
//	    ExpAvg:   m,
//	    ExpAvgSq: v,
//	    Step:     1,
//	    LR:       0.001,
//	    Beta1:    0.9,
//	    Beta2:    0.999,
//	    Eps:      1e-8,
//	})
func FusedAdamStep(args FusedAdamArgs) {
	internalcpu.FusedAdamStep(args)
}

// LaneCount reports how many elements of dt one hardware vector register
// holds. Block and shard boundaries are multiples of this count.
func LaneCount(dt tensor.DataType) int {
	return internalcpu.LaneCount(dt)
}

// VectorBits reports the SIMD register width the kernel blocks for: 512 when
// the CPU exposes AVX-512, otherwise 256.
func VectorBits() int {
	return internalcpu.VectorBits()
}
