// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the fused Adam/AdamW kernel for CPU tensors.
//
// # Overview
//
// This package implements a single-pass optimizer step with:
//   - Pure Go implementation (no CGO)
//   - One fused traversal updating parameter, moments, and AMSGrad maximum
//   - Float32, Float64, Float16, and BFloat16 parameter support
//   - Gradient unscaling for loss-scaled mixed-precision training
//   - Parallel sharding across GOMAXPROCS workers for large tensors
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/fusedopt/backend/cpu"
//	    "github.com/born-ml/fusedopt/tensor"
//	)
//
//	func step(param, grad, m, v *tensor.RawTensor, t float64) {
//	    cpu.FusedAdamStep(cpu.FusedAdamArgs{
//	        Param:    param,
//	        Grad:     grad,
//	        ExpAvg:   m,
//	        ExpAvgSq: v,
//	        Step:     t,
//	        LR:       0.001,
//	        Beta1:    0.9,
//	        Beta2:    0.999,
//	        Eps:      1e-8,
//	        Mode:     cpu.ModeAdamW,
//	    })
//	}
//
// Most callers reach this kernel through the optim package, which imports it
// for registration and manages the moment buffers and step count.
//
// # Performance
//
// The kernel walks each tensor in cache-friendly blocks sized to the hardware
// vector width: 8 float32 lanes per block on 256-bit SIMD machines, 16 under
// AVX-512. Tensors past a size threshold are sharded across workers. Block
// pass and scalar tail apply one identical update law, so results are
// bit-identical at every worker count and block width. Half-precision tensors
// decode to float32 registers, update, and re-encode in the same pass.
//
// # Thread Safety
//
// FusedAdamStep mutates its argument tensors in place. Calls on disjoint
// tensors are safe to run concurrently; two concurrent steps on the same
// tensor are not.
package cpu
