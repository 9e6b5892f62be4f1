// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense buffer types consumed by the fusedopt
// optimizer kernels.
//
// # Overview
//
// Tensors are the data structure every optimizer in fusedopt operates on.
// This package provides:
//   - Reference-counted raw tensors (RawTensor)
//   - Floating-point storage dtypes: float32, float64, float16, bfloat16
//   - Zero-copy views via Narrow
//   - Device tagging (CPU, CUDA)
//
// # Basic Usage
//
//	import "github.com/born-ml/fusedopt/tensor"
//
//	func main() {
//	    // Create a parameter buffer filled from a slice
//	    param, _ := tensor.FromFloat32([]float32{0.1, 0.2, 0.3}, tensor.Shape{3})
//
//	    // Allocate a zeroed moment buffer with the same geometry
//	    m, _ := tensor.NewRaw(param.Shape(), param.DType(), param.Device())
//
//	    // Type-safe data access
//	    data := param.AsFloat32()
//	    _ = data
//	}
//
// # Supported Data Types
//
// The storage dtypes mirror the precisions PyTorch's fused optimizers accept:
//   - Float32, Float64 (arithmetic runs in the storage precision)
//   - Float16, BFloat16 (stored as 16-bit words, arithmetic runs in float32)
//
// DataType.OpMath reports the arithmetic precision for a storage type. The
// half-precision encodings are exposed as F16 and BF16 with round-to-nearest
// conversions in both directions.
//
// # Device Support
//
// Every tensor carries a Device tag. Only CPU tensors are backed by memory in
// this module; the remaining constants exist so optimizer state can be
// validated against the device a kernel is registered for.
//
// # Memory Management
//
// The underlying data is reference-counted. Clone shares the buffer and bumps
// the count, Release drops it. Narrow returns a strided view over the parent
// buffer without copying; Contiguous packs a view into fresh storage.
package tensor
