// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/fusedopt/internal/tensor"
)

// DataType represents runtime type information for tensors.
type DataType = tensor.DataType

// Supported data types for tensors.
const (
	Float32  DataType = tensor.Float32
	Float64  DataType = tensor.Float64
	Float16  DataType = tensor.Float16
	BFloat16 DataType = tensor.BFloat16
)

// ParseDataType resolves a dtype name such as "float32" or "bf16".
// Recognized names match DataType.String() plus the short forms f32, f64,
// f16, and bf16.
//
// Example:
//
//	dt, ok := tensor.ParseDataType("bf16")
//	// dt == tensor.BFloat16, ok == true
func ParseDataType(name string) (DataType, bool) {
	return tensor.ParseDataType(name)
}

// Device represents the compute device a tensor lives on.
type Device = tensor.Device

// Supported compute devices.
const (
	CPU    Device = tensor.CPU
	CUDA   Device = tensor.CUDA
	Vulkan Device = tensor.Vulkan
	Metal  Device = tensor.Metal
	WebGPU Device = tensor.WebGPU
)

// Shape represents tensor dimensions.
type Shape = tensor.Shape

// Half-precision encodings

// F16 is an IEEE 754 binary16 value stored as its raw bit pattern.
type F16 = tensor.F16

// BF16 is a bfloat16 value stored as its raw bit pattern.
type BF16 = tensor.BF16

// F16FromFloat32 converts a float32 to IEEE binary16 with round-to-nearest-even.
//
// Example:
//
//	h := tensor.F16FromFloat32(1.5)
//	f := h.Float32()  // 1.5 exactly, representable in binary16
func F16FromFloat32(f float32) F16 {
	return tensor.F16FromFloat32(f)
}

// BF16FromFloat32 converts a float32 to bfloat16 with round-to-nearest-even.
//
// Example:
//
//	h := tensor.BF16FromFloat32(0.1)
//	f := h.Float32()  // 0.1 rounded to 8 mantissa bits
func BF16FromFloat32(f float32) BF16 {
	return tensor.BF16FromFloat32(f)
}
