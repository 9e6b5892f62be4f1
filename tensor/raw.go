// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/fusedopt/internal/tensor"
)

// RawTensor is the dense buffer type the optimizer kernels update in place.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Device()
//   - Type-safe data access via AsFloat32(), AsF16(), etc.
//   - Zero-copy strided views via Narrow()
//   - Reference counting via Clone() and Release()
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
//	data := raw.AsFloat32()  // Type-safe access
//	clone := raw.Clone()     // Shares buffer via reference counting
type RawTensor = tensor.RawTensor

// NewRaw creates a zero-filled raw tensor with the given shape, dtype, and
// device. Only CPU tensors are backed by memory.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromFloat32 creates a Float32 CPU tensor holding a copy of data.
//
// Example:
//
//	param, err := tensor.FromFloat32([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
func FromFloat32(data []float32, shape Shape) (*RawTensor, error) {
	return tensor.FromFloat32(data, shape)
}

// FromFloat64 creates a Float64 CPU tensor holding a copy of data.
func FromFloat64(data []float64, shape Shape) (*RawTensor, error) {
	return tensor.FromFloat64(data, shape)
}

// FromFloat32As creates a CPU tensor of the given storage dtype, narrowing
// each float32 value with round-to-nearest-even when dtype is Float16 or
// BFloat16.
//
// Example:
//
//	// bfloat16 parameter initialized from float32 values
//	param, err := tensor.FromFloat32As(vals, tensor.Shape{8}, tensor.BFloat16)
func FromFloat32As(data []float32, shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.FromFloat32As(data, shape, dtype)
}
