package tensor

import "fmt"

// FromFloat32 creates a Float32 CPU tensor with the given shape, copying data.
// The data length must match the shape's element count.
func FromFloat32(data []float32, shape Shape) (*RawTensor, error) {
	raw, err := NewRaw(shape, Float32, CPU)
	if err != nil {
		return nil, err
	}
	if len(data) != raw.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, raw.NumElements())
	}
	copy(raw.AsFloat32(), data)
	return raw, nil
}

// FromFloat64 creates a Float64 CPU tensor with the given shape, copying data.
// The data length must match the shape's element count.
func FromFloat64(data []float64, shape Shape) (*RawTensor, error) {
	raw, err := NewRaw(shape, Float64, CPU)
	if err != nil {
		return nil, err
	}
	if len(data) != raw.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, raw.NumElements())
	}
	copy(raw.AsFloat64(), data)
	return raw, nil
}

// FromFloat32As creates a CPU tensor of an arbitrary float dtype from float32
// values, narrowing each element to the storage precision. The half-precision
// encodings use round-to-nearest-even.
func FromFloat32As(data []float32, shape Shape, dtype DataType) (*RawTensor, error) {
	raw, err := NewRaw(shape, dtype, CPU)
	if err != nil {
		return nil, err
	}
	if len(data) != raw.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, raw.NumElements())
	}
	switch dtype {
	case Float32:
		copy(raw.AsFloat32(), data)
	case Float64:
		dst := raw.AsFloat64()
		for i, v := range data {
			dst[i] = float64(v)
		}
	case Float16:
		dst := raw.AsF16()
		for i, v := range data {
			dst[i] = F16FromFloat32(v)
		}
	case BFloat16:
		dst := raw.AsBF16()
		for i, v := range data {
			dst[i] = BF16FromFloat32(v)
		}
	default:
		return nil, fmt.Errorf("unsupported dtype %s", dtype)
	}
	return raw, nil
}

// ToFloat32 widens every element of a contiguous tensor to float32.
// The result is freshly allocated and never aliases the tensor.
func (r *RawTensor) ToFloat32() []float32 {
	out := make([]float32, r.NumElements())
	switch r.dtype {
	case Float32:
		copy(out, r.AsFloat32())
	case Float64:
		for i, v := range r.AsFloat64() {
			out[i] = float32(v)
		}
	case Float16:
		for i, v := range r.AsF16() {
			out[i] = v.Float32()
		}
	case BFloat16:
		for i, v := range r.AsBF16() {
			out[i] = v.Float32()
		}
	default:
		panic(fmt.Sprintf("unsupported dtype %s", r.dtype))
	}
	return out
}
