// Package tensor provides the dense buffer types the fusedopt kernels
// operate on: raw reference-counted tensors, shapes, and the floating-point
// storage dtypes including the half-precision encodings.
package tensor

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Float16
	BFloat16
)

// Size returns the byte size of one element of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64:
		return 8
	case Float16, BFloat16:
		return 2
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Float16:
		return "float16"
	case BFloat16:
		return "bfloat16"
	default:
		return "unknown"
	}
}

// OpMath returns the precision arithmetic is carried out in for this storage
// type. Half-precision storage computes in float32; the wide types compute
// in their own precision.
func (dt DataType) OpMath() DataType {
	switch dt {
	case Float16, BFloat16:
		return Float32
	default:
		return dt
	}
}

// ParseDataType resolves a dtype name as used in CLI flags and scenario
// files. Recognized names match String() output.
func ParseDataType(name string) (DataType, bool) {
	switch name {
	case "float32", "f32":
		return Float32, true
	case "float64", "f64":
		return Float64, true
	case "float16", "f16", "half":
		return Float16, true
	case "bfloat16", "bf16":
		return BFloat16, true
	default:
		return Float32, false
	}
}
