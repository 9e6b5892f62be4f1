package tensor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	CUDA
	Vulkan
	Metal
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case Vulkan:
		return "Vulkan"
	case Metal:
		return "Metal"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// tensorBuffer is a reference-counted shared buffer.
// This enables cheap views and inplace optimizations when refCount == 1.
type tensorBuffer struct {
	data     []byte
	refCount atomic.Int32
	mu       sync.Mutex // For safe deallocation
}

// newTensorBuffer creates a new reference-counted buffer with refCount = 1.
func newTensorBuffer(size int) *tensorBuffer {
	buf := &tensorBuffer{
		data: make([]byte, size),
	}
	buf.refCount.Store(1)
	return buf
}

// addRef increments the reference count (for Clone and view operations).
func (tb *tensorBuffer) addRef() {
	tb.refCount.Add(1)
}

// release decrements the reference count and deallocates if it reaches 0.
func (tb *tensorBuffer) release() {
	if tb.refCount.Add(-1) == 0 {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		tb.data = nil
	}
}

// isUnique returns true if this buffer has only one reference (enables inplace ops).
func (tb *tensorBuffer) isUnique() bool {
	return tb.refCount.Load() == 1
}

// RawTensor is the low-level tensor representation.
// It uses reference-counted shared buffers, so views such as Narrow are
// cheap and write through to the parent storage.
type RawTensor struct {
	buffer *tensorBuffer // Shared reference-counted buffer
	shape  Shape         // Tensor dimensions
	stride []int         // Memory strides (row-major, in elements)
	dtype  DataType      // Runtime type information
	device Device        // Compute device
	offset int           // Byte offset into the buffer for views
}

// NewRaw creates a new RawTensor with the given shape and type.
// Memory is allocated and zero-initialized.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	numElements := shape.NumElements()
	byteSize := numElements * dtype.Size()

	return &RawTensor{
		buffer: newTensorBuffer(byteSize),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
		offset: 0,
	}, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Data returns the raw byte slice starting at this tensor's view offset.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.buffer.data[r.offset:]
}

// IsContiguous reports whether the elements of this view are laid out densely
// in row-major order. Dimensions of size one are ignored; their stride never
// participates in addressing.
func (r *RawTensor) IsContiguous() bool {
	expect := 1
	for i := len(r.shape) - 1; i >= 0; i-- {
		if r.shape[i] == 1 {
			continue
		}
		if r.stride[i] != expect {
			return false
		}
		expect *= r.shape[i]
	}
	return true
}

// viewData returns the dense element storage of this view.
// The typed As* accessors all route through here.
func (r *RawTensor) viewData() []byte {
	if !r.IsContiguous() {
		panic(fmt.Sprintf("tensor with shape %v strides %v is not contiguous", r.shape, r.stride))
	}
	return r.buffer.data[r.offset:]
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32 or the view is not contiguous.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	n := r.NumElements()
	if n == 0 {
		return nil
	}
	data := r.viewData()
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), n)
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64 or the view is not contiguous.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	n := r.NumElements()
	if n == 0 {
		return nil
	}
	data := r.viewData()
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&data[0])), n)
}

// AsF16 interprets the data as binary16 bit patterns.
// Panics if the tensor's dtype is not Float16 or the view is not contiguous.
func (r *RawTensor) AsF16() []F16 {
	if r.dtype != Float16 {
		panic(fmt.Sprintf("tensor dtype is %s, not float16", r.dtype))
	}
	n := r.NumElements()
	if n == 0 {
		return nil
	}
	data := r.viewData()
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*F16)(unsafe.Pointer(&data[0])), n)
}

// AsBF16 interprets the data as bfloat16 bit patterns.
// Panics if the tensor's dtype is not BFloat16 or the view is not contiguous.
func (r *RawTensor) AsBF16() []BF16 {
	if r.dtype != BFloat16 {
		panic(fmt.Sprintf("tensor dtype is %s, not bfloat16", r.dtype))
	}
	n := r.NumElements()
	if n == 0 {
		return nil
	}
	data := r.viewData()
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*BF16)(unsafe.Pointer(&data[0])), n)
}

// Narrow returns a view of this tensor restricted to [start, start+length)
// along dim. The view shares storage with the receiver: writes through either
// tensor are visible in both. Narrowing any dimension but the outermost
// produces a non-contiguous view.
func (r *RawTensor) Narrow(dim, start, length int) (*RawTensor, error) {
	if dim < 0 || dim >= len(r.shape) {
		return nil, fmt.Errorf("narrow: dim %d out of range for shape %v", dim, r.shape)
	}
	if start < 0 || length < 0 || start+length > r.shape[dim] {
		return nil, fmt.Errorf("narrow: range [%d, %d) out of bounds for dimension of size %d",
			start, start+length, r.shape[dim])
	}

	r.buffer.addRef()
	shape := r.shape.Clone()
	shape[dim] = length
	return &RawTensor{
		buffer: r.buffer,
		shape:  shape,
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
		offset: r.offset + start*r.stride[dim]*r.dtype.Size(),
	}, nil
}

// Contiguous returns a tensor with the same logical contents laid out densely
// in row-major order. If the receiver is already contiguous it is returned
// unchanged; otherwise the elements are packed into fresh storage and the
// result no longer aliases the receiver.
func (r *RawTensor) Contiguous() *RawTensor {
	if r.IsContiguous() {
		return r
	}

	out := &RawTensor{
		buffer: newTensorBuffer(r.ByteSize()),
		shape:  r.shape.Clone(),
		stride: r.shape.ComputeStrides(),
		dtype:  r.dtype,
		device: r.device,
	}
	if r.NumElements() == 0 {
		return out
	}

	esz := r.dtype.Size()
	src := r.buffer.data
	dst := out.buffer.data
	ndim := len(r.shape)
	inner := r.shape[ndim-1]
	innerStride := r.stride[ndim-1]

	// Row-major odometer over the outer dimensions; the innermost dimension
	// is copied as one run when it is dense.
	coords := make([]int, ndim-1)
	outOff := 0
	for {
		base := r.offset
		for i, c := range coords {
			base += c * r.stride[i] * esz
		}
		if innerStride == 1 {
			copy(dst[outOff:outOff+inner*esz], src[base:base+inner*esz])
			outOff += inner * esz
		} else {
			for j := 0; j < inner; j++ {
				copy(dst[outOff:outOff+esz], src[base+j*innerStride*esz:base+j*innerStride*esz+esz])
				outOff += esz
			}
		}

		k := ndim - 2
		for ; k >= 0; k-- {
			coords[k]++
			if coords[k] < r.shape[k] {
				break
			}
			coords[k] = 0
		}
		if k < 0 {
			break
		}
	}
	return out
}

// Fill sets every element of a contiguous tensor to v, narrowing v to the
// tensor's storage precision.
func (r *RawTensor) Fill(v float64) {
	switch r.dtype {
	case Float32:
		data := r.AsFloat32()
		f := float32(v)
		for i := range data {
			data[i] = f
		}
	case Float64:
		data := r.AsFloat64()
		for i := range data {
			data[i] = v
		}
	case Float16:
		data := r.AsF16()
		h := F16FromFloat32(float32(v))
		for i := range data {
			data[i] = h
		}
	case BFloat16:
		data := r.AsBF16()
		b := BF16FromFloat32(float32(v))
		for i := range data {
			data[i] = b
		}
	default:
		panic(fmt.Sprintf("fill: unsupported dtype %s", r.dtype))
	}
}

// CopyFrom copies the contents of src into this tensor. Both tensors must be
// contiguous with identical shape and dtype.
func (r *RawTensor) CopyFrom(src *RawTensor) error {
	if r.dtype != src.dtype {
		return fmt.Errorf("copy: dtype mismatch: %s vs %s", r.dtype, src.dtype)
	}
	if !r.shape.Equal(src.shape) {
		return fmt.Errorf("copy: shape mismatch: %v vs %v", r.shape, src.shape)
	}
	if !r.IsContiguous() || !src.IsContiguous() {
		return fmt.Errorf("copy: both tensors must be contiguous")
	}
	n := r.ByteSize()
	copy(r.buffer.data[r.offset:r.offset+n], src.buffer.data[src.offset:src.offset+n])
	return nil
}

// Clone creates a shallow copy of the RawTensor (shares buffer with reference
// counting). The buffer is deallocated only when the last reference releases it.
//
// Example:
//
//	a, _ := tensor.NewRaw(tensor.Shape{1000, 1000}, tensor.Float32, tensor.CPU)
//	b := a.Clone() // Shares buffer with a (just increments refCount)
func (r *RawTensor) Clone() *RawTensor {
	r.buffer.addRef() // Increment reference count
	return &RawTensor{
		buffer: r.buffer, // Share the same buffer
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...), // Copy strides
		dtype:  r.dtype,
		device: r.device,
		offset: r.offset,
	}
}

// Release decrements the reference count and deallocates if it reaches 0.
func (r *RawTensor) Release() {
	r.buffer.release()
}

// IsUnique returns true if this tensor is the only reference to the buffer.
// When true, backends can perform inplace operations for better performance.
func (r *RawTensor) IsUnique() bool {
	return r.buffer.isUnique()
}
