package checkpoint

import (
	"fmt"
	"math"
	"sort"

	"github.com/born-ml/fusedopt/internal/tensor"
)

// Validation limits protecting readers from malformed files.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum JSON header size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

// ValidateHeader checks a parsed header against the size of the data
// section. Malformed offsets could otherwise read out of bounds or alias
// another tensor's bytes.
func ValidateHeader(h *Header, dataSize int64) error {
	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Err:     ErrTooManyTensors,
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
		}
	}

	seen := make(map[string]struct{}, len(h.Tensors))
	for _, t := range h.Tensors {
		if t.Name == "" || len(t.Name) > MaxTensorNameLen {
			return &ValidationError{
				Err:     ErrInvalidTensorName,
				Tensor:  t.Name,
				Details: fmt.Sprintf("name length %d not in [1, %d]", len(t.Name), MaxTensorNameLen),
			}
		}
		if _, dup := seen[t.Name]; dup {
			return &ValidationError{
				Err:     ErrInvalidTensorName,
				Tensor:  t.Name,
				Details: "duplicate tensor name",
			}
		}
		seen[t.Name] = struct{}{}

		dt, ok := tensor.ParseDataType(t.DType)
		if !ok {
			return &ValidationError{
				Err:     ErrInvalidTensorMeta,
				Tensor:  t.Name,
				Details: fmt.Sprintf("unknown dtype %q", t.DType),
			}
		}
		shape := tensor.Shape(t.Shape)
		if err := shape.Validate(); err != nil {
			return &ValidationError{
				Err:     ErrInvalidTensorMeta,
				Tensor:  t.Name,
				Details: err.Error(),
			}
		}
		if want := int64(shape.NumElements() * dt.Size()); t.Size != want {
			return &ValidationError{
				Err:     ErrInvalidTensorMeta,
				Tensor:  t.Name,
				Details: fmt.Sprintf("size %d does not match shape %v %s (want %d)", t.Size, t.Shape, t.DType, want),
			}
		}
	}

	// Sort by offset for the overlap walk.
	sorted := make([]TensorMeta, len(h.Tensors))
	copy(sorted, h.Tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Err:     ErrNegativeOffset,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
			}
		}
		// t.Offset+t.Size must not wrap past int64.
		if t.Size > math.MaxInt64-t.Offset || t.Offset+t.Size > dataSize {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Err:     ErrOffsetOverlap,
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap", t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}

	return nil
}
