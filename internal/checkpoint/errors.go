package checkpoint

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrOffsetOverlap      = errors.New("tensor offsets overlap")
	ErrOutOfBounds        = errors.New("tensor extends beyond data section")
	ErrNegativeOffset     = errors.New("negative offset or size")
	ErrTooManyTensors     = errors.New("too many tensors in file")
	ErrInvalidTensorName  = errors.New("invalid tensor name")
	ErrInvalidTensorMeta  = errors.New("invalid tensor metadata")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrTensorNotFound     = errors.New("tensor not found")
)

// ValidationError carries the details of a header validation failure. It
// wraps one of the sentinel errors above so callers can test the failure
// class with errors.Is.
type ValidationError struct {
	Err     error  // Failure class
	Tensor  string // Primary tensor name involved
	Tensor2 string // Secondary tensor name (for overlap errors)
	Details string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor2 != "" {
		return fmt.Sprintf("%v: tensors %q and %q: %s", e.Err, e.Tensor, e.Tensor2, e.Details)
	}
	if e.Tensor != "" {
		return fmt.Sprintf("%v: tensor %q: %s", e.Err, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Details)
}

// Unwrap returns the sentinel failure class.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
