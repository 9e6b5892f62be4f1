// Package backend routes optimizer kernels to their per-device
// implementations. Device packages register themselves from init, so
// importing a backend (e.g. internal/backend/cpu) is what makes its kernels
// available.
package backend

import (
	"fmt"

	"github.com/born-ml/fusedopt/internal/tensor"
)

// AdamMode selects how weight decay enters the Adam update.
type AdamMode int

const (
	// ModeOriginal folds weight decay into the gradient (classic Adam,
	// L2-style regularization).
	ModeOriginal AdamMode = iota
	// ModeAdamW decays the parameter directly, decoupled from the gradient.
	ModeAdamW
)

// String returns a human-readable mode name.
func (m AdamMode) String() string {
	switch m {
	case ModeOriginal:
		return "adam"
	case ModeAdamW:
		return "adamw"
	default:
		return "unknown"
	}
}

// ParseAdamMode resolves a mode name as used in CLI flags and scenario files.
func ParseAdamMode(name string) (AdamMode, bool) {
	switch name {
	case "adam", "original":
		return ModeOriginal, true
	case "adamw", "decoupled":
		return ModeAdamW, true
	default:
		return ModeOriginal, false
	}
}

// FusedAdamArgs carries one parameter's buffers and the scalar
// hyperparameters for a single fused Adam/AdamW step. All tensors must share
// one shape, dtype and device; Param, Grad, ExpAvg and ExpAvgSq are updated
// in place.
type FusedAdamArgs struct {
	Param       *tensor.RawTensor
	Grad        *tensor.RawTensor
	ExpAvg      *tensor.RawTensor
	ExpAvgSq    *tensor.RawTensor
	MaxExpAvgSq *tensor.RawTensor // required when AMSGrad is set, ignored otherwise

	Step        float64 // 1-based step count; enters only through beta^step
	LR          float64
	Beta1       float64
	Beta2       float64
	WeightDecay float64
	Eps         float64

	AMSGrad  bool
	Maximize bool

	// GradScale, when non-nil, is the loss scale the gradients were
	// multiplied by upstream. The kernel divides it out and writes the
	// unscaled values back into Grad before any other use.
	GradScale *float32

	Mode AdamMode
}

// FusedAdamFn applies one fused Adam step in place. Implementations panic on
// violated preconditions; there are no recoverable failures.
type FusedAdamFn func(args FusedAdamArgs)

var fusedAdamKernels = make(map[tensor.Device]FusedAdamFn)

// RegisterFusedAdam installs the fused Adam kernel for a device. Device
// packages call this from init; registering a device twice or registering a
// nil kernel is a programming error.
func RegisterFusedAdam(device tensor.Device, fn FusedAdamFn) {
	if fn == nil {
		panic(fmt.Sprintf("backend: nil fused adam kernel for %s", device))
	}
	if _, exists := fusedAdamKernels[device]; exists {
		panic(fmt.Sprintf("backend: fused adam kernel already registered for %s", device))
	}
	fusedAdamKernels[device] = fn
}

// FusedAdam returns the fused Adam kernel registered for a device.
// Panics if the device has no registered kernel.
func FusedAdam(device tensor.Device) FusedAdamFn {
	fn, ok := fusedAdamKernels[device]
	if !ok {
		panic(fmt.Sprintf("backend: no fused adam kernel registered for %s", device))
	}
	return fn
}

// HasFusedAdam reports whether a fused Adam kernel is registered for a
// device, for callers that need to fail softly instead of panicking.
func HasFusedAdam(device tensor.Device) bool {
	_, ok := fusedAdamKernels[device]
	return ok
}
