package optim

import (
	"github.com/born-ml/fusedopt/internal/tensor"
)

// Parameter represents a trainable parameter.
//
// Parameters pair a value tensor with the gradient computed for it by some
// external mechanism (a backward pass, a finite-difference probe, a test).
// The optimizer reads the gradient and updates the value in place.
//
// Example:
//
//	// Create a weight parameter
//	weight := optim.NewParameter("weight", weightTensor)
//
//	// Attach a gradient before stepping
//	weight.SetGrad(gradTensor)
//
//	// Read the updated value after optimizer.Step()
//	w := weight.Value()
type Parameter struct {
	name  string            // Parameter name (e.g., "weight", "bias")
	value *tensor.RawTensor // The parameter tensor, updated in place
	grad  *tensor.RawTensor // Gradient tensor, nil until one is attached
}

// NewParameter creates a new trainable parameter.
//
// The value tensor should be initialized before creating the Parameter.
// The gradient starts nil and is attached with SetGrad.
func NewParameter(name string, value *tensor.RawTensor) *Parameter {
	return &Parameter{
		name:  name,
		value: value,
		grad:  nil,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Value returns the parameter tensor.
func (p *Parameter) Value() *tensor.RawTensor {
	return p.value
}

// Grad returns the gradient tensor.
//
// Returns nil if no gradient has been attached since the last ZeroGrad.
func (p *Parameter) Grad() *tensor.RawTensor {
	return p.grad
}

// SetGrad attaches a gradient tensor.
//
// The gradient must match the value's shape and dtype; the optimizer
// enforces this when stepping.
func (p *Parameter) SetGrad(grad *tensor.RawTensor) {
	p.grad = grad
}

// ZeroGrad detaches the gradient tensor.
//
// This should be called after each optimizer step to avoid re-applying a
// stale gradient on the next one.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
