// Package optim implements optimization algorithms for training.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - Adam: Adaptive Moment Estimation, with AdamW (decoupled weight decay)
//     and AMSGrad variants
//   - CosineSchedule: learning-rate schedule helper
//
// Design inspired by PyTorch's torch.optim but adapted for Go with explicit
// configuration structs. Parameter updates route through the fused CPU
// kernel (AdamConfig.Fused) or an unfused BLAS formulation; both implement
// the same update law.
//
// Example usage:
//
//	params := []*optim.Parameter{optim.NewParameter("weight", w)}
//	optimizer, err := optim.NewAdamW(params, optim.AdamConfig{
//	    LR:    0.001,
//	    Fused: true,
//	})
//	if err != nil {
//	    return err
//	}
//
//	// Training loop
//	for step := 0; step < totalSteps; step++ {
//	    computeGradients(params)
//	    optimizer.Step()
//	    optimizer.ZeroGrad()
//	}
package optim

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers update parameters in-place based on the gradients attached to
// them to minimize (or, with Maximize, maximize) an objective.
type Optimizer interface {
	// Step applies one update to every parameter that has a gradient.
	// Parameters whose gradient is nil are skipped.
	Step()

	// ZeroGrad clears all parameter gradients.
	//
	// This should be called after each step to prevent stale gradients
	// from being applied twice.
	ZeroGrad()

	// GetLR returns the current learning rate.
	//
	// Useful for monitoring and learning rate scheduling.
	GetLR() float64

	// SetLR updates the learning rate (for scheduling).
	SetLR(lr float64)
}
