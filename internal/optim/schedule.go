package optim

import "math"

// CosineSchedule computes a learning rate with linear warmup followed by
// cosine decay: the rate ramps from 0 to maxLR over warmupSteps, then decays
// along a half cosine to minLR at totalSteps. Steps at or beyond totalSteps
// return minLR.
//
// The schedule is global, not per-parameter; feed the result to SetLR
// before each step:
//
//	for step := 0; step < totalSteps; step++ {
//	    optimizer.SetLR(optim.CosineSchedule(step, warmup, totalSteps, 1e-3, 1e-5))
//	    ...
//	    optimizer.Step()
//	}
func CosineSchedule(step, warmupSteps, totalSteps int, maxLR, minLR float64) float64 {
	if warmupSteps > 0 && step < warmupSteps {
		// Linear warmup
		return maxLR * float64(step) / float64(warmupSteps)
	}
	if totalSteps <= warmupSteps || step >= totalSteps {
		return minLR
	}

	// Cosine decay
	progress := float64(step-warmupSteps) / float64(totalSteps-warmupSteps)
	return minLR + 0.5*(maxLR-minLR)*(1.0+math.Cos(math.Pi*progress))
}
