package cpu

import "math"

// wideFloat covers the storage types whose arithmetic runs directly in the
// storage precision.
type wideFloat interface {
	~float32 | ~float64
}

// adamScalars holds the per-call constants of one fused Adam step. The entry
// layer computes them in float64 (matching the unfused optimizer) and each
// shard narrows them once to its op precision.
type adamScalars struct {
	lr          float64
	stepSize    float64 // lr / (1 - beta1^step)
	beta2       float64
	mCoef       float64 // 1 - beta1
	vCoef       float64 // 1 - beta2
	bc2Sqrt     float64 // sqrt(1 - beta2^step)
	eps         float64
	weightDecay float64
	gradScale   float32
	hasScale    bool
}

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

func sqrtT[T wideFloat](x T) T {
	return T(math.Sqrt(float64(x)))
}

// fusedAdamWideOriginal applies one classic Adam step (weight decay folded
// into the gradient) to a shard of float32 or float64 buffers.
//
// The shard is processed in blocks of w elements followed by an element-wise
// tail; both passes apply the identical update law, so the result does not
// depend on where the block boundary falls. When a grad scale is present the
// unscaled gradient is stored back before anything else reads it.
func fusedAdamWideOriginal[T wideFloat](param, grad, expAvg, expAvgSq, maxExpAvgSq []T, sc adamScalars, amsgrad, maximize bool, w int) {
	var (
		stepSize = T(sc.stepSize)
		beta2    = T(sc.beta2)
		mCoef    = T(sc.mCoef)
		vCoef    = T(sc.vCoef)
		bc2Sqrt  = T(sc.bc2Sqrt)
		eps      = T(sc.eps)
		decay    = T(sc.weightDecay)
		scale    = T(sc.gradScale)
	)

	n := len(param)
	d := 0
	for ; d+w <= n; d += w {
		pv := param[d : d+w : d+w]
		gv := grad[d : d+w : d+w]
		mv := expAvg[d : d+w : d+w]
		vv := expAvgSq[d : d+w : d+w]
		if sc.hasScale {
			for i := range gv {
				gv[i] /= scale
			}
		}
		for i := 0; i < w; i++ {
			g := gv[i]
			if maximize {
				g = -g
			}
			if decay != 0 {
				g += pv[i] * decay
			}
			m := mv[i]
			m += mCoef * (g - m)
			mv[i] = m
			v := vv[i]*beta2 + vCoef*g*g
			vv[i] = v
			if amsgrad {
				x := maxExpAvgSq[d+i]
				if v > x {
					x = v
				}
				maxExpAvgSq[d+i] = x
				v = x
			}
			pv[i] -= stepSize * m / (sqrtT(v)/bc2Sqrt + eps)
		}
	}

	// Scalar tail.
	for ; d < n; d++ {
		g := grad[d]
		if sc.hasScale {
			g /= scale
			grad[d] = g
		}
		if maximize {
			g = -g
		}
		if decay != 0 {
			g += param[d] * decay
		}
		m := expAvg[d]
		m += mCoef * (g - m)
		expAvg[d] = m
		v := expAvgSq[d]*beta2 + vCoef*g*g
		expAvgSq[d] = v
		if amsgrad {
			x := maxExpAvgSq[d]
			if v > x {
				x = v
			}
			maxExpAvgSq[d] = x
			v = x
		}
		param[d] -= stepSize * m / (sqrtT(v)/bc2Sqrt + eps)
	}
}

// fusedAdamWideAdamW is fusedAdamWideOriginal with decoupled weight decay:
// the parameter is shrunk by lr*weightDecay before the Adam step and the
// gradient is left untouched. A zero weight decay skips the decay entirely,
// making the two modes bit-identical in that case.
func fusedAdamWideAdamW[T wideFloat](param, grad, expAvg, expAvgSq, maxExpAvgSq []T, sc adamScalars, amsgrad, maximize bool, w int) {
	var (
		lr       = T(sc.lr)
		stepSize = T(sc.stepSize)
		beta2    = T(sc.beta2)
		mCoef    = T(sc.mCoef)
		vCoef    = T(sc.vCoef)
		bc2Sqrt  = T(sc.bc2Sqrt)
		eps      = T(sc.eps)
		decay    = T(sc.weightDecay)
		scale    = T(sc.gradScale)
	)

	n := len(param)
	d := 0
	for ; d+w <= n; d += w {
		pv := param[d : d+w : d+w]
		gv := grad[d : d+w : d+w]
		mv := expAvg[d : d+w : d+w]
		vv := expAvgSq[d : d+w : d+w]
		if sc.hasScale {
			for i := range gv {
				gv[i] /= scale
			}
		}
		for i := 0; i < w; i++ {
			g := gv[i]
			if maximize {
				g = -g
			}
			p := pv[i]
			if decay != 0 {
				p -= lr * decay * p
			}
			m := mv[i]
			m += mCoef * (g - m)
			mv[i] = m
			v := vv[i]*beta2 + vCoef*g*g
			vv[i] = v
			if amsgrad {
				x := maxExpAvgSq[d+i]
				if v > x {
					x = v
				}
				maxExpAvgSq[d+i] = x
				v = x
			}
			pv[i] = p - stepSize*m/(sqrtT(v)/bc2Sqrt+eps)
		}
	}

	// Scalar tail.
	for ; d < n; d++ {
		g := grad[d]
		if sc.hasScale {
			g /= scale
			grad[d] = g
		}
		if maximize {
			g = -g
		}
		p := param[d]
		if decay != 0 {
			p -= lr * decay * p
		}
		m := expAvg[d]
		m += mCoef * (g - m)
		expAvg[d] = m
		v := expAvgSq[d]*beta2 + vCoef*g*g
		expAvgSq[d] = v
		if amsgrad {
			x := maxExpAvgSq[d]
			if v > x {
				x = v
			}
			maxExpAvgSq[d] = x
			v = x
		}
		param[d] = p - stepSize*m/(sqrtT(v)/bc2Sqrt+eps)
	}
}
