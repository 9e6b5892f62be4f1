package cpu

import "github.com/born-ml/fusedopt/internal/tensor"

// halfBits constrains the half-precision storage encodings.
type halfBits interface {
	~uint16
}

// halfConv decodes a half-precision bit pattern to float32 and encodes it
// back with round-to-nearest-even. Implementations are zero-size structs so
// the generic kernels monomorphize and the calls inline.
type halfConv[H halfBits] interface {
	to(H) float32
	from(float32) H
}

type f16Conv struct{}

func (f16Conv) to(h tensor.F16) float32   { return h.Float32() }
func (f16Conv) from(f float32) tensor.F16 { return tensor.F16FromFloat32(f) }

type bf16Conv struct{}

func (bf16Conv) to(h tensor.BF16) float32   { return h.Float32() }
func (bf16Conv) from(f float32) tensor.BF16 { return tensor.BF16FromFloat32(f) }

// maxHalfGroup bounds one float32 lane group decoded from a half-precision
// block: a maxVectorBits register holds maxVectorBits/16 half lanes, which
// widen into two groups of half that many float32 values.
const maxHalfGroup = maxVectorBits / 16 / 2

// fusedAdamNarrowOriginal applies one classic Adam step to a shard of
// half-precision storage. All arithmetic runs in float32; storage precision
// enters only when a buffer is written.
//
// Each block of w half values widens into a low and a high float32 lane
// group, mirroring how a register of narrow lanes converts into two
// full-width registers. Every group is updated against its own gradient
// lanes. As in the wide kernels, the block and tail passes share one update
// law and the unscaled gradient is stored back before any other use.
func fusedAdamNarrowOriginal[H halfBits, C halfConv[H]](param, grad, expAvg, expAvgSq, maxExpAvgSq []H, sc adamScalars, amsgrad, maximize bool, w int) {
	var cv C
	var (
		stepSize = float32(sc.stepSize)
		beta2    = float32(sc.beta2)
		mCoef    = float32(sc.mCoef)
		vCoef    = float32(sc.vCoef)
		bc2Sqrt  = float32(sc.bc2Sqrt)
		eps      = float32(sc.eps)
		decay    = float32(sc.weightDecay)
		scale    = sc.gradScale
	)

	var pLo, pHi, gLo, gHi, mLo, mHi, vLo, vHi [maxHalfGroup]float32
	half := w / 2
	n := len(param)
	d := 0
	for ; d+w <= n; d += w {
		lo := d
		hi := d + half
		for i := 0; i < half; i++ {
			pLo[i] = cv.to(param[lo+i])
			pHi[i] = cv.to(param[hi+i])
			gLo[i] = cv.to(grad[lo+i])
			gHi[i] = cv.to(grad[hi+i])
		}
		if sc.hasScale {
			for i := 0; i < half; i++ {
				gLo[i] /= scale
				gHi[i] /= scale
				grad[lo+i] = cv.from(gLo[i])
				grad[hi+i] = cv.from(gHi[i])
			}
		}
		if maximize {
			for i := 0; i < half; i++ {
				gLo[i] = -gLo[i]
				gHi[i] = -gHi[i]
			}
		}
		if decay != 0 {
			for i := 0; i < half; i++ {
				gLo[i] += pLo[i] * decay
				gHi[i] += pHi[i] * decay
			}
		}
		for i := 0; i < half; i++ {
			m := cv.to(expAvg[lo+i])
			m += mCoef * (gLo[i] - m)
			mLo[i] = m
			m = cv.to(expAvg[hi+i])
			m += mCoef * (gHi[i] - m)
			mHi[i] = m

			vLo[i] = cv.to(expAvgSq[lo+i])*beta2 + vCoef*gLo[i]*gLo[i]
			vHi[i] = cv.to(expAvgSq[hi+i])*beta2 + vCoef*gHi[i]*gHi[i]
		}
		for i := 0; i < half; i++ {
			expAvg[lo+i] = cv.from(mLo[i])
			expAvg[hi+i] = cv.from(mHi[i])
			expAvgSq[lo+i] = cv.from(vLo[i])
			expAvgSq[hi+i] = cv.from(vHi[i])
		}
		if amsgrad {
			for i := 0; i < half; i++ {
				x := cv.to(maxExpAvgSq[lo+i])
				if vLo[i] > x {
					x = vLo[i]
				}
				maxExpAvgSq[lo+i] = cv.from(x)
				vLo[i] = x

				x = cv.to(maxExpAvgSq[hi+i])
				if vHi[i] > x {
					x = vHi[i]
				}
				maxExpAvgSq[hi+i] = cv.from(x)
				vHi[i] = x
			}
		}
		for i := 0; i < half; i++ {
			pLo[i] -= stepSize * mLo[i] / (sqrt32(vLo[i])/bc2Sqrt + eps)
			pHi[i] -= stepSize * mHi[i] / (sqrt32(vHi[i])/bc2Sqrt + eps)
			param[lo+i] = cv.from(pLo[i])
			param[hi+i] = cv.from(pHi[i])
		}
	}

	// Scalar tail.
	for ; d < n; d++ {
		g := cv.to(grad[d])
		if sc.hasScale {
			g /= scale
			grad[d] = cv.from(g)
		}
		if maximize {
			g = -g
		}
		p := cv.to(param[d])
		if decay != 0 {
			g += p * decay
		}
		m := cv.to(expAvg[d])
		m += mCoef * (g - m)
		expAvg[d] = cv.from(m)
		v := cv.to(expAvgSq[d])*beta2 + vCoef*g*g
		expAvgSq[d] = cv.from(v)
		if amsgrad {
			x := cv.to(maxExpAvgSq[d])
			if v > x {
				x = v
			}
			maxExpAvgSq[d] = cv.from(x)
			v = x
		}
		param[d] = cv.from(p - stepSize*m/(sqrt32(v)/bc2Sqrt+eps))
	}
}

// fusedAdamNarrowAdamW is fusedAdamNarrowOriginal with decoupled weight
// decay applied to the decoded parameter before the Adam step. The decayed
// value is re-encoded only once, at the final parameter store.
func fusedAdamNarrowAdamW[H halfBits, C halfConv[H]](param, grad, expAvg, expAvgSq, maxExpAvgSq []H, sc adamScalars, amsgrad, maximize bool, w int) {
	var cv C
	var (
		lr       = float32(sc.lr)
		stepSize = float32(sc.stepSize)
		beta2    = float32(sc.beta2)
		mCoef    = float32(sc.mCoef)
		vCoef    = float32(sc.vCoef)
		bc2Sqrt  = float32(sc.bc2Sqrt)
		eps      = float32(sc.eps)
		decay    = float32(sc.weightDecay)
		scale    = sc.gradScale
	)

	var pLo, pHi, gLo, gHi, mLo, mHi, vLo, vHi [maxHalfGroup]float32
	half := w / 2
	n := len(param)
	d := 0
	for ; d+w <= n; d += w {
		lo := d
		hi := d + half
		for i := 0; i < half; i++ {
			pLo[i] = cv.to(param[lo+i])
			pHi[i] = cv.to(param[hi+i])
			gLo[i] = cv.to(grad[lo+i])
			gHi[i] = cv.to(grad[hi+i])
		}
		if sc.hasScale {
			for i := 0; i < half; i++ {
				gLo[i] /= scale
				gHi[i] /= scale
				grad[lo+i] = cv.from(gLo[i])
				grad[hi+i] = cv.from(gHi[i])
			}
		}
		if maximize {
			for i := 0; i < half; i++ {
				gLo[i] = -gLo[i]
				gHi[i] = -gHi[i]
			}
		}
		if decay != 0 {
			for i := 0; i < half; i++ {
				pLo[i] -= lr * decay * pLo[i]
				pHi[i] -= lr * decay * pHi[i]
			}
		}
		for i := 0; i < half; i++ {
			m := cv.to(expAvg[lo+i])
			m += mCoef * (gLo[i] - m)
			mLo[i] = m
			m = cv.to(expAvg[hi+i])
			m += mCoef * (gHi[i] - m)
			mHi[i] = m

			vLo[i] = cv.to(expAvgSq[lo+i])*beta2 + vCoef*gLo[i]*gLo[i]
			vHi[i] = cv.to(expAvgSq[hi+i])*beta2 + vCoef*gHi[i]*gHi[i]
		}
		for i := 0; i < half; i++ {
			expAvg[lo+i] = cv.from(mLo[i])
			expAvg[hi+i] = cv.from(mHi[i])
			expAvgSq[lo+i] = cv.from(vLo[i])
			expAvgSq[hi+i] = cv.from(vHi[i])
		}
		if amsgrad {
			for i := 0; i < half; i++ {
				x := cv.to(maxExpAvgSq[lo+i])
				if vLo[i] > x {
					x = vLo[i]
				}
				maxExpAvgSq[lo+i] = cv.from(x)
				vLo[i] = x

				x = cv.to(maxExpAvgSq[hi+i])
				if vHi[i] > x {
					x = vHi[i]
				}
				maxExpAvgSq[hi+i] = cv.from(x)
				vHi[i] = x
			}
		}
		for i := 0; i < half; i++ {
			pLo[i] -= stepSize * mLo[i] / (sqrt32(vLo[i])/bc2Sqrt + eps)
			pHi[i] -= stepSize * mHi[i] / (sqrt32(vHi[i])/bc2Sqrt + eps)
			param[lo+i] = cv.from(pLo[i])
			param[hi+i] = cv.from(pHi[i])
		}
	}

	// Scalar tail.
	for ; d < n; d++ {
		g := cv.to(grad[d])
		if sc.hasScale {
			g /= scale
			grad[d] = cv.from(g)
		}
		if maximize {
			g = -g
		}
		p := cv.to(param[d])
		if decay != 0 {
			p -= lr * decay * p
		}
		m := cv.to(expAvg[d])
		m += mCoef * (g - m)
		expAvg[d] = cv.from(m)
		v := cv.to(expAvgSq[d])*beta2 + vCoef*g*g
		expAvgSq[d] = cv.from(v)
		if amsgrad {
			x := cv.to(maxExpAvgSq[d])
			if v > x {
				x = v
			}
			maxExpAvgSq[d] = cv.from(x)
			v = x
		}
		param[d] = cv.from(p - stepSize*m/(sqrt32(v)/bc2Sqrt+eps))
	}
}
