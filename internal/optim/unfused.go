package optim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/fusedopt/internal/backend"
	"github.com/born-ml/fusedopt/internal/tensor"
)

func vec64(data []float64) blas64.Vector {
	return blas64.Vector{N: len(data), Data: data, Inc: 1}
}

func vec32(data []float32) blas32.Vector {
	return blas32.Vector{N: len(data), Data: data, Inc: 1}
}

// stepUnfused applies the Adam update through plain BLAS level-1 calls plus
// a few element-wise loops. It follows the same operation order as the
// fused kernel (unscale, maximize, decay, moments, denominator, update) so
// the two paths agree element-wise up to rounding.
func (a *Adam) stepUnfused(param *Parameter, st *adamState) {
	value, grad := param.Value(), param.Grad()
	if grad.DType() != value.DType() {
		panic(fmt.Sprintf("grad dtype %s does not match param dtype %s", grad.DType(), value.DType()))
	}
	if !grad.Shape().Equal(value.Shape()) {
		panic(fmt.Sprintf("grad shape %v does not match param shape %v", grad.Shape(), value.Shape()))
	}

	switch value.DType() {
	case tensor.Float64:
		var vmax []float64
		if st.maxExpAvgSq != nil {
			vmax = st.maxExpAvgSq.AsFloat64()
		}
		a.stepUnfused64(value.AsFloat64(), grad.AsFloat64(),
			st.expAvg.AsFloat64(), st.expAvgSq.AsFloat64(), vmax, st.scratch64)
	case tensor.Float32:
		var vmax []float32
		if st.maxExpAvgSq != nil {
			vmax = st.maxExpAvgSq.AsFloat32()
		}
		a.stepUnfused32(value.AsFloat32(), grad.AsFloat32(),
			st.expAvg.AsFloat32(), st.expAvgSq.AsFloat32(), vmax, st.scratch32)
	default:
		panic(fmt.Sprintf("unfused adam does not support %s", value.DType()))
	}
}

func (a *Adam) stepUnfused64(param, grad, m, v, vmax, scratch []float64) {
	n := len(param)
	if n == 0 {
		return
	}
	bc1 := 1 - math.Pow(a.cfg.Betas[0], float64(a.t))
	bc2 := 1 - math.Pow(a.cfg.Betas[1], float64(a.t))
	stepSize := a.cfg.LR / bc1
	bc2Sqrt := math.Sqrt(bc2)

	g := scratch[:n]
	blas64.Copy(vec64(grad), vec64(g))
	if a.cfg.GradScale != nil {
		blas64.Scal(1/float64(*a.cfg.GradScale), vec64(g))
		// The caller's gradient observes the unscaled values.
		blas64.Copy(vec64(g), vec64(grad))
	}
	if a.cfg.Maximize {
		blas64.Scal(-1, vec64(g))
	}
	if wd := a.cfg.WeightDecay; wd != 0 {
		if a.cfg.Mode == backend.ModeAdamW {
			blas64.Scal(1-a.cfg.LR*wd, vec64(param))
		} else {
			blas64.Axpy(wd, vec64(param), vec64(g))
		}
	}

	// m = beta1*m + (1-beta1)*g
	blas64.Scal(a.cfg.Betas[0], vec64(m))
	blas64.Axpy(1-a.cfg.Betas[0], vec64(g), vec64(m))

	// v = beta2*v + (1-beta2)*g²; g is free after the first-moment update.
	for i, x := range g {
		g[i] = x * x
	}
	blas64.Scal(a.cfg.Betas[1], vec64(v))
	blas64.Axpy(1-a.cfg.Betas[1], vec64(g), vec64(v))

	den := v
	if vmax != nil {
		for i, x := range v {
			if x > vmax[i] {
				vmax[i] = x
			}
		}
		den = vmax
	}

	// update = m / (sqrt(den)/bc2Sqrt + eps), reusing the scratch vector.
	for i := range g {
		g[i] = m[i] / (math.Sqrt(den[i])/bc2Sqrt + a.cfg.Eps)
	}
	blas64.Axpy(-stepSize, vec64(g), vec64(param))
}

func (a *Adam) stepUnfused32(param, grad, m, v, vmax, scratch []float32) {
	n := len(param)
	if n == 0 {
		return
	}
	bc1 := 1 - math.Pow(a.cfg.Betas[0], float64(a.t))
	bc2 := 1 - math.Pow(a.cfg.Betas[1], float64(a.t))
	stepSize := float32(a.cfg.LR / bc1)
	bc2Sqrt := float32(math.Sqrt(bc2))
	beta1 := float32(a.cfg.Betas[0])
	beta2 := float32(a.cfg.Betas[1])
	eps := float32(a.cfg.Eps)

	g := scratch[:n]
	blas32.Copy(vec32(grad), vec32(g))
	if a.cfg.GradScale != nil {
		blas32.Scal(1/(*a.cfg.GradScale), vec32(g))
		blas32.Copy(vec32(g), vec32(grad))
	}
	if a.cfg.Maximize {
		blas32.Scal(-1, vec32(g))
	}
	if wd := a.cfg.WeightDecay; wd != 0 {
		if a.cfg.Mode == backend.ModeAdamW {
			blas32.Scal(float32(1-a.cfg.LR*wd), vec32(param))
		} else {
			blas32.Axpy(float32(wd), vec32(param), vec32(g))
		}
	}

	blas32.Scal(beta1, vec32(m))
	blas32.Axpy(1-beta1, vec32(g), vec32(m))

	for i, x := range g {
		g[i] = x * x
	}
	blas32.Scal(beta2, vec32(v))
	blas32.Axpy(1-beta2, vec32(g), vec32(v))

	den := v
	if vmax != nil {
		for i, x := range v {
			if x > vmax[i] {
				vmax[i] = x
			}
		}
		den = vmax
	}

	for i := range g {
		g[i] = m[i] / (float32(math.Sqrt(float64(den[i])))/bc2Sqrt + eps)
	}
	blas32.Axpy(-stepSize, vec32(g), vec32(param))
}
