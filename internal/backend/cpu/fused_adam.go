// Package cpu implements the CPU kernels behind the backend registry.
//
// The fused Adam kernel updates a parameter and its optimizer state in a
// single pass over memory, sharded across goroutines, with a widened block
// loop and a scalar tail that apply one identical update law.
package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/fusedopt/internal/backend"
	"github.com/born-ml/fusedopt/internal/parallel"
	"github.com/born-ml/fusedopt/internal/tensor"
)

func init() {
	backend.RegisterFusedAdam(tensor.CPU, FusedAdamStep)
}

// defaultParallel is resolved once at startup; the kernel entry is hot-path
// code and must not re-derive worker counts per call.
var defaultParallel = parallel.DefaultConfig()

// FusedAdamStep applies one fused Adam/AdamW step in place:
//
//	m = m + (1-beta1) * (g - m)
//	v = beta2 * v + (1-beta2) * g^2
//	param = param - (lr / bc1) * m / (sqrt(v)/sqrt(bc2) + eps)
//
// where bc1 = 1 - beta1^step and bc2 = 1 - beta2^step. Before the update, g
// is divided by *GradScale (written back to Grad), negated under Maximize,
// and augmented by WeightDecay*param in ModeOriginal; ModeAdamW instead
// shrinks the parameter by lr*WeightDecay before the step. With AMSGrad the
// denominator uses the running elementwise maximum of v.
//
// Half-precision storage computes in float32 and rounds to storage precision
// only at the designated stores. Hyperparameter preconditions (step >= 1,
// eps > 0, betas in [0,1)) are the caller's contract and are not checked
// here; buffer geometry is, and violations panic.
func FusedAdamStep(args backend.FusedAdamArgs) {
	fusedAdamStep(args, defaultParallel)
}

// fusedAdamStep is the configurable core of FusedAdamStep. Splitting the
// range differently never changes results, so cfg only affects scheduling.
func fusedAdamStep(args backend.FusedAdamArgs, cfg parallel.Config) {
	validateFusedAdamArgs(&args)

	grad := args.Grad
	if !grad.IsContiguous() {
		// Only reachable without a grad scale: the unscale write-back
		// cannot flow through a packed copy, and validation rejected
		// that combination already.
		grad = grad.Contiguous()
	}

	sc := computeAdamScalars(&args)
	w := LaneCount(args.Param.DType())

	switch args.Param.DType() {
	case tensor.Float32:
		var vmax []float32
		if args.AMSGrad {
			vmax = args.MaxExpAvgSq.AsFloat32()
		}
		runFusedAdamWide(args.Param.AsFloat32(), grad.AsFloat32(),
			args.ExpAvg.AsFloat32(), args.ExpAvgSq.AsFloat32(), vmax,
			sc, &args, w, cfg)
	case tensor.Float64:
		var vmax []float64
		if args.AMSGrad {
			vmax = args.MaxExpAvgSq.AsFloat64()
		}
		runFusedAdamWide(args.Param.AsFloat64(), grad.AsFloat64(),
			args.ExpAvg.AsFloat64(), args.ExpAvgSq.AsFloat64(), vmax,
			sc, &args, w, cfg)
	case tensor.Float16:
		var vmax []tensor.F16
		if args.AMSGrad {
			vmax = args.MaxExpAvgSq.AsF16()
		}
		runFusedAdamNarrow[tensor.F16, f16Conv](args.Param.AsF16(), grad.AsF16(),
			args.ExpAvg.AsF16(), args.ExpAvgSq.AsF16(), vmax,
			sc, &args, w, cfg)
	case tensor.BFloat16:
		var vmax []tensor.BF16
		if args.AMSGrad {
			vmax = args.MaxExpAvgSq.AsBF16()
		}
		runFusedAdamNarrow[tensor.BF16, bf16Conv](args.Param.AsBF16(), grad.AsBF16(),
			args.ExpAvg.AsBF16(), args.ExpAvgSq.AsBF16(), vmax,
			sc, &args, w, cfg)
	default:
		panic(fmt.Sprintf("fused adam: unsupported dtype %s", args.Param.DType()))
	}
}

// computeAdamScalars derives the per-call constants. They are computed in
// float64 regardless of storage precision to align with the non-fused
// optimizer; shards narrow them once on entry.
func computeAdamScalars(args *backend.FusedAdamArgs) adamScalars {
	biasCorrection1 := 1 - math.Pow(args.Beta1, args.Step)
	biasCorrection2 := 1 - math.Pow(args.Beta2, args.Step)
	sc := adamScalars{
		lr:          args.LR,
		stepSize:    args.LR / biasCorrection1,
		beta2:       args.Beta2,
		mCoef:       1 - args.Beta1,
		vCoef:       1 - args.Beta2,
		bc2Sqrt:     math.Sqrt(biasCorrection2),
		eps:         args.Eps,
		weightDecay: args.WeightDecay,
	}
	if args.GradScale != nil {
		// Read exactly once per step; the target must stay stable for
		// the duration of the call.
		sc.gradScale = *args.GradScale
		sc.hasScale = true
	}
	return sc
}

func validateFusedAdamArgs(args *backend.FusedAdamArgs) {
	p := args.Param
	if p == nil || args.Grad == nil || args.ExpAvg == nil || args.ExpAvgSq == nil {
		panic("fused adam: param, grad, exp_avg and exp_avg_sq are required")
	}

	check := func(name string, t *tensor.RawTensor) {
		if t.DType() != p.DType() {
			panic(fmt.Sprintf("fused adam: %s dtype is %s, param is %s", name, t.DType(), p.DType()))
		}
		if !t.Shape().Equal(p.Shape()) {
			panic(fmt.Sprintf("fused adam: %s shape %v does not match param shape %v", name, t.Shape(), p.Shape()))
		}
		if t.Device() != tensor.CPU {
			panic(fmt.Sprintf("fused adam: %s is on %s, want CPU", name, t.Device()))
		}
	}
	check("param", p)
	check("grad", args.Grad)
	check("exp_avg", args.ExpAvg)
	check("exp_avg_sq", args.ExpAvgSq)
	if args.AMSGrad {
		if args.MaxExpAvgSq == nil {
			panic("fused adam: amsgrad requires max_exp_avg_sq")
		}
		check("max_exp_avg_sq", args.MaxExpAvgSq)
		if !args.MaxExpAvgSq.IsContiguous() {
			panic("fused adam: max_exp_avg_sq must be contiguous")
		}
	}

	if !p.IsContiguous() || !args.ExpAvg.IsContiguous() || !args.ExpAvgSq.IsContiguous() {
		panic("fused adam: param and optimizer state must be contiguous")
	}
	if args.GradScale != nil && !args.Grad.IsContiguous() {
		panic("fused adam: grad must be contiguous when a grad scale is set (unscaled values are written back)")
	}
}

func runFusedAdamWide[T wideFloat](param, grad, expAvg, expAvgSq, maxExpAvgSq []T, sc adamScalars, args *backend.FusedAdamArgs, w int, cfg parallel.Config) {
	adamw := args.Mode == backend.ModeAdamW
	amsgrad, maximize := args.AMSGrad, args.Maximize
	parallel.For(0, len(param), 0, func(begin, end int) {
		var vmax []T
		if amsgrad {
			vmax = maxExpAvgSq[begin:end]
		}
		if adamw {
			fusedAdamWideAdamW(param[begin:end], grad[begin:end],
				expAvg[begin:end], expAvgSq[begin:end], vmax, sc, amsgrad, maximize, w)
		} else {
			fusedAdamWideOriginal(param[begin:end], grad[begin:end],
				expAvg[begin:end], expAvgSq[begin:end], vmax, sc, amsgrad, maximize, w)
		}
	}, cfg)
}

func runFusedAdamNarrow[H halfBits, C halfConv[H]](param, grad, expAvg, expAvgSq, maxExpAvgSq []H, sc adamScalars, args *backend.FusedAdamArgs, w int, cfg parallel.Config) {
	adamw := args.Mode == backend.ModeAdamW
	amsgrad, maximize := args.AMSGrad, args.Maximize
	parallel.For(0, len(param), 0, func(begin, end int) {
		var vmax []H
		if amsgrad {
			vmax = maxExpAvgSq[begin:end]
		}
		if adamw {
			fusedAdamNarrowAdamW[H, C](param[begin:end], grad[begin:end],
				expAvg[begin:end], expAvgSq[begin:end], vmax, sc, amsgrad, maximize, w)
		} else {
			fusedAdamNarrowOriginal[H, C](param[begin:end], grad[begin:end],
				expAvg[begin:end], expAvgSq[begin:end], vmax, sc, amsgrad, maximize, w)
		}
	}, cfg)
}
