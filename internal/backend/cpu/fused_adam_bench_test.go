package cpu

import (
	"fmt"
	"testing"

	"github.com/born-ml/fusedopt/internal/backend"
	"github.com/born-ml/fusedopt/internal/parallel"
	"github.com/born-ml/fusedopt/internal/tensor"
)

func benchArgs(b *testing.B, n int, dtype tensor.DataType, amsgrad bool) backend.FusedAdamArgs {
	b.Helper()
	param := newKernelTensor(b, testValues(n, 1, -1, 1), dtype)
	grad := newKernelTensor(b, testValues(n, 2, -1, 1), dtype)
	expAvg := zerosLike(b, param)
	expAvgSq := zerosLike(b, param)
	args := backend.FusedAdamArgs{
		Param: param, Grad: grad, ExpAvg: expAvg, ExpAvgSq: expAvgSq,
		Step: 1, LR: 1e-3, Beta1: 0.9, Beta2: 0.999,
		WeightDecay: 0.01, Eps: 1e-8, Mode: backend.ModeAdamW,
	}
	if amsgrad {
		args.MaxExpAvgSq = zerosLike(b, param)
		args.AMSGrad = true
	}
	return args
}

func BenchmarkFusedAdamStep(b *testing.B) {
	dtypes := []tensor.DataType{tensor.Float32, tensor.Float64, tensor.Float16, tensor.BFloat16}
	sizes := []int{1 << 10, 1 << 16, 1 << 20}

	for _, dtype := range dtypes {
		for _, n := range sizes {
			b.Run(fmt.Sprintf("%s/%d", dtype, n), func(b *testing.B) {
				args := benchArgs(b, n, dtype, false)
				// param+m+v read and written, grad read.
				b.SetBytes(int64(n) * int64(dtype.Size()) * 7)
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					FusedAdamStep(args)
				}
			})
		}
	}
}

func BenchmarkFusedAdamStepAMSGrad(b *testing.B) {
	const n = 1 << 18
	args := benchArgs(b, n, tensor.Float32, true)
	b.SetBytes(int64(n) * int64(tensor.Float32.Size()) * 9)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		FusedAdamStep(args)
	}
}

func BenchmarkFusedAdamStepParallelism(b *testing.B) {
	const n = 1 << 21
	sequential := parallel.Config{Enabled: false}
	threaded := parallel.DefaultConfig()

	for _, bc := range []struct {
		name string
		cfg  parallel.Config
	}{
		{"sequential", sequential},
		{"parallel", threaded},
	} {
		b.Run(bc.name, func(b *testing.B) {
			args := benchArgs(b, n, tensor.Float32, false)
			b.SetBytes(int64(n) * int64(tensor.Float32.Size()) * 7)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				fusedAdamStep(args, bc.cfg)
			}
		})
	}
}
