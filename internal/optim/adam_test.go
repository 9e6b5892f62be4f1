package optim_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/fusedopt/internal/backend"
	"github.com/born-ml/fusedopt/internal/optim"
	"github.com/born-ml/fusedopt/internal/tensor"
)

// Helper to check float equality with tolerance.
func floatEqual(a, b, eps float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < eps
}

func newParam(t *testing.T, name string, vals []float32) *optim.Parameter {
	t.Helper()
	raw, err := tensor.FromFloat32(vals, tensor.Shape{len(vals)})
	if err != nil {
		t.Fatalf("building parameter %s: %v", name, err)
	}
	return optim.NewParameter(name, raw)
}

func newGrad(t *testing.T, vals []float32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromFloat32(vals, tensor.Shape{len(vals)})
	if err != nil {
		t.Fatalf("building gradient: %v", err)
	}
	return raw
}

// pseudoRandom produces deterministic values in [lo, hi).
func pseudoRandom(n int, seed uint32, lo, hi float32) []float32 {
	vals := make([]float32, n)
	s := seed
	for i := range vals {
		s = s*1664525 + 1013904223
		u := float32(s>>8) / float32(1<<24)
		vals[i] = lo + (hi-lo)*u
	}
	return vals
}

// TestAdam_SimpleUpdate tests the Adam update with default hyperparameters.
func TestAdam_SimpleUpdate(t *testing.T) {
	param := newParam(t, "x", []float32{1.0})

	optimizer, err := optim.NewAdam([]*optim.Parameter{param}, optim.AdamConfig{
		LR:    0.001,
		Betas: [2]float64{0.9, 0.999},
		Eps:   1e-8,
		Fused: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	param.SetGrad(newGrad(t, []float32{1.0}))

	// First step
	optimizer.Step()

	// After first step (with bias correction):
	// m_1 = 0.9 * 0 + 0.1 * 1.0 = 0.1
	// v_1 = 0.999 * 0 + 0.001 * 1.0 = 0.001
	// m_hat = 0.1 / (1 - 0.9^1) = 0.1 / 0.1 = 1.0
	// v_hat = 0.001 / (1 - 0.999^1) = 0.001 / 0.001 = 1.0
	// x_new = 1.0 - 0.001 * 1.0 / (sqrt(1.0) + 1e-8) ≈ 0.999

	actual := float64(param.Value().AsFloat32()[0])
	if !floatEqual(actual, 0.999, 1e-5) {
		t.Errorf("Adam first step: got %f, want 0.999", actual)
	}
}

// TestAdam_BiasCorrection tests that the timestep advances and drives the
// bias-corrected step size.
func TestAdam_BiasCorrection(t *testing.T) {
	param := newParam(t, "x", []float32{1.0})

	optimizer, err := optim.NewAdam([]*optim.Parameter{param}, optim.AdamConfig{
		LR:    0.01,
		Fused: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	if optimizer.GetTimestep() != 0 {
		t.Errorf("Initial timestep: got %d, want 0", optimizer.GetTimestep())
	}

	param.SetGrad(newGrad(t, []float32{1.0}))

	// Perform 3 steps and verify timestep increments.
	for i := int64(1); i <= 3; i++ {
		optimizer.Step()

		if optimizer.GetTimestep() != i {
			t.Errorf("After step %d, timestep: got %d, want %d", i, optimizer.GetTimestep(), i)
		}
	}

	// Parameter should decrease over steps with a positive gradient.
	final := param.Value().AsFloat32()[0]
	if final >= 1.0 {
		t.Errorf("After 3 Adam steps with positive gradient, parameter should decrease: got %f", final)
	}
}

// TestAdamW_DecoupledDecay tests the AdamW first step by hand:
// p' = 1*(1 - 0.1*0.01) = 0.999, then the Adam update with m_hat/denom = 0.1
// gives p = 0.999 - 0.1*(0.05/0.05) ... = 0.999 - 0.1 = 0.899.
func TestAdamW_DecoupledDecay(t *testing.T) {
	param := newParam(t, "x", []float32{1.0})

	optimizer, err := optim.NewAdamW([]*optim.Parameter{param}, optim.AdamConfig{
		LR:          0.1,
		WeightDecay: 0.01,
		Fused:       true,
	})
	if err != nil {
		t.Fatal(err)
	}

	param.SetGrad(newGrad(t, []float32{0.5}))
	optimizer.Step()

	actual := float64(param.Value().AsFloat32()[0])
	if !floatEqual(actual, 0.899, 1e-5) {
		t.Errorf("AdamW first step: got %f, want 0.899", actual)
	}
}

// TestAdamW_DefaultWeightDecay verifies the 0.01 default: with a zero
// gradient the update term vanishes and one step leaves
// p = 1 * (1 - 0.001*0.01) = 0.99999.
func TestAdamW_DefaultWeightDecay(t *testing.T) {
	raw, err := tensor.FromFloat64([]float64{1.0}, tensor.Shape{1})
	if err != nil {
		t.Fatal(err)
	}
	param := optim.NewParameter("x", raw)

	optimizer, err := optim.NewAdamW([]*optim.Parameter{param}, optim.AdamConfig{Fused: true})
	if err != nil {
		t.Fatal(err)
	}

	grad, err := tensor.FromFloat64([]float64{0.0}, tensor.Shape{1})
	if err != nil {
		t.Fatal(err)
	}
	param.SetGrad(grad)
	optimizer.Step()

	actual := param.Value().AsFloat64()[0]
	if !floatEqual(actual, 1.0-0.001*0.01, 1e-12) {
		t.Errorf("AdamW default decay step: got %.12f, want %.12f", actual, 1.0-0.001*0.01)
	}
}

// TestAdam_FusedMatchesUnfused drives the fused kernel and the BLAS path
// with identical inputs and checks they stay together across steps.
func TestAdam_FusedMatchesUnfused(t *testing.T) {
	const n = 131
	scale := float32(64)

	cases := []struct {
		name     string
		float64s bool
		cfg      optim.AdamConfig
		tol      float64
	}{
		{"float32_plain", false, optim.AdamConfig{LR: 0.01}, 2e-5},
		{"float32_adamw", false, optim.AdamConfig{LR: 0.01, WeightDecay: 0.01, Mode: backend.ModeAdamW}, 2e-5},
		{"float32_amsgrad_maximize", false, optim.AdamConfig{LR: 0.01, AMSGrad: true, Maximize: true}, 2e-5},
		{"float32_scaled", false, optim.AdamConfig{LR: 0.01, GradScale: &scale}, 2e-5},
		{"float64_plain", true, optim.AdamConfig{LR: 0.01}, 1e-12},
		{"float64_adamw_amsgrad", true, optim.AdamConfig{LR: 0.01, WeightDecay: 0.01, Mode: backend.ModeAdamW, AMSGrad: true}, 1e-12},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			initVals := pseudoRandom(n, 7, -2, 2)

			build := func(fused bool) (*optim.Adam, *optim.Parameter) {
				var raw *tensor.RawTensor
				var err error
				if tc.float64s {
					raw, err = tensor.FromFloat32As(initVals, tensor.Shape{n}, tensor.Float64)
				} else {
					raw, err = tensor.FromFloat32(initVals, tensor.Shape{n})
				}
				if err != nil {
					t.Fatal(err)
				}
				param := optim.NewParameter("w", raw)
				cfg := tc.cfg
				cfg.Fused = fused
				opt, err := optim.NewAdam([]*optim.Parameter{param}, cfg)
				if err != nil {
					t.Fatal(err)
				}
				return opt, param
			}

			fusedOpt, fusedParam := build(true)
			plainOpt, plainParam := build(false)

			for step := 1; step <= 5; step++ {
				gradVals := pseudoRandom(n, uint32(90+step), -1, 1)
				if tc.cfg.GradScale != nil {
					for i := range gradVals {
						gradVals[i] *= scale
					}
				}
				attach := func(p *optim.Parameter) {
					var raw *tensor.RawTensor
					var err error
					if tc.float64s {
						raw, err = tensor.FromFloat32As(gradVals, tensor.Shape{n}, tensor.Float64)
					} else {
						raw, err = tensor.FromFloat32(gradVals, tensor.Shape{n})
					}
					if err != nil {
						t.Fatal(err)
					}
					p.SetGrad(raw)
				}
				attach(fusedParam)
				attach(plainParam)

				fusedOpt.Step()
				plainOpt.Step()

				var fusedOut, plainOut []float64
				if tc.float64s {
					fusedOut = append(fusedOut, fusedParam.Value().AsFloat64()...)
					plainOut = append(plainOut, plainParam.Value().AsFloat64()...)
				} else {
					for _, v := range fusedParam.Value().AsFloat32() {
						fusedOut = append(fusedOut, float64(v))
					}
					for _, v := range plainParam.Value().AsFloat32() {
						plainOut = append(plainOut, float64(v))
					}
				}
				for i := range fusedOut {
					if !floatEqual(fusedOut[i], plainOut[i], tc.tol) {
						t.Fatalf("step %d, param[%d]: fused %v vs unfused %v", step, i, fusedOut[i], plainOut[i])
					}
				}

				if tc.cfg.GradScale != nil {
					// Both paths must write the unscaled gradient back.
					fg := fusedParam.Grad().ToFloat32()
					pg := plainParam.Grad().ToFloat32()
					for i := range fg {
						if !floatEqual(float64(fg[i]), float64(pg[i]), tc.tol) {
							t.Fatalf("step %d, grad[%d]: fused %v vs unfused %v", step, i, fg[i], pg[i])
						}
					}
				}
			}
		})
	}
}

// TestAdam_NilGradSkipped verifies parameters without a gradient are left
// untouched while others update.
func TestAdam_NilGradSkipped(t *testing.T) {
	active := newParam(t, "active", []float32{1.0})
	idle := newParam(t, "idle", []float32{5.0})

	optimizer, err := optim.NewAdam([]*optim.Parameter{active, idle}, optim.AdamConfig{
		LR:    0.1,
		Fused: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	active.SetGrad(newGrad(t, []float32{0.5}))
	optimizer.Step()

	if got := idle.Value().AsFloat32()[0]; got != 5.0 {
		t.Errorf("parameter without gradient moved: got %f, want 5.0", got)
	}
	if got := active.Value().AsFloat32()[0]; got >= 1.0 {
		t.Errorf("parameter with gradient did not move: got %f", got)
	}
	if optimizer.GetTimestep() != 1 {
		t.Errorf("timestep: got %d, want 1", optimizer.GetTimestep())
	}
}

// TestAdam_ZeroGrad tests ZeroGrad.
func TestAdam_ZeroGrad(t *testing.T) {
	param := newParam(t, "x", []float32{1.0})
	param.SetGrad(newGrad(t, []float32{5.0}))

	if param.Grad() == nil {
		t.Fatal("Grad should not be nil after SetGrad")
	}

	optimizer, err := optim.NewAdam([]*optim.Parameter{param}, optim.AdamConfig{Fused: true})
	if err != nil {
		t.Fatal(err)
	}

	optimizer.ZeroGrad()

	if param.Grad() != nil {
		t.Error("Grad should be nil after ZeroGrad")
	}
}

// TestAdam_GetSetLR tests learning rate getter/setter.
func TestAdam_GetSetLR(t *testing.T) {
	param := newParam(t, "x", []float32{1.0})

	optimizer, err := optim.NewAdam([]*optim.Parameter{param}, optim.AdamConfig{LR: 0.01})
	if err != nil {
		t.Fatal(err)
	}

	if optimizer.GetLR() != 0.01 {
		t.Errorf("GetLR: got %f, want 0.01", optimizer.GetLR())
	}

	optimizer.SetLR(0.001)
	if optimizer.GetLR() != 0.001 {
		t.Errorf("GetLR after SetLR: got %f, want 0.001", optimizer.GetLR())
	}
}

func TestNewAdam_Validation(t *testing.T) {
	valid := func() []*optim.Parameter {
		return []*optim.Parameter{newParam(t, "x", []float32{1, 2, 3})}
	}

	t.Run("empty params", func(t *testing.T) {
		_, err := optim.NewAdam(nil, optim.AdamConfig{})
		require.Error(t, err)
	})

	t.Run("nil parameter", func(t *testing.T) {
		_, err := optim.NewAdam([]*optim.Parameter{nil}, optim.AdamConfig{})
		require.Error(t, err)
	})

	t.Run("beta1 out of range", func(t *testing.T) {
		_, err := optim.NewAdam(valid(), optim.AdamConfig{Betas: [2]float64{1.0, 0.999}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "beta1")
	})

	t.Run("beta2 out of range", func(t *testing.T) {
		_, err := optim.NewAdam(valid(), optim.AdamConfig{Betas: [2]float64{0.9, 1.5}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "beta2")
	})

	t.Run("negative lr", func(t *testing.T) {
		_, err := optim.NewAdam(valid(), optim.AdamConfig{LR: -0.1})
		require.Error(t, err)
	})

	t.Run("negative eps", func(t *testing.T) {
		_, err := optim.NewAdam(valid(), optim.AdamConfig{Eps: -1e-8})
		require.Error(t, err)
	})

	t.Run("unfused half precision", func(t *testing.T) {
		raw, err := tensor.FromFloat32As([]float32{1, 2}, tensor.Shape{2}, tensor.BFloat16)
		require.NoError(t, err)
		_, err = optim.NewAdam([]*optim.Parameter{optim.NewParameter("h", raw)}, optim.AdamConfig{})
		require.Error(t, err)

		// The fused kernel handles half precision.
		_, err = optim.NewAdam([]*optim.Parameter{optim.NewParameter("h", raw)}, optim.AdamConfig{Fused: true})
		require.NoError(t, err)
	})

	t.Run("non-contiguous parameter", func(t *testing.T) {
		grid, err := tensor.FromFloat32(pseudoRandom(12, 5, -1, 1), tensor.Shape{3, 4})
		require.NoError(t, err)
		view, err := grid.Narrow(1, 0, 2)
		require.NoError(t, err)
		_, err = optim.NewAdam([]*optim.Parameter{optim.NewParameter("v", view)}, optim.AdamConfig{Fused: true})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "contiguous")
	})

	t.Run("non-cpu parameter", func(t *testing.T) {
		raw, err := tensor.NewRaw(tensor.Shape{2}, tensor.Float32, tensor.CUDA)
		require.NoError(t, err)
		_, err = optim.NewAdam([]*optim.Parameter{optim.NewParameter("g", raw)}, optim.AdamConfig{Fused: true})
		require.Error(t, err)
	})
}

// TestAdam_HalfPrecisionFused drives a bfloat16 parameter through the fused
// kernel end to end.
func TestAdam_HalfPrecisionFused(t *testing.T) {
	raw, err := tensor.FromFloat32As(pseudoRandom(33, 13, 0.5, 1.5), tensor.Shape{33}, tensor.BFloat16)
	if err != nil {
		t.Fatal(err)
	}
	param := optim.NewParameter("h", raw)

	optimizer, err := optim.NewAdam([]*optim.Parameter{param}, optim.AdamConfig{
		LR:    0.1,
		Fused: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	before := param.Value().ToFloat32()
	grad, err := tensor.FromFloat32As(pseudoRandom(33, 14, 0.5, 1.0), tensor.Shape{33}, tensor.BFloat16)
	if err != nil {
		t.Fatal(err)
	}
	param.SetGrad(grad)
	optimizer.Step()

	after := param.Value().ToFloat32()
	for i := range after {
		if math.IsNaN(float64(after[i])) {
			t.Fatalf("param[%d] became NaN", i)
		}
		if after[i] >= before[i] {
			t.Errorf("param[%d] did not descend: %f -> %f", i, before[i], after[i])
		}
	}
}

// TestAdam_ClipGradNorm checks the global-norm computation and in-place
// scaling across mixed-precision gradients.
func TestAdam_ClipGradNorm(t *testing.T) {
	p32 := newParam(t, "a", []float32{0})
	raw64, err := tensor.FromFloat64([]float64{0}, tensor.Shape{1})
	require.NoError(t, err)
	p64 := optim.NewParameter("b", raw64)

	optimizer, err := optim.NewAdam([]*optim.Parameter{p32, p64}, optim.AdamConfig{Fused: true})
	require.NoError(t, err)

	// Gradients (3, 4) have global norm 5.
	p32.SetGrad(newGrad(t, []float32{3.0}))
	g64, err := tensor.FromFloat64([]float64{4.0}, tensor.Shape{1})
	require.NoError(t, err)
	p64.SetGrad(g64)

	norm := optimizer.ClipGradNorm(1.0)
	assert.InDelta(t, 5.0, norm, 1e-9)
	assert.InDelta(t, 0.6, float64(p32.Grad().AsFloat32()[0]), 1e-6)
	assert.InDelta(t, 0.8, p64.Grad().AsFloat64()[0], 1e-9)

	// Already within bounds: no rescale.
	norm = optimizer.ClipGradNorm(10.0)
	assert.InDelta(t, 1.0, norm, 1e-6)
	assert.InDelta(t, 0.6, float64(p32.Grad().AsFloat32()[0]), 1e-6)

	// maxNorm <= 0 only measures.
	norm = optimizer.ClipGradNorm(0)
	assert.InDelta(t, 1.0, norm, 1e-6)
}

// TestConvergence_SimpleQuadratic verifies both paths minimize f(x) = x².
//
// The minimum is at x = 0; the gradient is df/dx = 2x.
func TestConvergence_SimpleQuadratic(t *testing.T) {
	for _, mode := range []struct {
		name  string
		fused bool
	}{
		{"Fused", true},
		{"Unfused", false},
	} {
		t.Run(mode.name, func(t *testing.T) {
			// Start at x = 3.0
			param := newParam(t, "x", []float32{3.0})

			optimizer, err := optim.NewAdam([]*optim.Parameter{param}, optim.AdamConfig{
				LR:    0.1,
				Fused: mode.fused,
			})
			if err != nil {
				t.Fatal(err)
			}

			// Train for 100 steps
			for i := 0; i < 100; i++ {
				currentX := param.Value().AsFloat32()[0]
				param.SetGrad(newGrad(t, []float32{2.0 * currentX}))
				optimizer.Step()
				optimizer.ZeroGrad()
			}

			// After 100 steps, x should be close to 0
			final := param.Value().AsFloat32()[0]
			if math.Abs(float64(final)) > 0.1 {
				t.Errorf("Adam convergence: x = %f, expected close to 0", final)
			}
		})
	}
}

// TestMultipleParameters tests one optimizer over several parameters.
func TestMultipleParameters(t *testing.T) {
	param1 := newParam(t, "x1", []float32{1.0, 2.0})
	param2 := newParam(t, "x2", []float32{3.0})

	optimizer, err := optim.NewAdam([]*optim.Parameter{param1, param2}, optim.AdamConfig{
		LR:    0.001,
		Fused: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	param1.SetGrad(newGrad(t, []float32{1.0, 2.0}))
	param2.SetGrad(newGrad(t, []float32{0.5}))

	optimizer.Step()

	// With zero-initialized moments the first step moves every coordinate
	// by ~lr regardless of gradient magnitude (m_hat/sqrt(v_hat) ≈ sign).
	p1 := param1.Value().AsFloat32()
	if !floatEqual(float64(p1[0]), 0.999, 1e-5) || !floatEqual(float64(p1[1]), 1.999, 1e-5) {
		t.Errorf("param1: got [%f, %f], want [0.999, 1.999]", p1[0], p1[1])
	}
	p2 := param2.Value().AsFloat32()
	if !floatEqual(float64(p2[0]), 2.999, 1e-5) {
		t.Errorf("param2: got %f, want 2.999", p2[0])
	}
}
