package optim

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/fusedopt/internal/backend"
	// Registers the CPU fused-adam kernel with the dispatch registry.
	_ "github.com/born-ml/fusedopt/internal/backend/cpu"
	"github.com/born-ml/fusedopt/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Adam combines ideas from RMSprop and momentum:
//   - Maintains exponential moving averages of gradients (first moment)
//   - Maintains exponential moving averages of squared gradients (second moment)
//   - Applies bias correction to compensate for initialization at zero
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)   // Parameter update
//
// Weight decay folds into the gradient before the moment updates
// (ModeOriginal) or scales the parameter directly before the update
// (ModeAdamW). AMSGrad replaces v_hat with a running element-wise maximum.
//
// References: "Adam: A Method for Stochastic Optimization" (Kingma & Ba,
// 2014) and "Decoupled Weight Decay Regularization" (Loshchilov & Hutter,
// 2019).
//
// Example:
//
//	optimizer, err := optim.NewAdam(params, optim.AdamConfig{
//	    LR:    0.001,
//	    Betas: [2]float64{0.9, 0.999},
//	    Eps:   1e-8,
//	    Fused: true,
//	})
type Adam struct {
	params []*Parameter
	cfg    AdamConfig
	t      int64                      // Timestep for bias correction
	state  map[*Parameter]*adamState // Moment estimates, created lazily
	kernel backend.FusedAdamFn        // Resolved once when cfg.Fused
}

// adamState holds the per-parameter moment buffers, allocated on the first
// step that sees the parameter with a gradient. The scratch slice backs the
// unfused path's working vector and is unused when the kernel is fused.
type adamState struct {
	expAvg      *tensor.RawTensor
	expAvgSq    *tensor.RawTensor
	maxExpAvgSq *tensor.RawTensor
	scratch32   []float32
	scratch64   []float64
}

var _ Optimizer = (*Adam)(nil)

// AdamConfig holds configuration for the Adam optimizer.
//
// The zero value selects the conventional defaults.
type AdamConfig struct {
	LR          float64          // Learning rate (default: 0.001)
	Betas       [2]float64       // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps         float64          // Term for numerical stability (default: 1e-8)
	WeightDecay float64          // Decay coefficient; negative values disable decay
	AMSGrad     bool             // Keep a running max of the second moment for the denominator
	Maximize    bool             // Ascend the objective instead of descending
	Mode        backend.AdamMode // Decay coupling: ModeOriginal (default) or ModeAdamW
	Fused       bool             // Route updates through the fused CPU kernel
	GradScale   *float32         // Loss-scale divisor; unscaled gradients are written back
}

func (c AdamConfig) withDefaults() AdamConfig {
	if c.LR == 0 {
		c.LR = 0.001
	}
	if c.Betas[0] == 0 {
		c.Betas[0] = 0.9
	}
	if c.Betas[1] == 0 {
		c.Betas[1] = 0.999
	}
	if c.Eps == 0 {
		c.Eps = 1e-8
	}
	if c.WeightDecay < 0 {
		c.WeightDecay = 0
	}
	return c
}

func (c AdamConfig) validate() error {
	if !(c.LR > 0) {
		return fmt.Errorf("learning rate must be > 0, got %v", c.LR)
	}
	if !(c.Betas[0] >= 0 && c.Betas[0] < 1) {
		return fmt.Errorf("beta1 must be in [0,1), got %v", c.Betas[0])
	}
	if !(c.Betas[1] >= 0 && c.Betas[1] < 1) {
		return fmt.Errorf("beta2 must be in [0,1), got %v", c.Betas[1])
	}
	if !(c.Eps > 0) {
		return fmt.Errorf("eps must be > 0, got %v", c.Eps)
	}
	return nil
}

// NewAdam creates a new Adam optimizer over params.
//
// Zero-valued config fields take the conventional defaults:
//   - LR: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
//   - WeightDecay: 0 (coupled into the gradient when set; see Mode)
//
// Parameters must be contiguous CPU tensors. The unfused path supports
// float32 and float64 storage; the fused kernel additionally handles
// float16 and bfloat16.
func NewAdam(params []*Parameter, config AdamConfig) (*Adam, error) {
	config = config.withDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	if len(params) == 0 {
		return nil, errors.New("params must be non-empty")
	}
	for _, p := range params {
		if p == nil || p.Value() == nil {
			return nil, errors.New("nil parameter")
		}
		v := p.Value()
		if v.Device() != tensor.CPU {
			return nil, fmt.Errorf("parameter %q lives on %s, want %s", p.Name(), v.Device(), tensor.CPU)
		}
		if !v.IsContiguous() {
			return nil, fmt.Errorf("parameter %q is not contiguous", p.Name())
		}
		if !config.Fused {
			switch v.DType() {
			case tensor.Float32, tensor.Float64:
			default:
				return nil, fmt.Errorf("unfused adam does not support %s parameters (use Fused)", v.DType())
			}
		}
	}

	a := &Adam{
		params: params,
		cfg:    config,
		t:      0,
		state:  make(map[*Parameter]*adamState),
	}
	if config.Fused {
		if !backend.HasFusedAdam(tensor.CPU) {
			return nil, fmt.Errorf("no fused adam kernel registered for %s", tensor.CPU)
		}
		a.kernel = backend.FusedAdam(tensor.CPU)
	}
	return a, nil
}

// NewAdamW creates an Adam optimizer with decoupled weight decay.
//
// A zero WeightDecay selects the conventional AdamW default of 0.01; pass a
// negative value to disable decay outright. The Mode field is forced to
// ModeAdamW.
func NewAdamW(params []*Parameter, config AdamConfig) (*Adam, error) {
	if config.WeightDecay == 0 {
		config.WeightDecay = 0.01
	}
	config.Mode = backend.ModeAdamW
	return NewAdam(params, config)
}

// Step performs a single optimization step.
//
// For every parameter that has a gradient:
//  1. Lazily initialize the moment buffers (zeros, matching the parameter)
//  2. Apply the Adam update in place, through the fused kernel or the
//     unfused BLAS path per the configuration
//
// Parameters with no gradient are skipped; the timestep still advances.
func (a *Adam) Step() {
	// Increment timestep
	a.t++

	for _, param := range a.params {
		if param.Grad() == nil {
			// Parameter didn't participate in this step, skip.
			continue
		}

		st, ok := a.state[param]
		if !ok {
			st = a.newState(param)
			a.state[param] = st
		}

		if a.cfg.Fused {
			a.kernel(backend.FusedAdamArgs{
				Param:       param.Value(),
				Grad:        param.Grad(),
				ExpAvg:      st.expAvg,
				ExpAvgSq:    st.expAvgSq,
				MaxExpAvgSq: st.maxExpAvgSq,
				Step:        float64(a.t),
				LR:          a.cfg.LR,
				Beta1:       a.cfg.Betas[0],
				Beta2:       a.cfg.Betas[1],
				WeightDecay: a.cfg.WeightDecay,
				Eps:         a.cfg.Eps,
				AMSGrad:     a.cfg.AMSGrad,
				Maximize:    a.cfg.Maximize,
				GradScale:   a.cfg.GradScale,
				Mode:        a.cfg.Mode,
			})
		} else {
			a.stepUnfused(param, st)
		}
	}
}

// newState allocates zeroed moment buffers shaped like the parameter.
func (a *Adam) newState(param *Parameter) *adamState {
	v := param.Value()
	st := &adamState{
		expAvg:   zeros(v),
		expAvgSq: zeros(v),
	}
	if a.cfg.AMSGrad {
		st.maxExpAvgSq = zeros(v)
	}
	if !a.cfg.Fused {
		st.initScratch(v)
	}
	return st
}

// initScratch sizes the unfused path's working vectors for a parameter.
func (st *adamState) initScratch(v *tensor.RawTensor) {
	switch v.DType() {
	case tensor.Float32:
		st.scratch32 = make([]float32, v.NumElements())
	case tensor.Float64:
		st.scratch64 = make([]float64, v.NumElements())
	}
}

func zeros(like *tensor.RawTensor) *tensor.RawTensor {
	t, err := tensor.NewRaw(like.Shape(), like.DType(), like.Device())
	if err != nil {
		panic(fmt.Sprintf("allocating optimizer state: %v", err))
	}
	return t
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float64 {
	return a.cfg.LR
}

// SetLR updates the learning rate.
//
// Useful for learning rate scheduling during training.
func (a *Adam) SetLR(lr float64) {
	a.cfg.LR = lr
}

// GetTimestep returns the current timestep.
//
// Useful for monitoring optimizer state.
func (a *Adam) GetTimestep() int64 {
	return a.t
}

// ClipGradNorm scales all gradients so that their global L2 norm does not
// exceed maxNorm, and returns the norm measured before clipping. Call it
// between gradient computation and Step. Gradients must be contiguous;
// maxNorm <= 0 disables clipping (the norm is still returned).
func (a *Adam) ClipGradNorm(maxNorm float64) float64 {
	return ClipGradNorm(a.params, maxNorm)
}

// ClipGradNorm rescales all gradients in params in place so their global L2
// norm does not exceed maxNorm, and returns the norm measured before
// clipping. Gradients must be contiguous; maxNorm <= 0 disables clipping
// (the norm is still returned).
func ClipGradNorm(params []*Parameter, maxNorm float64) float64 {
	total := 0.0
	for _, param := range params {
		g := param.Grad()
		if g == nil {
			continue
		}
		switch g.DType() {
		case tensor.Float64:
			n := blas64.Nrm2(vec64(g.AsFloat64()))
			total += n * n
		case tensor.Float32:
			n := float64(blas32.Nrm2(vec32(g.AsFloat32())))
			total += n * n
		case tensor.Float16:
			for _, h := range g.AsF16() {
				x := float64(h.Float32())
				total += x * x
			}
		case tensor.BFloat16:
			for _, h := range g.AsBF16() {
				x := float64(h.Float32())
				total += x * x
			}
		}
	}
	norm := math.Sqrt(total)
	if maxNorm <= 0 || norm <= maxNorm || norm == 0 {
		return norm
	}

	scale := maxNorm / norm
	for _, param := range params {
		g := param.Grad()
		if g == nil {
			continue
		}
		switch g.DType() {
		case tensor.Float64:
			blas64.Scal(scale, vec64(g.AsFloat64()))
		case tensor.Float32:
			blas32.Scal(float32(scale), vec32(g.AsFloat32()))
		case tensor.Float16:
			s := float32(scale)
			data := g.AsF16()
			for i, h := range data {
				data[i] = tensor.F16FromFloat32(h.Float32() * s)
			}
		case tensor.BFloat16:
			s := float32(scale)
			data := g.AsBF16()
			for i, h := range data {
				data[i] = tensor.BF16FromFloat32(h.Float32() * s)
			}
		}
	}
	return norm
}
