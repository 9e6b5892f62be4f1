package optim

import (
	"fmt"

	"github.com/born-ml/fusedopt/internal/checkpoint"
	"github.com/born-ml/fusedopt/internal/tensor"
)

// State tensor name suffixes in a checkpoint. A parameter named "weight"
// stores its moments as "weight.exp_avg", "weight.exp_avg_sq" and, under
// AMSGrad, "weight.max_exp_avg_sq".
const (
	suffixExpAvg      = ".exp_avg"
	suffixExpAvgSq    = ".exp_avg_sq"
	suffixMaxExpAvgSq = ".max_exp_avg_sq"
)

// SaveState writes the optimizer's timestep and moment buffers to a .bopt
// file at path. Parameters that have not seen a gradient yet have no state
// and are skipped. Parameter names must be unique; they key the state on
// load.
//
// The parameter values themselves are not saved. Checkpoint them alongside
// with whatever mechanism owns the model.
func (a *Adam) SaveState(path string) error {
	tensors := make(map[string]*tensor.RawTensor, 3*len(a.params))
	seen := make(map[string]struct{}, len(a.params))
	for _, p := range a.params {
		name := p.Name()
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate parameter name %q", name)
		}
		seen[name] = struct{}{}

		st, ok := a.state[p]
		if !ok {
			continue
		}
		tensors[name+suffixExpAvg] = st.expAvg
		tensors[name+suffixExpAvgSq] = st.expAvgSq
		if st.maxExpAvgSq != nil {
			tensors[name+suffixMaxExpAvgSq] = st.maxExpAvgSq
		}
	}

	return checkpoint.Save(path, checkpoint.Snapshot{
		Optimizer: checkpoint.OptimizerMeta{
			Type:        a.cfg.Mode.String(),
			Step:        a.t,
			LR:          a.cfg.LR,
			Beta1:       a.cfg.Betas[0],
			Beta2:       a.cfg.Betas[1],
			Eps:         a.cfg.Eps,
			WeightDecay: a.cfg.WeightDecay,
			AMSGrad:     a.cfg.AMSGrad,
			Maximize:    a.cfg.Maximize,
		},
		Tensors: tensors,
	})
}

// LoadState restores the timestep and moment buffers saved by SaveState,
// matching parameters by name. The checkpoint must come from an optimizer
// with the same decay mode and AMSGrad setting; scalar hyperparameters (LR,
// betas, eps, weight decay) are not restored, so a schedule can keep driving
// them.
//
// Every state tensor in the file must match one of this optimizer's
// parameters in name, dtype and shape. Parameters absent from the file start
// with fresh state on their next step.
func (a *Adam) LoadState(path string) error {
	snap, err := checkpoint.Load(path)
	if err != nil {
		return err
	}

	if snap.Optimizer.Type != a.cfg.Mode.String() {
		return fmt.Errorf("checkpoint was saved with mode %q, optimizer uses %q", snap.Optimizer.Type, a.cfg.Mode)
	}
	if snap.Optimizer.AMSGrad != a.cfg.AMSGrad {
		return fmt.Errorf("checkpoint amsgrad=%v, optimizer amsgrad=%v", snap.Optimizer.AMSGrad, a.cfg.AMSGrad)
	}

	byName := make(map[string]*Parameter, len(a.params))
	for _, p := range a.params {
		if _, dup := byName[p.Name()]; dup {
			return fmt.Errorf("duplicate parameter name %q", p.Name())
		}
		byName[p.Name()] = p
	}

	newState := make(map[*Parameter]*adamState, len(a.params))
	consumed := make(map[string]struct{}, len(snap.Tensors))
	for _, p := range a.params {
		name := p.Name()
		m, okM := snap.Tensors[name+suffixExpAvg]
		v, okV := snap.Tensors[name+suffixExpAvgSq]
		if !okM && !okV {
			continue
		}
		if okM != okV {
			return fmt.Errorf("checkpoint has partial state for parameter %q", name)
		}
		if err := checkStateTensor(p, name+suffixExpAvg, m); err != nil {
			return err
		}
		if err := checkStateTensor(p, name+suffixExpAvgSq, v); err != nil {
			return err
		}

		st := &adamState{expAvg: m, expAvgSq: v}
		if a.cfg.AMSGrad {
			x, okX := snap.Tensors[name+suffixMaxExpAvgSq]
			if !okX {
				return fmt.Errorf("checkpoint is missing %q", name+suffixMaxExpAvgSq)
			}
			if err := checkStateTensor(p, name+suffixMaxExpAvgSq, x); err != nil {
				return err
			}
			st.maxExpAvgSq = x
			consumed[name+suffixMaxExpAvgSq] = struct{}{}
		}
		if !a.cfg.Fused {
			st.initScratch(p.Value())
		}

		newState[p] = st
		consumed[name+suffixExpAvg] = struct{}{}
		consumed[name+suffixExpAvgSq] = struct{}{}
	}

	for name := range snap.Tensors {
		if _, ok := consumed[name]; !ok {
			return fmt.Errorf("checkpoint tensor %q does not match any parameter", name)
		}
	}

	a.state = newState
	a.t = snap.Optimizer.Step
	return nil
}

// checkStateTensor verifies a restored moment buffer lines up with its
// parameter.
func checkStateTensor(p *Parameter, name string, st *tensor.RawTensor) error {
	v := p.Value()
	if st.DType() != v.DType() {
		return fmt.Errorf("checkpoint tensor %q has dtype %s, parameter %q has %s", name, st.DType(), p.Name(), v.DType())
	}
	if !st.Shape().Equal(v.Shape()) {
		return fmt.Errorf("checkpoint tensor %q has shape %v, parameter %q has %v", name, st.Shape(), p.Name(), v.Shape())
	}
	return nil
}
