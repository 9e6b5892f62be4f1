package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/fusedopt/backend/cpu"
	"github.com/born-ml/fusedopt/optim"
	"github.com/born-ml/fusedopt/tensor"
)

// benchSpec describes one timed optimizer configuration.
type benchSpec struct {
	Name        string
	Size        int
	DType       tensor.DataType
	Mode        optim.AdamMode
	Fused       bool
	AMSGrad     bool
	Maximize    bool
	LR          float64
	WeightDecay float64
	GradScale   float64 // 0 disables gradient unscaling
	Steps       int
	Warmup      int
	Runs        int
}

func (s benchSpec) validate() error {
	if s.Size < 1 {
		return fmt.Errorf("size must be >= 1, got %d", s.Size)
	}
	if s.Steps < 1 {
		return fmt.Errorf("steps must be >= 1, got %d", s.Steps)
	}
	if s.Runs < 1 {
		return fmt.Errorf("runs must be >= 1, got %d", s.Runs)
	}
	if s.Warmup < 0 {
		return fmt.Errorf("warmup must be >= 0, got %d", s.Warmup)
	}
	return nil
}

// benchReport is the JSON shape emitted for one completed spec.
type benchReport struct {
	Name          string  `json:"name,omitempty"`
	Size          int     `json:"size"`
	DType         string  `json:"dtype"`
	Mode          string  `json:"mode"`
	Fused         bool    `json:"fused"`
	AMSGrad       bool    `json:"amsgrad"`
	Maximize      bool    `json:"maximize,omitempty"`
	GradScale     float64 `json:"grad_scale,omitempty"`
	Steps         int     `json:"steps"`
	Runs          int     `json:"runs"`
	BestNsPerStep float64 `json:"best_ns_per_step"`
	AvgNsPerStep  float64 `json:"avg_ns_per_step"`
	BestElemPerS  float64 `json:"best_elements_per_sec"`
}

// runBench times spec.Runs runs of spec.Steps optimizer steps over one
// freshly initialized parameter and aggregates the result. The parameter and
// gradient are filled from a fixed seed so repeated invocations time the same
// arithmetic.
func runBench(log *slog.Logger, spec benchSpec) (benchReport, error) {
	if err := spec.validate(); err != nil {
		return benchReport{}, err
	}

	rng := rand.New(rand.NewSource(42))
	vals := make([]float32, spec.Size)
	gvals := make([]float32, spec.Size)
	for i := range vals {
		vals[i] = float32(rng.NormFloat64())
		gvals[i] = float32(rng.NormFloat64()) * 0.1
	}
	if spec.GradScale != 0 {
		// Pre-scale the gradients so the unscale path divides them back
		// to the usual magnitude.
		for i := range gvals {
			gvals[i] *= float32(spec.GradScale)
		}
	}

	value, err := tensor.FromFloat32As(vals, tensor.Shape{spec.Size}, spec.DType)
	if err != nil {
		return benchReport{}, fmt.Errorf("allocate param: %w", err)
	}
	grad, err := tensor.FromFloat32As(gvals, tensor.Shape{spec.Size}, spec.DType)
	if err != nil {
		return benchReport{}, fmt.Errorf("allocate grad: %w", err)
	}

	cfg := optim.AdamConfig{
		LR:          spec.LR,
		WeightDecay: spec.WeightDecay,
		AMSGrad:     spec.AMSGrad,
		Maximize:    spec.Maximize,
		Mode:        spec.Mode,
		Fused:       spec.Fused,
	}
	if spec.GradScale != 0 {
		scale := float32(spec.GradScale)
		cfg.GradScale = &scale
	}

	param := optim.NewParameter("bench", value)
	param.SetGrad(grad)
	opt, err := optim.NewAdam([]*optim.Parameter{param}, cfg)
	if err != nil {
		return benchReport{}, err
	}

	runOnce := func() time.Duration {
		start := time.Now()
		for s := 0; s < spec.Steps; s++ {
			opt.Step() // construction already validated everything Step checks
		}
		return time.Since(start)
	}

	for i := 0; i < spec.Warmup; i++ {
		log.Debug("warmup run", "name", spec.Name, "run", i+1)
		runOnce()
	}

	durations := make([]time.Duration, 0, spec.Runs)
	for i := 0; i < spec.Runs; i++ {
		log.Debug("benchmark run", "name", spec.Name, "run", i+1)
		durations = append(durations, runOnce())
	}

	best := durations[0]
	var total time.Duration
	for _, d := range durations {
		if d < best {
			best = d
		}
		total += d
	}

	steps := float64(spec.Steps)
	return benchReport{
		Name:          spec.Name,
		Size:          spec.Size,
		DType:         spec.DType.String(),
		Mode:          spec.Mode.String(),
		Fused:         spec.Fused,
		AMSGrad:       spec.AMSGrad,
		Maximize:      spec.Maximize,
		GradScale:     spec.GradScale,
		Steps:         spec.Steps,
		Runs:          spec.Runs,
		BestNsPerStep: float64(best.Nanoseconds()) / steps,
		AvgNsPerStep:  float64(total.Nanoseconds()) / steps / float64(len(durations)),
		BestElemPerS:  float64(spec.Size) * steps / best.Seconds(),
	}, nil
}

// printSystemHeader prints the machine context a report was measured in.
func printSystemHeader() {
	fmt.Println("=== adambench ===")
	fmt.Printf("CPUs:       %d\n", runtime.NumCPU())
	fmt.Printf("GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))
	fmt.Printf("Vector:     %d bits\n", cpu.VectorBits())
	fmt.Println()
}

// printReports writes the human-readable results table.
func printReports(reports []benchReport) {
	fmt.Println("=== Results ===")
	fmt.Printf("%-20s %10s %9s %6s %7s %12s %12s %10s\n",
		"Name", "Size", "DType", "Mode", "Fused", "ns/step", "avg ns/step", "Melem/s")
	for _, r := range reports {
		name := r.Name
		if name == "" {
			name = "run"
		}
		if r.AMSGrad {
			name += "+ams"
		}
		fmt.Printf("%-20s %10d %9s %6s %7v %12.0f %12.0f %10.1f\n",
			name, r.Size, r.DType, r.Mode, r.Fused,
			r.BestNsPerStep, r.AvgNsPerStep, r.BestElemPerS/1e6)
	}
}

// writeJSON emits v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func runCmd() *cli.Command {
	var (
		size        int64
		dtypeName   string
		modeName    string
		unfused     bool
		amsgrad     bool
		maximize    bool
		lr          float64
		weightDecay float64
		gradScale   float64
		steps       int64
		warmup      int64
		runs        int64
		jsonOut     bool
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Time optimizer steps over one parameter tensor",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "size",
				Aliases:     []string{"n"},
				Usage:       "elements in the parameter tensor",
				Value:       1 << 20,
				Destination: &size,
			},
			&cli.StringFlag{
				Name:        "dtype",
				Usage:       "parameter dtype (float32, float64, float16, bfloat16)",
				Value:       "float32",
				Destination: &dtypeName,
			},
			&cli.StringFlag{
				Name:        "mode",
				Usage:       "weight decay mode (adam, adamw)",
				Value:       "adamw",
				Destination: &modeName,
			},
			&cli.BoolFlag{
				Name:        "unfused",
				Usage:       "use the BLAS reference path instead of the fused kernel",
				Destination: &unfused,
			},
			&cli.BoolFlag{
				Name:        "amsgrad",
				Usage:       "track the elementwise maximum of the second moment",
				Destination: &amsgrad,
			},
			&cli.BoolFlag{
				Name:        "maximize",
				Usage:       "ascend the objective instead of descending",
				Destination: &maximize,
			},
			&cli.FloatFlag{
				Name:        "lr",
				Usage:       "learning rate",
				Value:       0.001,
				Destination: &lr,
			},
			&cli.FloatFlag{
				Name:        "weight-decay",
				Usage:       "weight decay coefficient",
				Value:       0.01,
				Destination: &weightDecay,
			},
			&cli.FloatFlag{
				Name:        "grad-scale",
				Usage:       "loss scale the gradients carry (0 disables unscaling)",
				Destination: &gradScale,
			},
			&cli.IntFlag{
				Name:        "steps",
				Usage:       "optimizer steps per run",
				Value:       20,
				Destination: &steps,
			},
			&cli.IntFlag{
				Name:        "warmup",
				Usage:       "number of warmup runs",
				Value:       1,
				Destination: &warmup,
			},
			&cli.IntFlag{
				Name:        "runs",
				Usage:       "number of timed runs",
				Value:       5,
				Destination: &runs,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "emit the report as JSON on stdout",
				Destination: &jsonOut,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := newLogger()

			dt, ok := tensor.ParseDataType(dtypeName)
			if !ok {
				return cli.Exit(fmt.Sprintf("error: unknown dtype %q", dtypeName), 1)
			}
			mode, ok := optim.ParseAdamMode(modeName)
			if !ok {
				return cli.Exit(fmt.Sprintf("error: unknown mode %q", modeName), 1)
			}

			spec := benchSpec{
				Size:        int(size),
				DType:       dt,
				Mode:        mode,
				Fused:       !unfused,
				AMSGrad:     amsgrad,
				Maximize:    maximize,
				LR:          lr,
				WeightDecay: weightDecay,
				GradScale:   gradScale,
				Steps:       int(steps),
				Warmup:      int(warmup),
				Runs:        int(runs),
			}

			log.Info("benchmarking",
				"size", spec.Size,
				"dtype", spec.DType.String(),
				"mode", spec.Mode.String(),
				"fused", spec.Fused,
				"amsgrad", spec.AMSGrad,
				"steps", spec.Steps,
				"runs", spec.Runs)

			report, err := runBench(log, spec)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			if jsonOut {
				return writeJSON(os.Stdout, report)
			}
			printSystemHeader()
			printReports([]benchReport{report})
			return nil
		},
	}
}
