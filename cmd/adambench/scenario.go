package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/fusedopt/optim"
	"github.com/born-ml/fusedopt/tensor"
)

// scenarioSpec is one entry in a YAML scenario file. Unset fields inherit
// from the file's defaults block, then from built-in defaults.
type scenarioSpec struct {
	Name        string   `yaml:"name"`
	Size        *int     `yaml:"size"`
	DType       *string  `yaml:"dtype"`
	Mode        *string  `yaml:"mode"`
	Fused       *bool    `yaml:"fused"`
	AMSGrad     *bool    `yaml:"amsgrad"`
	Maximize    *bool    `yaml:"maximize"`
	LR          *float64 `yaml:"lr"`
	WeightDecay *float64 `yaml:"weight_decay"`
	GradScale   *float64 `yaml:"grad_scale"`
	Steps       *int     `yaml:"steps"`
	Warmup      *int     `yaml:"warmup"`
	Runs        *int     `yaml:"runs"`
}

// scenarioFile is the document root of a scenario YAML file.
type scenarioFile struct {
	Defaults  scenarioSpec   `yaml:"defaults"`
	Scenarios []scenarioSpec `yaml:"scenarios"`
}

func pick[T any](explicit, fallback *T, builtin T) T {
	if explicit != nil {
		return *explicit
	}
	if fallback != nil {
		return *fallback
	}
	return builtin
}

// resolveSpec merges one scenario over the file's defaults block and the
// built-in fallbacks, then parses the string-typed fields.
func resolveSpec(s, d scenarioSpec) (benchSpec, error) {
	dtypeName := pick(s.DType, d.DType, "float32")
	dt, ok := tensor.ParseDataType(dtypeName)
	if !ok {
		return benchSpec{}, fmt.Errorf("scenario %q: unknown dtype %q", s.Name, dtypeName)
	}
	modeName := pick(s.Mode, d.Mode, "adamw")
	mode, ok := optim.ParseAdamMode(modeName)
	if !ok {
		return benchSpec{}, fmt.Errorf("scenario %q: unknown mode %q", s.Name, modeName)
	}

	return benchSpec{
		Name:        s.Name,
		Size:        pick(s.Size, d.Size, 1<<20),
		DType:       dt,
		Mode:        mode,
		Fused:       pick(s.Fused, d.Fused, true),
		AMSGrad:     pick(s.AMSGrad, d.AMSGrad, false),
		Maximize:    pick(s.Maximize, d.Maximize, false),
		LR:          pick(s.LR, d.LR, 0.001),
		WeightDecay: pick(s.WeightDecay, d.WeightDecay, 0),
		GradScale:   pick(s.GradScale, d.GradScale, 0),
		Steps:       pick(s.Steps, d.Steps, 20),
		Warmup:      pick(s.Warmup, d.Warmup, 1),
		Runs:        pick(s.Runs, d.Runs, 3),
	}, nil
}

func scenariosCmd() *cli.Command {
	var (
		file   string
		output string
	)

	return &cli.Command{
		Name:  "scenarios",
		Usage: "Run a YAML-defined benchmark sweep and emit a JSON report",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "scenario YAML file",
				Destination: &file,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "write the JSON report to a file instead of stdout",
				Destination: &output,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := newLogger()

			raw, err := os.ReadFile(file)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: read scenarios: %v", err), 1)
			}
			var sf scenarioFile
			if err := yaml.Unmarshal(raw, &sf); err != nil {
				return cli.Exit(fmt.Sprintf("error: parse %s: %v", file, err), 1)
			}
			if len(sf.Scenarios) == 0 {
				return cli.Exit(fmt.Sprintf("error: %s defines no scenarios", file), 1)
			}

			reports := make([]benchReport, 0, len(sf.Scenarios))
			for i, s := range sf.Scenarios {
				spec, err := resolveSpec(s, sf.Defaults)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				if spec.Name == "" {
					spec.Name = fmt.Sprintf("scenario-%d", i+1)
				}

				log.Info("running scenario",
					"name", spec.Name,
					"size", spec.Size,
					"dtype", spec.DType.String(),
					"mode", spec.Mode.String(),
					"fused", spec.Fused)

				report, err := runBench(log, spec)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: scenario %q: %v", spec.Name, err), 1)
				}
				reports = append(reports, report)
			}

			w := os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: create %s: %v", output, err), 1)
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			return writeJSON(w, reports)
		},
	}
}
