package main

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/fusedopt/optim"
	"github.com/born-ml/fusedopt/tensor"
)

func TestResolveSpec(t *testing.T) {
	t.Run("built-in fallbacks", func(t *testing.T) {
		spec, err := resolveSpec(scenarioSpec{}, scenarioSpec{})
		if err != nil {
			t.Fatalf("resolveSpec returned error: %v", err)
		}
		if spec.Size != 1<<20 {
			t.Fatalf("default size = %d, want %d", spec.Size, 1<<20)
		}
		if spec.DType != tensor.Float32 {
			t.Fatalf("default dtype = %v, want Float32", spec.DType)
		}
		if spec.Mode != optim.ModeAdamW {
			t.Fatalf("default mode = %v, want ModeAdamW", spec.Mode)
		}
		if !spec.Fused {
			t.Fatal("default fused = false, want true")
		}
		if spec.Steps != 20 || spec.Warmup != 1 || spec.Runs != 3 {
			t.Fatalf("default steps/warmup/runs = %d/%d/%d, want 20/1/3",
				spec.Steps, spec.Warmup, spec.Runs)
		}
	})

	t.Run("defaults block overrides built-ins", func(t *testing.T) {
		size := 4096
		dtype := "bf16"
		spec, err := resolveSpec(scenarioSpec{}, scenarioSpec{Size: &size, DType: &dtype})
		if err != nil {
			t.Fatalf("resolveSpec returned error: %v", err)
		}
		if spec.Size != 4096 {
			t.Fatalf("size = %d, want 4096", spec.Size)
		}
		if spec.DType != tensor.BFloat16 {
			t.Fatalf("dtype = %v, want BFloat16", spec.DType)
		}
	})

	t.Run("scenario overrides defaults block", func(t *testing.T) {
		defSize, scenSize := 4096, 8192
		defMode, scenMode := "adamw", "adam"
		spec, err := resolveSpec(
			scenarioSpec{Size: &scenSize, Mode: &scenMode},
			scenarioSpec{Size: &defSize, Mode: &defMode},
		)
		if err != nil {
			t.Fatalf("resolveSpec returned error: %v", err)
		}
		if spec.Size != 8192 {
			t.Fatalf("size = %d, want 8192", spec.Size)
		}
		if spec.Mode != optim.ModeOriginal {
			t.Fatalf("mode = %v, want ModeOriginal", spec.Mode)
		}
	})

	t.Run("unknown dtype fails", func(t *testing.T) {
		bad := "int8"
		if _, err := resolveSpec(scenarioSpec{DType: &bad}, scenarioSpec{}); err == nil {
			t.Fatal("expected error for unknown dtype")
		}
	})

	t.Run("unknown mode fails", func(t *testing.T) {
		bad := "nadam"
		if _, err := resolveSpec(scenarioSpec{Mode: &bad}, scenarioSpec{}); err == nil {
			t.Fatal("expected error for unknown mode")
		}
	})
}

func TestScenarioFileParses(t *testing.T) {
	raw, err := os.ReadFile("testdata/scenarios.yaml")
	if err != nil {
		t.Fatalf("read testdata: %v", err)
	}

	var sf scenarioFile
	if err := yaml.Unmarshal(raw, &sf); err != nil {
		t.Fatalf("parse testdata: %v", err)
	}
	if len(sf.Scenarios) != 6 {
		t.Fatalf("parsed %d scenarios, want 6", len(sf.Scenarios))
	}

	for _, s := range sf.Scenarios {
		spec, err := resolveSpec(s, sf.Defaults)
		if err != nil {
			t.Fatalf("resolve %q: %v", s.Name, err)
		}
		if spec.Size != 65536 {
			t.Fatalf("scenario %q size = %d, want 65536 from defaults", s.Name, spec.Size)
		}
		if spec.Mode != optim.ModeAdamW {
			t.Fatalf("scenario %q mode = %v, want ModeAdamW from defaults", s.Name, spec.Mode)
		}
	}

	last := sf.Scenarios[5]
	spec, err := resolveSpec(last, sf.Defaults)
	if err != nil {
		t.Fatalf("resolve %q: %v", last.Name, err)
	}
	if spec.Fused {
		t.Fatalf("scenario %q fused = true, want false", last.Name)
	}
}

func TestBenchSpecValidate(t *testing.T) {
	good := benchSpec{Size: 8, Steps: 1, Runs: 1}
	if err := good.validate(); err != nil {
		t.Fatalf("validate returned error for valid spec: %v", err)
	}

	bad := []benchSpec{
		{Size: 0, Steps: 1, Runs: 1},
		{Size: 8, Steps: 0, Runs: 1},
		{Size: 8, Steps: 1, Runs: 0},
		{Size: 8, Steps: 1, Runs: 1, Warmup: -1},
	}
	for i, spec := range bad {
		if err := spec.validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestRunBenchSmoke(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	spec := benchSpec{
		Name:  "smoke",
		Size:  256,
		DType: tensor.Float32,
		Mode:  optim.ModeAdamW,
		Fused: true,
		LR:    0.001,
		Steps: 2,
		Runs:  1,
	}
	report, err := runBench(log, spec)
	if err != nil {
		t.Fatalf("runBench returned error: %v", err)
	}
	if report.Size != 256 || report.DType != "float32" || report.Mode != "adamw" {
		t.Fatalf("report identity fields wrong: %+v", report)
	}
	if report.BestNsPerStep <= 0 || report.BestElemPerS <= 0 {
		t.Fatalf("report timing fields not positive: %+v", report)
	}
}
