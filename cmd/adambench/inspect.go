package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/fusedopt/internal/checkpoint"
)

func inspectCmd() *cli.Command {
	var (
		path         string
		showTensors  bool
		tensorLimit  int
		tensorFilter string
		noVerify     bool
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the contents of a .bopt optimizer checkpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "path to .bopt checkpoint",
				Destination: &path,
				Required:    true,
			},
			&cli.BoolFlag{Name: "tensors", Usage: "list the state tensors", Destination: &showTensors},
			&cli.IntFlag{Name: "tensors-limit", Usage: "limit tensor listing (0 = no limit)", Value: 50, Destination: &tensorLimit},
			&cli.StringFlag{Name: "tensor-filter", Usage: "substring filter for tensor listing", Destination: &tensorFilter},
			&cli.BoolFlag{Name: "no-verify", Usage: "skip checksum verification", Destination: &noVerify},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx

			stat, err := os.Stat(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: stat checkpoint: %v", err), 1)
			}

			f, err := checkpoint.OpenUnverified(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open checkpoint: %v", err), 1)
			}
			defer func() { _ = f.Close() }()

			var checksumErr error
			checksumStatus := "skipped"
			if !noVerify {
				if checksumErr = f.VerifyChecksum(); checksumErr != nil {
					checksumStatus = "MISMATCH"
				} else {
					checksumStatus = "ok"
				}
			}

			hdr := f.Header()
			fmt.Printf("Checkpoint: %s (%s)\n", filepath.Base(path), formatBytes(uint64(stat.Size())))
			fmt.Printf("Format: v%d, %d tensors, data %s, checksum %s\n",
				hdr.FormatVersion, len(hdr.Tensors), formatBytes(uint64(f.DataSize())), checksumStatus)

			section("Optimizer")
			row("type", hdr.Optimizer.Type)
			row("step", fmt.Sprintf("%d", hdr.Optimizer.Step))
			row("lr", fmt.Sprintf("%g", hdr.Optimizer.LR))
			row("betas", fmt.Sprintf("(%g, %g)", hdr.Optimizer.Beta1, hdr.Optimizer.Beta2))
			row("eps", fmt.Sprintf("%g", hdr.Optimizer.Eps))
			row("weight_decay", fmt.Sprintf("%g", hdr.Optimizer.WeightDecay))
			row("amsgrad", fmt.Sprintf("%v", hdr.Optimizer.AMSGrad))
			row("maximize", fmt.Sprintf("%v", hdr.Optimizer.Maximize))

			if len(hdr.Metadata) > 0 {
				section("Metadata")
				keys := make([]string, 0, len(hdr.Metadata))
				for k := range hdr.Metadata {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					row(k, hdr.Metadata[k])
				}
			}

			printStateSummary(hdr.Tensors)

			if showTensors {
				printStateTensors(hdr.Tensors, tensorFilter, tensorLimit)
			}

			if checksumErr != nil {
				return cli.Exit(fmt.Sprintf("error: %v", checksumErr), 1)
			}
			return nil
		},
	}
}

func printStateSummary(tensors []checkpoint.TensorMeta) {
	section("State Tensors")
	if len(tensors) == 0 {
		fmt.Println("(no state tensors)")
		return
	}

	var total int64
	dtypeCounts := map[string]int{}
	dtypeBytes := map[string]int64{}
	for _, t := range tensors {
		dtypeCounts[t.DType]++
		dtypeBytes[t.DType] += t.Size
		total += t.Size
	}
	row("tensors", fmt.Sprintf("%d", len(tensors)))
	row("data_size", formatBytes(uint64(total)))

	keys := make([]string, 0, len(dtypeCounts))
	for k := range dtypeCounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		row("dtype_"+k, fmt.Sprintf("%d (%s)", dtypeCounts[k], formatBytes(uint64(dtypeBytes[k]))))
	}
}

func printStateTensors(tensors []checkpoint.TensorMeta, filter string, limit int) {
	section("Tensor Index")
	printed := 0
	for _, t := range tensors {
		if filter != "" && !strings.Contains(t.Name, filter) {
			continue
		}
		fmt.Printf("%s  dtype=%s shape=%s size=%s\n", t.Name, t.DType, formatShape(t.Shape), formatBytes(uint64(t.Size)))
		printed++
		if limit > 0 && printed >= limit {
			break
		}
	}
	if limit > 0 && printed < len(tensors) {
		fmt.Printf("... (%d shown of %d)\n", printed, len(tensors))
	}
}

func section(title string) {
	line := strings.Repeat("-", len(title)+8)
	fmt.Printf("\n%s\n--- %s ---\n%s\n", line, title, line)
}

func row(label, value string) {
	if value == "" {
		return
	}
	fmt.Printf("%-16s %s\n", label+":", value)
}

func formatShape(shape []int) string {
	if len(shape) == 0 {
		return "[]"
	}
	parts := make([]string, len(shape))
	for i, v := range shape {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.2f GiB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MiB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KiB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
