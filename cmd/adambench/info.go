package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/urfave/cli/v3"
	xcpu "golang.org/x/sys/cpu"

	"github.com/born-ml/fusedopt/backend/cpu"
	"github.com/born-ml/fusedopt/tensor"
)

func infoCmd() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Print kernel lane widths and detected CPU features",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Println("=== adambench info ===")
			fmt.Printf("Vector width: %d bits\n", cpu.VectorBits())
			fmt.Printf("CPUs:         %d\n", runtime.NumCPU())
			fmt.Printf("GOMAXPROCS:   %d\n", runtime.GOMAXPROCS(0))
			fmt.Println()

			fmt.Println("Lanes per block:")
			dtypes := []tensor.DataType{
				tensor.Float32, tensor.Float64, tensor.Float16, tensor.BFloat16,
			}
			for _, dt := range dtypes {
				fmt.Printf("  %-9s %d\n", dt.String(), cpu.LaneCount(dt))
			}
			fmt.Println()

			fmt.Println("CPU features:")
			fmt.Printf("  AVX2:     %v\n", xcpu.X86.HasAVX2)
			fmt.Printf("  FMA:      %v\n", xcpu.X86.HasFMA)
			fmt.Printf("  AVX512F:  %v\n", xcpu.X86.HasAVX512F)
			return nil
		},
	}
}
