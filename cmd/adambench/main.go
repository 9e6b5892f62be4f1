// Package main provides the adambench CLI for the fusedopt kernels.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

const version = "v0.1.0-dev"

func main() {
	app := &cli.Command{
		Name:  "adambench",
		Usage: "Benchmark and inspect the fused Adam/AdamW CPU kernel",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Value:       "info",
				Destination: &logLevel,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			runCmd(),
			scenariosCmd(),
			inspectCmd(),
			infoCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("adambench %s\n", version)
			return nil
		},
	}
}
