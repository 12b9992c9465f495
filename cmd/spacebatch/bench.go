package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/pprof"

	"github.com/example/go-spacebatch/internal/bench"
	"github.com/example/go-spacebatch/internal/config"
	"github.com/example/go-spacebatch/internal/runtime/spacebatch"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		direction     string
		shape         []int
		runs          int
		format        string
		minThroughput float64
		cpuProfile    string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark transform throughput on a synthetic float32 tensor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			dir, err := spacebatch.ParseDirection(direction)
			if err != nil {
				return err
			}

			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}

			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}

			if cpuProfile != "" {
				stop, err := startCPUProfile(cpuProfile)
				if err != nil {
					return err
				}
				defer stop()
			}

			results, err := runBench(cmd.Context(), benchOptions{
				Direction: dir,
				Shape:     toInt64s(shape),
				Transform: cfg.Transform,
				Runtime:   cfg.Runtime,
				Runs:      runs,
			})
			if err != nil {
				return err
			}

			stats := bench.ComputeStats(bench.Durations(results))

			if err := writeBenchReport(cmd.OutOrStdout(), format, results, stats); err != nil {
				return err
			}

			return bench.CheckThroughputThreshold(bench.MeanThroughput(results), minThroughput)
		},
	}

	cmd.Flags().StringVar(&direction, "direction", "s2b", "Transform direction: s2b|b2s")
	cmd.Flags().IntSliceVar(&shape, "shape", []int{8, 256, 256, 32}, "Source tensor shape [batch, spatial..., depth]")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of timed runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().Float64Var(&minThroughput, "min-throughput", 0, "Exit non-zero if mean elements/s falls below this value (0 = disabled)")
	cmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "Write a CPU profile of the timed runs to this path")

	return cmd
}

type benchOptions struct {
	Direction spacebatch.Direction
	Shape     []int64
	Transform config.TransformConfig
	Runtime   config.RuntimeConfig
	Runs      int
}

// runBench allocates both buffers once and times repeated passes over them.
func runBench(ctx context.Context, opts benchOptions) ([]bench.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	block := opts.Transform.Block()
	pads := opts.Transform.Pads()

	var (
		dstShape []int64
		err      error
	)

	switch opts.Direction {
	case spacebatch.SpaceToBatch:
		dstShape, err = spacebatch.BatchShape(opts.Shape, block, pads)
	case spacebatch.BatchToSpace:
		dstShape, err = spacebatch.SpaceShape(opts.Shape, block, pads)
	default:
		err = fmt.Errorf("unsupported direction %s", opts.Direction)
	}

	if err != nil {
		return nil, fmt.Errorf("bench geometry: %w", err)
	}

	srcData := make([]float32, count(opts.Shape))
	for i := range srcData {
		srcData[i] = float32(i % 251)
	}

	src, err := spacebatch.NewView(srcData, opts.Shape)
	if err != nil {
		return nil, err
	}

	dst, err := spacebatch.NewView(make([]float32, count(dstShape)), dstShape)
	if err != nil {
		return nil, err
	}

	// The kernel visits every batch-tensor element.
	elements := int64(src.Len())
	if opts.Direction == spacebatch.SpaceToBatch {
		elements = int64(dst.Len())
	}

	launch := []spacebatch.Option{
		spacebatch.WithWorkers(opts.Runtime.Workers),
		spacebatch.WithMinChunk(opts.Runtime.MinParallel),
	}

	slog.Info("bench start",
		"direction", opts.Direction.String(),
		"shape", opts.Shape,
		"out_shape", dstShape,
		"block_shape", block,
		"paddings", pads,
		"elements", elements,
		"workers", opts.Runtime.Workers,
		"runs", opts.Runs,
	)

	return bench.Run(ctx, opts.Runs, elements, func() error {
		return spacebatch.Transform(opts.Direction, src, block, pads, dst, launch...)
	})
}

func writeBenchReport(w io.Writer, format string, results []bench.RunResult, stats bench.Stats) error {
	switch format {
	case "json":
		return bench.FormatJSON(results, stats, w)
	default:
		bench.FormatTable(results, stats, w)
		return nil
	}
}

func startCPUProfile(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cpu profile: %w", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("start cpu profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}

func toInt64s(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}

	return out
}
