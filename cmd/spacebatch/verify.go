package main

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/example/go-spacebatch/internal/runtime/ops"
	"github.com/example/go-spacebatch/internal/runtime/spacebatch"
	"github.com/example/go-spacebatch/internal/runtime/tensor"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	var (
		cases int
		seed  uint64
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Cross-check the parallel kernel against the sequential reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if cases < 1 {
				return fmt.Errorf("--cases must be at least 1")
			}

			checks := runVerify(verifyOptions{
				Cases:    cases,
				Seed:     seed,
				Workers:  cfg.Runtime.Workers,
				MinChunk: 1,
			})

			formatVerifyTable(checks, cmd.OutOrStdout())

			failed := 0
			for _, c := range checks {
				failed += c.Failures
			}

			slog.Info("verify complete", "checks", len(checks), "cases", cases, "seed", seed, "failures", failed)

			if failed > 0 {
				return fmt.Errorf("verify: %d mismatching cases", failed)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&cases, "cases", 25, "Random cases per block-dimension count and check")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed")

	return cmd
}

type verifyOptions struct {
	Cases    int
	Seed     uint64
	Workers  int
	MinChunk int
}

type verifyCheck struct {
	Name         string
	Cases        int
	Failures     int
	FirstFailure string
}

func (c *verifyCheck) record(err error) {
	c.Cases++

	if err == nil {
		return
	}

	c.Failures++
	if c.FirstFailure == "" {
		c.FirstFailure = err.Error()
	}
}

func runVerify(opts verifyOptions) []verifyCheck {
	r := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	launch := []spacebatch.Option{
		spacebatch.WithWorkers(opts.Workers),
		spacebatch.WithMinChunk(opts.MinChunk),
	}

	checks := []verifyCheck{
		{Name: "kernel/float32"},
		{Name: "kernel/int64"},
		{Name: "kernel/uint8"},
		{Name: "round_trip"},
		{Name: "atrous_conv1d"},
	}

	for nd := 1; nd <= spacebatch.MaxBlockDims; nd++ {
		for range opts.Cases {
			c := randomGeometry(r, nd)

			checks[0].record(checkKernel(c, launch, func(i int) float32 { return float32(i) + 0.5 }))
			checks[1].record(checkKernel(c, launch, func(i int) int64 { return int64(i)*7 - 3 }))
			checks[2].record(checkKernel(c, launch, func(i int) uint8 { return uint8(i*31 + 1) }))
			checks[3].record(checkRoundTrip(c))
		}
	}

	for range opts.Cases {
		checks[4].record(checkAtrous(r))
	}

	return checks
}

type geometry struct {
	space    []int64
	block    []int64
	paddings []int64
}

func (g geometry) String() string {
	return fmt.Sprintf("space=%v block=%v paddings=%v", g.space, g.block, g.paddings)
}

func randomGeometry(r *rand.Rand, nd int) geometry {
	g := geometry{
		space:    make([]int64, nd+2),
		block:    make([]int64, nd),
		paddings: make([]int64, 2*nd),
	}

	g.space[0] = int64(1 + r.IntN(3))
	g.space[nd+1] = int64(1 + r.IntN(4))

	for i := range nd {
		g.space[i+1] = int64(r.IntN(7))
		g.block[i] = int64(1 + r.IntN(4))
		g.paddings[2*i] = int64(r.IntN(3))
		g.paddings[2*i+1] = int64(r.IntN(3))
	}

	return g
}

func checkKernel[T comparable](g geometry, launch []spacebatch.Option, fill func(int) T) error {
	batchShape, err := spacebatch.BatchShape(g.space, g.block, g.paddings)
	if err != nil {
		return fmt.Errorf("%v: %w", g, err)
	}

	spaceData := filled(count(g.space), fill)
	batchData := filled(count(batchShape), fill)

	for _, dir := range []spacebatch.Direction{spacebatch.SpaceToBatch, spacebatch.BatchToSpace} {
		srcData, srcShape, dstShape := spaceData, g.space, batchShape
		if dir == spacebatch.BatchToSpace {
			srcData, srcShape, dstShape = batchData, batchShape, g.space
		}

		got, err := runOnce(dir, srcData, srcShape, g, dstShape, func(src, dst spacebatch.View[T]) error {
			return spacebatch.Transform(dir, src, g.block, g.paddings, dst, launch...)
		})
		if err != nil {
			return err
		}

		want, err := runOnce(dir, srcData, srcShape, g, dstShape, func(src, dst spacebatch.View[T]) error {
			return spacebatch.Reference(dir, src, g.block, g.paddings, dst)
		})
		if err != nil {
			return err
		}

		if !slices.Equal(got, want) {
			return fmt.Errorf("%s %v: kernel and reference differ", dir, g)
		}
	}

	return nil
}

func runOnce[T any](dir spacebatch.Direction, srcData []T, srcShape []int64, g geometry, dstShape []int64, fn func(src, dst spacebatch.View[T]) error) ([]T, error) {
	src, err := spacebatch.NewView(srcData, srcShape)
	if err != nil {
		return nil, fmt.Errorf("%s %v: %w", dir, g, err)
	}

	dst, err := spacebatch.NewView(make([]T, count(dstShape)), dstShape)
	if err != nil {
		return nil, fmt.Errorf("%s %v: %w", dir, g, err)
	}

	if err := fn(src, dst); err != nil {
		return nil, fmt.Errorf("%s %v: %w", dir, g, err)
	}

	return dst.Data(), nil
}

func checkRoundTrip(g geometry) error {
	x := filled(count(g.space), func(i int) float64 { return float64(i) - 0.25 })

	batch, batchShape, err := ops.SpaceToBatchND(x, g.space, g.block, g.paddings)
	if err != nil {
		return fmt.Errorf("space-to-batch %v: %w", g, err)
	}

	crops, err := spacebatch.InverseCrops(g.space, g.block, g.paddings)
	if err != nil {
		return fmt.Errorf("crops %v: %w", g, err)
	}

	back, backShape, err := ops.BatchToSpaceND(batch, batchShape, g.block, crops)
	if err != nil {
		return fmt.Errorf("batch-to-space %v: %w", g, err)
	}

	if !slices.Equal(backShape, g.space) || !slices.Equal(back, x) {
		return fmt.Errorf("round trip %v: result differs from input", g)
	}

	return nil
}

func checkAtrous(r *rand.Rand) error {
	tol, err := ops.KernelTolerance("atrous_conv1d")
	if err != nil {
		return err
	}

	batch := int64(1 + r.IntN(2))
	cin := int64(1 + r.IntN(3))
	cout := int64(1 + r.IntN(3))
	kernelSize := int64(1 + r.IntN(3))
	rate := int64(1 + r.IntN(4))
	padding := int64(r.IntN(3))
	length := rate*(kernelSize-1) + 1 + int64(r.IntN(9))

	desc := fmt.Sprintf("batch=%d length=%d cin=%d cout=%d kernel=%d rate=%d padding=%d",
		batch, length, cin, cout, kernelSize, rate, padding)

	x, err := tensor.New(randomFloats(r, batch*length*cin), []int64{batch, length, cin})
	if err != nil {
		return err
	}

	w, err := tensor.New(randomFloats(r, kernelSize*cin*cout), []int64{kernelSize, cin, cout})
	if err != nil {
		return err
	}

	want, err := ops.Conv1DNLC(x, w, nil, rate, padding)
	if err != nil {
		return fmt.Errorf("%s: direct: %w", desc, err)
	}

	got, err := ops.AtrousConv1D(x, w, nil, rate, padding)
	if err != nil {
		return fmt.Errorf("%s: atrous: %w", desc, err)
	}

	if !slices.Equal(got.Shape(), want.Shape()) {
		return fmt.Errorf("%s: shape %v, want %v", desc, got.Shape(), want.Shape())
	}

	wantData := want.RawData()
	for i, v := range got.RawData() {
		if !tol.Within(float64(v), float64(wantData[i])) {
			return fmt.Errorf("%s: index %d got %v want %v", desc, i, v, wantData[i])
		}
	}

	return nil
}

func randomFloats(r *rand.Rand, n int64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = r.Float32()*2 - 1
	}

	return out
}

func filled[T any](n int64, fill func(int) T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = fill(i)
	}

	return out
}

func count(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}

	return n
}

func formatVerifyTable(checks []verifyCheck, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-16s  %6s  %8s  %s\n", "Check", "Cases", "Failures", "First failure")
	fmt.Fprintln(sb, strings.Repeat("-", 48))

	for _, c := range checks {
		fmt.Fprintf(sb, "%-16s  %6d  %8d  %s\n", c.Name, c.Cases, c.Failures, c.FirstFailure)
	}

	fmt.Fprint(w, sb.String())
}
