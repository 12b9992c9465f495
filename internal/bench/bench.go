// Package bench provides benchmarking primitives for the spacebatch bench command.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	dsptime "github.com/cwbudde/algo-dsp/stats/time"
)

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the timing of a single transform pass.
type RunResult struct {
	Index      int
	Cold       bool // true for the first run (cold caches, first allocation)
	Duration   time.Duration
	Elements   int64
	Throughput float64 // elements per second
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration
}

// ComputeStats calculates min, max, mean and population standard deviation
// over a slice of durations. An empty slice yields zero Stats.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}

	mn, mx := durations[0], durations[0]
	samples := make([]float64, len(durations))

	for i, d := range durations {
		mn = min(mn, d)
		mx = max(mx, d)
		samples[i] = float64(d)
	}

	mean, variance, _, _ := dsptime.Moments(samples)

	return Stats{
		Min:    mn,
		Max:    mx,
		Mean:   time.Duration(math.Round(mean)),
		StdDev: time.Duration(math.Round(math.Sqrt(variance))),
	}
}

// Durations extracts the per-run durations.
func Durations(runs []RunResult) []time.Duration {
	out := make([]time.Duration, len(runs))
	for i, r := range runs {
		out[i] = r.Duration
	}

	return out
}

// ---------------------------------------------------------------------------
// Throughput helpers
// ---------------------------------------------------------------------------

// CalcThroughput returns elements processed per second.
// Returns 0 if dur is zero to avoid division by zero.
func CalcThroughput(elements int64, dur time.Duration) float64 {
	if dur <= 0 {
		return 0
	}

	return float64(elements) / dur.Seconds()
}

// MeanThroughput averages the per-run throughput.
func MeanThroughput(runs []RunResult) float64 {
	if len(runs) == 0 {
		return 0
	}

	var total float64
	for _, r := range runs {
		total += r.Throughput
	}

	return total / float64(len(runs))
}

// Run times fn runs times. Each pass is assumed to touch elements elements.
// The first run is marked cold. ctx is checked between runs.
func Run(ctx context.Context, runs int, elements int64, fn func() error) ([]RunResult, error) {
	if runs < 1 {
		return nil, fmt.Errorf("bench: runs must be at least 1, got %d", runs)
	}

	results := make([]RunResult, 0, runs)

	for i := range runs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		start := time.Now()
		if err := fn(); err != nil {
			return results, fmt.Errorf("run %d failed: %w", i+1, err)
		}

		dur := time.Since(start)

		results = append(results, RunResult{
			Index:      i,
			Cold:       i == 0,
			Duration:   dur,
			Elements:   elements,
			Throughput: CalcThroughput(elements, dur),
		})
	}

	return results, nil
}

// ---------------------------------------------------------------------------
// Throughput threshold gate
// ---------------------------------------------------------------------------

// CheckThroughputThreshold returns an error if meanThroughput < threshold.
// A threshold of 0 disables the gate.
func CheckThroughputThreshold(meanThroughput, threshold float64) error {
	if threshold <= 0 {
		return nil
	}

	if meanThroughput < threshold {
		return fmt.Errorf("mean throughput %.0f elem/s below threshold %.0f", meanThroughput, threshold)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// FormatTable writes a human-readable ASCII table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %-5s  %10s  %12s  %14s\n", "Run", "Cold", "MS", "Elements", "Melem/s")
	fmt.Fprintln(sb, strings.Repeat("-", 54))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}

		fmt.Fprintf(sb, "%-5d  %-5s  %10.3f  %12d  %14.2f\n",
			r.Index+1,
			cold,
			millis(r.Duration),
			r.Elements,
			r.Throughput/1e6,
		)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 54))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.3f  (min)\n", "", "", millis(stats.Min))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.3f  (mean)\n", "", "", millis(stats.Mean))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.3f  (max)\n", "", "", millis(stats.Max))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.3f  (stddev)\n", "", "", millis(stats.StdDev))

	fmt.Fprint(w, sb.String())
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index      int     `json:"index"`
	Cold       bool    `json:"cold"`
	DurationMS float64 `json:"duration_ms"`
	Elements   int64   `json:"elements"`
	Throughput float64 `json:"elements_per_sec"`
}

type jsonStats struct {
	MinMS          float64 `json:"min_ms"`
	MeanMS         float64 `json:"mean_ms"`
	MaxMS          float64 `json:"max_ms"`
	StdDevMS       float64 `json:"stddev_ms"`
	MeanThroughput float64 `json:"mean_elements_per_sec"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) error {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:          millis(stats.Min),
			MeanMS:         millis(stats.Mean),
			MaxMS:          millis(stats.Max),
			StdDevMS:       millis(stats.StdDev),
			MeanThroughput: MeanThroughput(runs),
		},
	}

	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:      r.Index,
			Cold:       r.Cold,
			DurationMS: millis(r.Duration),
			Elements:   r.Elements,
			Throughput: r.Throughput,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(jr)
}
