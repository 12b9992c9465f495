package spacebatch

import (
	"runtime"
	"sync"
)

// DefaultMinChunk is the smallest number of elements handed to one
// goroutine before the pass falls back to fewer workers.
const DefaultMinChunk = 4096

// LaunchConfig is the grouping of a pass: Elements iterations split into
// contiguous chunks of Chunk elements, at most Workers chunks.
type LaunchConfig struct {
	Elements int32
	Workers  int
	Chunk    int32
}

// NewLaunchConfig sizes a pass over elements with at most maxWorkers
// goroutines and at least minChunk elements per goroutine.
func NewLaunchConfig(elements int32, maxWorkers, minChunk int) LaunchConfig {
	if elements <= 0 {
		return LaunchConfig{}
	}

	if maxWorkers < 1 {
		maxWorkers = 1
	}

	if minChunk < 1 {
		minChunk = 1
	}

	workers := min(maxWorkers, max(1, int(elements)/minChunk))
	chunk := int32((int(elements) + workers - 1) / workers)
	workers = int((elements + chunk - 1) / chunk)

	return LaunchConfig{Elements: elements, Workers: workers, Chunk: chunk}
}

// Option tunes how Transform launches its parallel pass.
type Option func(*options)

type options struct {
	workers  int
	minChunk int
}

// WithWorkers caps the number of goroutines. n <= 1 runs the pass on the
// calling goroutine.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithMinChunk sets the minimum number of elements per goroutine.
func WithMinChunk(n int) Option {
	return func(o *options) { o.minChunk = n }
}

func resolveOptions(opts []Option) options {
	o := options{workers: runtime.GOMAXPROCS(0), minChunk: DefaultMinChunk}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// run executes fn over [0, cfg.Elements) in cfg.Workers contiguous chunks.
func run(cfg LaunchConfig, fn func(lo, hi int32)) {
	if cfg.Elements <= 0 {
		return
	}

	if cfg.Workers <= 1 {
		fn(0, cfg.Elements)
		return
	}

	var wg sync.WaitGroup

	for lo := int32(0); lo < cfg.Elements; lo += cfg.Chunk {
		// lo+Chunk may exceed MaxInt32 on the last chunk.
		hi := int32(min(int64(lo)+int64(cfg.Chunk), int64(cfg.Elements)))

		wg.Add(1)
		go func(lo, hi int32) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)

		if hi == cfg.Elements {
			break
		}
	}

	wg.Wait()
}
