package ops

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/example/go-spacebatch/internal/runtime/spacebatch"
)

// workers caps the goroutines used by the space/batch transforms and the
// channels-last Conv1D. Values <= 1 run on the calling goroutine.
//
// Set via SetWorkers, typically wired to --runtime-workers.
var workers atomic.Int32

// minChunk is the minimum number of elements one goroutine handles in a
// space/batch pass.
var minChunk atomic.Int32

func init() {
	SetWorkers(runtime.GOMAXPROCS(0))
	SetMinChunk(spacebatch.DefaultMinChunk)
}

// SetWorkers sets the maximum number of goroutines used by operators.
// n <= 1 disables parallelism.
func SetWorkers(n int) {
	workers.Store(clampInt32(n, 1))
}

// SetMinChunk sets the smallest per-goroutine slice of a transform pass.
func SetMinChunk(n int) {
	minChunk.Store(clampInt32(n, 1))
}

func getWorkers() int { return int(workers.Load()) }

func launchOptions() []spacebatch.Option {
	return []spacebatch.Option{
		spacebatch.WithWorkers(getWorkers()),
		spacebatch.WithMinChunk(int(minChunk.Load())),
	}
}

func clampInt32(n, lo int) int32 {
	const maxInt32 = int(^uint32(0) >> 1)

	if n < lo {
		n = lo
	}

	if n > maxInt32 {
		n = maxInt32
	}

	return int32(n)
}

// parallelFor splits the range [0, n) into chunks and runs fn(lo, hi)
// concurrently. When workers <= 1 the call is sequential (no goroutines).
func parallelFor(n, workers int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}

	if workers <= 1 || n == 1 {
		fn(0, n)
		return
	}

	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup

	chunk := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)

		wg.Add(1)

		go func(lo, hi int) {
			defer wg.Done()

			fn(lo, hi)
		}(lo, hi)
	}

	wg.Wait()
}
