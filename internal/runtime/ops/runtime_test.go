package ops

import (
	"runtime"
	"sync/atomic"
	"testing"
)

func TestSetWorkersClamps(t *testing.T) {
	t.Cleanup(func() { SetWorkers(runtime.GOMAXPROCS(0)) })

	SetWorkers(-3)

	if got := getWorkers(); got != 1 {
		t.Fatalf("getWorkers() = %d, want 1", got)
	}

	SetWorkers(6)

	if got := getWorkers(); got != 6 {
		t.Fatalf("getWorkers() = %d, want 6", got)
	}
}

func TestParallelForCoversRange(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 16} {
		var sum atomic.Int64

		parallelFor(100, workers, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				sum.Add(int64(i))
			}
		})

		if got := sum.Load(); got != 4950 {
			t.Fatalf("workers=%d sum=%d, want 4950", workers, got)
		}
	}
}

func TestParallelForEmpty(t *testing.T) {
	parallelFor(0, 4, func(_, _ int) {
		t.Fatal("fn must not run for n=0")
	})
}
