package spacebatch

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLaunchConfig(t *testing.T) {
	tests := []struct {
		name       string
		elements   int32
		maxWorkers int
		minChunk   int
		want       LaunchConfig
	}{
		{name: "empty", elements: 0, maxWorkers: 8, minChunk: 16, want: LaunchConfig{}},
		{name: "below min chunk", elements: 100, maxWorkers: 8, minChunk: 4096, want: LaunchConfig{Elements: 100, Workers: 1, Chunk: 100}},
		{name: "even split", elements: 1000, maxWorkers: 4, minChunk: 10, want: LaunchConfig{Elements: 1000, Workers: 4, Chunk: 250}},
		{name: "min chunk limits workers", elements: 1000, maxWorkers: 64, minChunk: 300, want: LaunchConfig{Elements: 1000, Workers: 3, Chunk: 334}},
		{name: "uneven", elements: 10, maxWorkers: 4, minChunk: 1, want: LaunchConfig{Elements: 10, Workers: 4, Chunk: 3}},
		{name: "nonsense knobs", elements: 10, maxWorkers: 0, minChunk: 0, want: LaunchConfig{Elements: 10, Workers: 1, Chunk: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewLaunchConfig(tt.elements, tt.maxWorkers, tt.minChunk))
		})
	}
}

func TestRun_CoversEveryIndexOnce(t *testing.T) {
	for _, workers := range []int{1, 2, 3, 7, 16} {
		const n = 1000

		hits := make([]atomic.Int32, n)
		cfg := NewLaunchConfig(n, workers, 1)

		run(cfg, func(lo, hi int32) {
			for i := lo; i < hi; i++ {
				hits[i].Add(1)
			}
		})

		for i := range hits {
			if got := hits[i].Load(); got != 1 {
				t.Fatalf("workers=%d index %d visited %d times", workers, i, got)
			}
		}
	}
}

func TestRun_NoElements(t *testing.T) {
	called := false

	run(LaunchConfig{}, func(_, _ int32) { called = true })

	assert.False(t, called)
}
