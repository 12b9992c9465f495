package spacebatch

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func iota32(n int64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i + 1)
	}

	return out
}

func mustView[T any](t *testing.T, data []T, shape []int64) View[T] {
	t.Helper()

	v, err := NewView(data, shape)
	require.NoError(t, err)

	return v
}

func product(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}

	return n
}

// transformCase is one randomly drawn space shape with block/padding
// parameters for a given block-dimension count.
type transformCase struct {
	space    []int64
	block    []int64
	paddings []int64
}

func randomCase(r *rand.Rand, nd int, withPadding bool) transformCase {
	c := transformCase{
		space:    make([]int64, nd+2),
		block:    make([]int64, nd),
		paddings: make([]int64, 2*nd),
	}

	c.space[0] = int64(1 + r.IntN(3))
	c.space[nd+1] = int64(1 + r.IntN(3))

	for i := range nd {
		c.space[i+1] = int64(1 + r.IntN(5))
		c.block[i] = int64(1 + r.IntN(3))

		if withPadding {
			c.paddings[2*i] = int64(r.IntN(3))
			c.paddings[2*i+1] = int64(r.IntN(3))
		}
	}

	return c
}
