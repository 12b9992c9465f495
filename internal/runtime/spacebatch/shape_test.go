package spacebatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchShape(t *testing.T) {
	tests := []struct {
		name     string
		space    []int64
		block    []int64
		paddings []int64
		want     []int64
	}{
		{name: "1d exact", space: []int64{1, 4, 1}, block: []int64{2}, paddings: []int64{0, 0}, want: []int64{2, 2, 1}},
		{name: "1d pad start", space: []int64{1, 3, 1}, block: []int64{2}, paddings: []int64{1, 0}, want: []int64{2, 2, 1}},
		{name: "1d ceil", space: []int64{1, 5, 2}, block: []int64{2}, paddings: []int64{0, 0}, want: []int64{2, 3, 2}},
		{name: "2d", space: []int64{3, 5, 7, 2}, block: []int64{2, 3}, paddings: []int64{1, 0, 1, 1}, want: []int64{18, 3, 3, 2}},
		{name: "4d", space: []int64{1, 2, 3, 4, 5, 6}, block: []int64{1, 2, 3, 4}, paddings: make([]int64, 8), want: []int64{24, 2, 2, 2, 2, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BatchShape(tt.space, tt.block, tt.paddings)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpaceShape(t *testing.T) {
	got, err := SpaceShape([]int64{2, 2, 1}, []int64{2}, []int64{1, 0})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 1}, got)

	got, err = SpaceShape([]int64{18, 3, 3, 2}, []int64{2, 3}, []int64{1, 0, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5, 7, 2}, got)
}

func TestSpaceShape_Errors(t *testing.T) {
	_, err := SpaceShape([]int64{3, 2, 1}, []int64{2}, []int64{0, 0})
	require.ErrorIs(t, err, ErrInvalidShape, "batch not divisible by block count")

	_, err = SpaceShape([]int64{2, 2, 1}, []int64{2}, []int64{3, 2})
	require.ErrorIs(t, err, ErrInvalidShape, "crops larger than extent")

	_, err = SpaceShape([]int64{2, 2, 1}, []int64{0}, []int64{0, 0})
	require.ErrorIs(t, err, ErrInvalidShape, "zero block")
}

func TestBatchShape_Errors(t *testing.T) {
	_, err := BatchShape([]int64{1, 4, 1}, []int64{2, 2}, []int64{0, 0, 0, 0})
	require.ErrorIs(t, err, ErrInvalidShape)

	_, err = BatchShape([]int64{1, -4, 1}, []int64{2}, []int64{0, 0})
	require.ErrorIs(t, err, ErrInvalidShape)

	_, err = BatchShape([]int64{1, 4, 1}, []int64{2}, []int64{0, -1})
	require.ErrorIs(t, err, ErrInvalidShape)
}

func TestShapeRoundTrip(t *testing.T) {
	space := []int64{2, 6, 9, 3}
	block := []int64{3, 3}
	paddings := []int64{0, 0, 2, 1}

	batch, err := BatchShape(space, block, paddings)
	require.NoError(t, err)

	back, err := SpaceShape(batch, block, paddings)
	require.NoError(t, err)
	assert.Equal(t, space, back)
}

func TestInverseCrops(t *testing.T) {
	space := []int64{1, 5, 3, 1}
	block := []int64{2, 2}
	paddings := []int64{0, 0, 1, 1}

	crops, err := InverseCrops(space, block, paddings)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 1, 2}, crops)

	batch, err := BatchShape(space, block, paddings)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 3, 3, 1}, batch)

	back, err := SpaceShape(batch, block, crops)
	require.NoError(t, err)
	assert.Equal(t, space, back)

	// Divisible extents need no extra crop.
	crops, err = InverseCrops([]int64{2, 6, 9, 3}, []int64{3, 3}, []int64{0, 0, 2, 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 2, 1}, crops)
}
