package spacebatch

import "math"

// MaxBlockDims is the largest supported number of block dimensions.
const MaxBlockDims = 4

// Params holds every scalar the kernel needs. It is built once per call by
// NewParams and shared read-only by all workers. Pad-end values are not
// stored: a reconstructed coordinate at or past SpaceSpatialShape is padding
// whichever side it falls on.
type Params struct {
	NumBlockDims      int
	SpaceBatch        int32
	BlockShape        [MaxBlockDims]int32
	PadStart          [MaxBlockDims]int32
	SpaceSpatialShape [MaxBlockDims]int32
	BatchShape        [MaxBlockDims + 2]int32
}

// NewParams builds the descriptor from the two tensor shapes, the block
// shape (length D) and the start/end paddings (length 2D). For BatchToSpace
// the paddings are the crops.
//
// Per block dim it checks block_shape, the space spatial extent and the
// start padding against the int32 range, then the batch element count.
// The first violation is returned as a *RangeError.
func NewParams(spaceShape, batchShape, blockShape, paddings []int64) (Params, error) {
	nd, err := checkRanks(spaceShape, blockShape, paddings, "space")
	if err != nil {
		return Params{}, err
	}

	if len(batchShape) != nd+2 {
		return Params{}, shapeErr("batch tensor rank %d, want %d for %d block dims", len(batchShape), nd+2, nd)
	}

	p := Params{NumBlockDims: nd}

	for i := range nd {
		if blockShape[i] > math.MaxInt32 {
			return Params{}, rangeErr(quantityBlockShape, i, blockShape[i])
		}

		p.BlockShape[i] = int32(blockShape[i])

		if spaceShape[i+1] > math.MaxInt32 {
			return Params{}, rangeErr(quantitySpaceDim, i, spaceShape[i+1])
		}

		p.SpaceSpatialShape[i] = int32(spaceShape[i+1])

		if paddings[2*i] > math.MaxInt32 {
			return Params{}, rangeErr(quantityPadding, i, paddings[2*i])
		}

		p.PadStart[i] = int32(paddings[2*i])
	}

	total, err := elemCount(batchShape)
	if err != nil {
		return Params{}, err
	}

	if total > math.MaxInt32 {
		return Params{}, rangeErr(quantityElementCount, -1, total)
	}

	for i, d := range batchShape {
		p.BatchShape[i] = int32(d)
	}

	// The kernel accumulates space offsets in int32 as well.
	spaceTotal, err := elemCount(spaceShape)
	if err != nil {
		return Params{}, err
	}

	if spaceTotal > math.MaxInt32 {
		return Params{}, rangeErr(quantityElementCount, -1, spaceTotal)
	}

	p.SpaceBatch = int32(spaceShape[0])

	return p, nil
}

// BatchElements returns the number of batch-tensor elements, which is the
// number of kernel iterations.
func (p Params) BatchElements() int32 {
	n := int32(1)
	for i := 0; i < p.NumBlockDims+2; i++ {
		n *= p.BatchShape[i]
	}

	return n
}
