package spacebatch

// BatchShape returns the batch-tensor shape produced by SpaceToBatch for a
// space tensor of spaceShape. paddings holds start/end pairs per block dim.
func BatchShape(spaceShape, blockShape, paddings []int64) ([]int64, error) {
	nd, err := checkRanks(spaceShape, blockShape, paddings, "space")
	if err != nil {
		return nil, err
	}

	if err := checkBlockAndPads(blockShape, paddings); err != nil {
		return nil, err
	}

	for i, d := range spaceShape {
		if d < 0 {
			return nil, shapeErr("space shape %v has negative dimension at %d", spaceShape, i)
		}
	}

	out := make([]int64, nd+2)
	out[0] = spaceShape[0]
	out[nd+1] = spaceShape[nd+1]

	for i := range nd {
		padded := spaceShape[i+1] + paddings[2*i] + paddings[2*i+1]
		out[i+1] = ceilDiv(padded, blockShape[i])
		out[0] *= blockShape[i]
	}

	return out, nil
}

// SpaceShape returns the space-tensor shape produced by BatchToSpace for a
// batch tensor of batchShape. crops holds start/end pairs per block dim.
func SpaceShape(batchShape, blockShape, crops []int64) ([]int64, error) {
	nd, err := checkRanks(batchShape, blockShape, crops, "batch")
	if err != nil {
		return nil, err
	}

	if err := checkBlockAndPads(blockShape, crops); err != nil {
		return nil, err
	}

	for i, d := range batchShape {
		if d < 0 {
			return nil, shapeErr("batch shape %v has negative dimension at %d", batchShape, i)
		}
	}

	blocks := int64(1)
	for _, b := range blockShape {
		blocks *= b
	}

	if batchShape[0]%blocks != 0 {
		return nil, shapeErr("batch dimension %d is not divisible by block count %d", batchShape[0], blocks)
	}

	out := make([]int64, nd+2)
	out[0] = batchShape[0] / blocks
	out[nd+1] = batchShape[nd+1]

	for i := range nd {
		cropped := batchShape[i+1]*blockShape[i] - crops[2*i] - crops[2*i+1]
		if cropped < 0 {
			return nil, shapeErr("crops %d+%d exceed extent %d of block dim %d",
				crops[2*i], crops[2*i+1], batchShape[i+1]*blockShape[i], i)
		}

		out[i+1] = cropped
	}

	return out, nil
}

// InverseCrops returns the crops that make SpaceShape undo BatchShape for
// spaceShape. They equal paddings except that each end crop also removes
// the trailing positions the ceil rule added to a dim whose padded extent
// is not a multiple of its block.
func InverseCrops(spaceShape, blockShape, paddings []int64) ([]int64, error) {
	batchShape, err := BatchShape(spaceShape, blockShape, paddings)
	if err != nil {
		return nil, err
	}

	crops := append([]int64(nil), paddings...)
	for i, b := range blockShape {
		padded := spaceShape[i+1] + paddings[2*i] + paddings[2*i+1]
		crops[2*i+1] += batchShape[i+1]*b - padded
	}

	return crops, nil
}

// checkRanks validates the block-dimension count against the tensor rank
// and the padding vector length, returning D.
func checkRanks(shape, blockShape, paddings []int64, role string) (int, error) {
	nd := len(blockShape)
	if nd < 1 || nd > MaxBlockDims {
		return 0, shapeErr("block dimension count %d not in [1, %d]", nd, MaxBlockDims)
	}

	if len(shape) != nd+2 {
		return 0, shapeErr("%s tensor rank %d, want %d for %d block dims", role, len(shape), nd+2, nd)
	}

	if len(paddings) != 2*nd {
		return 0, shapeErr("paddings length %d, want %d", len(paddings), 2*nd)
	}

	return nd, nil
}

func checkBlockAndPads(blockShape, paddings []int64) error {
	for i, b := range blockShape {
		if b < 1 {
			return shapeErr("block_shape[%d] = %d must be positive", i, b)
		}
	}

	for i, p := range paddings {
		if p < 0 {
			return shapeErr("paddings[%d] = %d must be non-negative", i, p)
		}
	}

	return nil
}

// checkPair verifies that spaceShape and batchShape describe the two sides
// of the same transform.
func checkPair(spaceShape, batchShape, blockShape, paddings []int64) error {
	if err := checkBlockAndPads(blockShape, paddings); err != nil {
		return err
	}

	want, err := BatchShape(spaceShape, blockShape, paddings)
	if err != nil {
		return err
	}

	for i := range want {
		if batchShape[i] != want[i] {
			return shapeErr("batch shape %v does not match space shape %v with block_shape %v and paddings %v (want %v)",
				batchShape, spaceShape, blockShape, paddings, want)
		}
	}

	return nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
