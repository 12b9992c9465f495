package spacebatch

// Reference is a sequential implementation of Transform used to cross-check
// the parallel kernel. It walks the space tensor forward instead of
// decomposing batch indices, computes in int64 and has no 32-bit limit.
func Reference[T any](dir Direction, src View[T], blockShape, paddings []int64, dst View[T]) error {
	space, batch := src, dst
	if dir == BatchToSpace {
		space, batch = dst, src
	} else if dir != SpaceToBatch {
		return shapeErr("unknown direction %v", dir)
	}

	nd, err := checkRanks(space.shape, blockShape, paddings, "space")
	if err != nil {
		return err
	}

	if batch.Rank() != nd+2 {
		return shapeErr("batch tensor rank %d, want %d for %d block dims", batch.Rank(), nd+2, nd)
	}

	if err := checkPair(space.shape, batch.shape, blockShape, paddings); err != nil {
		return err
	}

	if dir == SpaceToBatch {
		var zero T
		for i := range batch.data {
			batch.data[i] = zero
		}
	}

	spaceBatch := space.shape[0]
	sc := make([]int64, nd+2)
	bc := make([]int64, nd+2)

	for i := range space.data {
		space.coord(int64(i), sc)

		blockIdx := int64(0)
		for d := range nd {
			q := sc[d+1] + paddings[2*d]
			bc[d+1] = q / blockShape[d]
			blockIdx = blockIdx*blockShape[d] + q%blockShape[d]
		}

		bc[0] = blockIdx*spaceBatch + sc[0]
		bc[nd+1] = sc[nd+1]

		if dir == SpaceToBatch {
			batch.Set(space.data[i], bc...)
		} else {
			space.data[i] = batch.At(bc...)
		}
	}

	return nil
}
