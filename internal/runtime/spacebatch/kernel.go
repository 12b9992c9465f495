package spacebatch

// Transform moves elements between a space tensor and a batch tensor.
//
// For SpaceToBatch, src is the space tensor and dst the batch tensor; every
// dst element is written, padding positions with the zero value of T. For
// BatchToSpace, src is the batch tensor and dst the space tensor; only
// positions that survive the crops are written and every other dst element
// keeps its value.
//
// paddings holds start/end pairs for each of the len(blockShape) block
// dims (crops for BatchToSpace). Validation errors are returned before any
// buffer is read or written.
func Transform[T any](dir Direction, src View[T], blockShape, paddings []int64, dst View[T], opts ...Option) error {
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

	// Nothing to launch.
	if batch.Len() == 0 || dst.Len() == 0 {
		return nil
	}

	p, err := NewParams(space.shape, batch.shape, blockShape, paddings)
	if err != nil {
		return err
	}

	if err := checkPair(space.shape, batch.shape, blockShape, paddings); err != nil {
		return err
	}

	o := resolveOptions(opts)
	cfg := NewLaunchConfig(p.BatchElements(), o.workers, o.minChunk)

	spaceData, batchData := space.data, batch.data

	run(cfg, func(lo, hi int32) {
		if dir == SpaceToBatch {
			spaceToBatchRange(&p, spaceData, batchData, lo, hi)
		} else {
			batchToSpaceRange(&p, spaceData, batchData, lo, hi)
		}
	})

	return nil
}

func spaceToBatchRange[T any](p *Params, space, batch []T, lo, hi int32) {
	var zero T

	for idx := lo; idx < hi; idx++ {
		spaceIdx, ok := p.spaceIndex(idx)
		if !ok {
			batch[idx] = zero
			continue
		}

		batch[idx] = space[spaceIdx]
	}
}

func batchToSpaceRange[T any](p *Params, space, batch []T, lo, hi int32) {
	for idx := lo; idx < hi; idx++ {
		spaceIdx, ok := p.spaceIndex(idx)
		if !ok {
			continue
		}

		space[spaceIdx] = batch[idx]
	}
}

// spaceIndex maps a flat batch-tensor index to the flat space-tensor index
// it corresponds to. ok is false when the position lies in padding.
func (p *Params) spaceIndex(batchIdx int32) (int32, bool) {
	nd := p.NumBlockDims

	var pos [MaxBlockDims + 2]int32

	rem := batchIdx
	for dim := nd + 1; dim >= 1; dim-- {
		pos[dim] = rem % p.BatchShape[dim]
		rem /= p.BatchShape[dim]
	}

	pos[0] = rem

	blockIdx := pos[0] / p.SpaceBatch
	batchPos := pos[0] % p.SpaceBatch

	spaceIdx := pos[nd+1]
	stride := p.BatchShape[nd+1]

	// Block offsets are a mixed-radix number over BlockShape with the last
	// block dim least significant.
	for d := nd - 1; d >= 0; d-- {
		offset := blockIdx
		if d > 0 {
			offset %= p.BlockShape[d]
		}

		sp := pos[d+1]*p.BlockShape[d] + offset - p.PadStart[d]
		if sp < 0 || sp >= p.SpaceSpatialShape[d] {
			return 0, false
		}

		spaceIdx += stride * sp
		stride *= p.SpaceSpatialShape[d]
		blockIdx /= p.BlockShape[d]
	}

	return spaceIdx + stride*batchPos, true
}
