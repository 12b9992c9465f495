package ops

import (
	"errors"
	"fmt"

	"github.com/example/go-spacebatch/internal/runtime/tensor"
)

// RequiredSpaceToBatchPaddings returns the paddings and crops that make a
// SpaceToBatch / BatchToSpace pair valid for the given spatial extents.
// basePaddings holds the start/end pairs the wrapped operator needs; each
// end padding grows by the amount required to make the padded extent a
// multiple of the block size, and that growth is cropped off again.
func RequiredSpaceToBatchPaddings(spatialShape, blockShape, basePaddings []int64) (paddings, crops []int64, err error) {
	nd := len(blockShape)
	if len(spatialShape) != nd {
		return nil, nil, fmt.Errorf("ops: spatial rank %d does not match %d block dims", len(spatialShape), nd)
	}

	if basePaddings == nil {
		basePaddings = make([]int64, 2*nd)
	}

	if len(basePaddings) != 2*nd {
		return nil, nil, fmt.Errorf("ops: base paddings length %d, want %d", len(basePaddings), 2*nd)
	}

	paddings = make([]int64, 2*nd)
	crops = make([]int64, 2*nd)

	for i := range nd {
		block := blockShape[i]
		if block < 1 {
			return nil, nil, fmt.Errorf("ops: block_shape[%d] = %d must be positive", i, block)
		}

		start, end := basePaddings[2*i], basePaddings[2*i+1]
		if start < 0 || end < 0 || spatialShape[i] < 0 {
			return nil, nil, fmt.Errorf("ops: negative extent or padding in dim %d", i)
		}

		full := spatialShape[i] + start + end
		extra := (block - full%block) % block

		paddings[2*i] = start
		paddings[2*i+1] = end + extra
		crops[2*i+1] = extra
	}

	return paddings, crops, nil
}

// WithSpaceToBatch runs op on the SpaceToBatch form of x and returns the
// BatchToSpace form of its result. x is [batch, spatial..., depth]; op must
// keep the batch dimension and rank. With dilation d, a dense op over the
// batch tensor equals the d-dilated op over x padded by basePaddings.
func WithSpaceToBatch(x *tensor.Tensor, dilation, basePaddings []int64, op func(*tensor.Tensor) (*tensor.Tensor, error)) (*tensor.Tensor, error) {
	if x == nil {
		return nil, errors.New("ops: with-space-to-batch on nil tensor")
	}

	if op == nil {
		return nil, errors.New("ops: with-space-to-batch requires an op")
	}

	nd := len(dilation)
	shape := x.Shape()

	if len(shape) != nd+2 {
		return nil, fmt.Errorf("ops: input rank %d, want %d for %d spatial dims", len(shape), nd+2, nd)
	}

	paddings, crops, err := RequiredSpaceToBatchPaddings(shape[1:nd+1], dilation, basePaddings)
	if err != nil {
		return nil, err
	}

	batched, err := SpaceToBatch(x, dilation, paddings)
	if err != nil {
		return nil, err
	}

	y, err := op(batched)
	if err != nil {
		return nil, err
	}

	yShape := y.Shape()
	if len(yShape) != nd+2 || yShape[0] != batched.Shape()[0] {
		return nil, fmt.Errorf("ops: op changed batch layout from %v to %v", batched.Shape(), yShape)
	}

	return BatchToSpace(y, dilation, crops)
}

// AtrousConv1D computes a stride-1 dilated cross-correlation over a
// channels-last input by folding the dilation into the batch dimension.
// input: [batch, length, in_channels]
// kernel: [kernel_size, in_channels, out_channels]
// bias: [out_channels] or nil
func AtrousConv1D(input, kernel, bias *tensor.Tensor, rate, padding int64) (*tensor.Tensor, error) {
	if rate < 1 {
		return nil, fmt.Errorf("ops: atrous conv1d: rate %d must be positive", rate)
	}

	if padding < 0 {
		return nil, fmt.Errorf("ops: atrous conv1d: padding %d must be non-negative", padding)
	}

	return WithSpaceToBatch(input, []int64{rate}, []int64{padding, padding}, func(x *tensor.Tensor) (*tensor.Tensor, error) {
		return Conv1DNLC(x, kernel, bias, 1, 0)
	})
}

// Conv1DNLC performs a stride-1 cross-correlation on channels-last data
// with zero padding on both ends.
// input: [batch, length, in_channels]
// kernel: [kernel_size, in_channels, out_channels]
// bias: [out_channels] or nil
func Conv1DNLC(input, kernel, bias *tensor.Tensor, dilation, padding int64) (*tensor.Tensor, error) {
	p, err := prepareConv1DNLC(input, kernel, bias, dilation, padding)
	if err != nil {
		return nil, err
	}

	out, err := tensor.Zeros([]int64{p.batch, p.outLength, p.outChannels})
	if err != nil {
		return nil, err
	}

	var biasData []float32
	if bias != nil {
		biasData = bias.RawData()
	}

	conv1DNLCRows(input.RawData(), kernel.RawData(), biasData, out.RawData(), p, dilation, padding)

	return out, nil
}

type conv1DNLCParams struct {
	batch       int64
	length      int64
	inChannels  int64
	kernelSize  int64
	outChannels int64
	outLength   int64
}

func prepareConv1DNLC(input, kernel, bias *tensor.Tensor, dilation, padding int64) (conv1DNLCParams, error) {
	if input == nil || kernel == nil {
		return conv1DNLCParams{}, errors.New("ops: conv1d requires input and kernel")
	}

	if input.Rank() != 3 || kernel.Rank() != 3 {
		return conv1DNLCParams{}, fmt.Errorf("ops: conv1d expects rank-3 input and kernel, got %v and %v", input.Shape(), kernel.Shape())
	}

	if dilation < 1 || padding < 0 {
		return conv1DNLCParams{}, fmt.Errorf("ops: conv1d dilation %d / padding %d invalid", dilation, padding)
	}

	in := input.Shape()
	k := kernel.Shape()

	p := conv1DNLCParams{
		batch:       in[0],
		length:      in[1],
		inChannels:  in[2],
		kernelSize:  k[0],
		outChannels: k[2],
	}

	if k[1] != p.inChannels {
		return conv1DNLCParams{}, fmt.Errorf("ops: conv1d kernel in_channels %d does not match input channels %d", k[1], p.inChannels)
	}

	if bias != nil {
		if b := bias.Shape(); len(b) != 1 || b[0] != p.outChannels {
			return conv1DNLCParams{}, fmt.Errorf("ops: conv1d bias shape %v, want [%d]", b, p.outChannels)
		}
	}

	p.outLength = p.length + 2*padding - dilation*(p.kernelSize-1)
	if p.kernelSize < 1 || p.outLength < 1 {
		return conv1DNLCParams{}, fmt.Errorf("ops: conv1d output length %d for length %d, kernel %d, dilation %d, padding %d",
			p.outLength, p.length, p.kernelSize, dilation, padding)
	}

	return p, nil
}

// conv1DNLCRows computes one output row (all out channels) per (batch, t)
// pair; rows are independent so they are split across workers.
func conv1DNLCRows(x, w, bias, out []float32, p conv1DNLCParams, dilation, padding int64) {
	rows := int(p.batch * p.outLength)
	cin, cout := p.inChannels, p.outChannels

	parallelFor(rows, getWorkers(), func(lo, hi int) {
		for r := lo; r < hi; r++ {
			n := int64(r) / p.outLength
			t := int64(r) % p.outLength
			dst := out[int64(r)*cout : int64(r+1)*cout]

			if bias != nil {
				copy(dst, bias)
			}

			for k := range p.kernelSize {
				pos := t + k*dilation - padding
				if pos < 0 || pos >= p.length {
					continue
				}

				xRow := x[(n*p.length+pos)*cin : (n*p.length+pos+1)*cin]
				for ci, xv := range xRow {
					wOff := (k*cin + int64(ci)) * cout
					tensor.Axpy(dst, xv, w[wOff:wOff+cout])
				}
			}
		}
	})
}
