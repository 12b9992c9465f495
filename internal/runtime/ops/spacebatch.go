package ops

import (
	"errors"
	"fmt"
	"math"

	"github.com/example/go-spacebatch/internal/runtime/spacebatch"
	"github.com/example/go-spacebatch/internal/runtime/tensor"
)

// Element lists every element type the space/batch transforms are
// instantiated for.
type Element interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint8 | ~uint16
}

// SpaceToBatchND folds spatial blocks of a [batch, spatial..., depth]
// buffer into the batch dimension. paddings holds start/end pairs per block
// dim. It returns the new buffer and its shape.
func SpaceToBatchND[T Element](data []T, shape, blockShape, paddings []int64) ([]T, []int64, error) {
	outShape, err := spacebatch.BatchShape(shape, blockShape, paddings)
	if err != nil {
		return nil, nil, err
	}

	n, err := checkedCount(outShape)
	if err != nil {
		return nil, nil, err
	}

	out := make([]T, n)
	if err := transformInto(spacebatch.SpaceToBatch, data, shape, blockShape, paddings, out, outShape); err != nil {
		return nil, nil, err
	}

	return out, outShape, nil
}

// BatchToSpaceND is the inverse of SpaceToBatchND; crops holds start/end
// pairs removed from each reassembled spatial dim.
func BatchToSpaceND[T Element](data []T, shape, blockShape, crops []int64) ([]T, []int64, error) {
	outShape, err := spacebatch.SpaceShape(shape, blockShape, crops)
	if err != nil {
		return nil, nil, err
	}

	n, err := checkedCount(outShape)
	if err != nil {
		return nil, nil, err
	}

	out := make([]T, n)
	if err := transformInto(spacebatch.BatchToSpace, data, shape, blockShape, crops, out, outShape); err != nil {
		return nil, nil, err
	}

	return out, outShape, nil
}

func transformInto[T Element](dir spacebatch.Direction, data []T, shape, blockShape, paddings []int64, out []T, outShape []int64) error {
	src, err := spacebatch.NewView(data, shape)
	if err != nil {
		return err
	}

	dst, err := spacebatch.NewView(out, outShape)
	if err != nil {
		return err
	}

	return spacebatch.Transform(dir, src, blockShape, paddings, dst, launchOptions()...)
}

// checkedCount rejects outputs the kernel could not index before anything
// is allocated.
func checkedCount(shape []int64) (int, error) {
	n := int64(1)
	for _, d := range shape {
		if d != 0 && n > math.MaxInt32/d {
			return 0, &spacebatch.RangeError{Quantity: "element count", Dim: -1, Value: n * d}
		}

		n *= d
	}

	return int(n), nil
}

// SpaceToBatch applies SpaceToBatchND to a float32 tensor.
func SpaceToBatch(x *tensor.Tensor, blockShape, paddings []int64) (*tensor.Tensor, error) {
	if x == nil {
		return nil, errors.New("ops: space-to-batch on nil tensor")
	}

	outShape, err := spacebatch.BatchShape(x.Shape(), blockShape, paddings)
	if err != nil {
		return nil, fmt.Errorf("ops: space-to-batch: %w", err)
	}

	return transformTensor(spacebatch.SpaceToBatch, x, blockShape, paddings, outShape)
}

// BatchToSpace applies BatchToSpaceND to a float32 tensor.
func BatchToSpace(x *tensor.Tensor, blockShape, crops []int64) (*tensor.Tensor, error) {
	if x == nil {
		return nil, errors.New("ops: batch-to-space on nil tensor")
	}

	outShape, err := spacebatch.SpaceShape(x.Shape(), blockShape, crops)
	if err != nil {
		return nil, fmt.Errorf("ops: batch-to-space: %w", err)
	}

	return transformTensor(spacebatch.BatchToSpace, x, blockShape, crops, outShape)
}

func transformTensor(dir spacebatch.Direction, x *tensor.Tensor, blockShape, paddings, outShape []int64) (*tensor.Tensor, error) {
	if _, err := checkedCount(outShape); err != nil {
		return nil, fmt.Errorf("ops: %s: %w", dir, err)
	}

	out, err := tensor.Zeros(outShape)
	if err != nil {
		return nil, err
	}

	if err := transformInto(dir, x.RawData(), x.Shape(), blockShape, paddings, out.RawData(), outShape); err != nil {
		return nil, fmt.Errorf("ops: %s: %w", dir, err)
	}

	return out, nil
}
