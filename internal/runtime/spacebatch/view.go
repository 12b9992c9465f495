package spacebatch

import "math"

// View is a dense row-major view over a caller-owned buffer. The view
// borrows data; it never copies or reallocates it.
type View[T any] struct {
	data    []T
	shape   []int64
	strides []int64
}

// NewView wraps data with the given shape. len(data) must equal the
// product of shape. A shape with a zero dimension accepts a nil buffer.
func NewView[T any](data []T, shape []int64) (View[T], error) {
	n, err := elemCount(shape)
	if err != nil {
		return View[T]{}, err
	}

	if int64(len(data)) != n {
		return View[T]{}, shapeErr("buffer length %d does not match shape %v (%d elements)", len(data), shape, n)
	}

	s := append([]int64(nil), shape...)

	return View[T]{data: data, shape: s, strides: computeStrides(s)}, nil
}

// Shape returns a copy of the view's shape.
func (v View[T]) Shape() []int64 {
	return append([]int64(nil), v.shape...)
}

// Data returns the borrowed buffer.
func (v View[T]) Data() []T { return v.data }

func (v View[T]) Rank() int { return len(v.shape) }

func (v View[T]) Len() int { return len(v.data) }

// Offset converts coordinates to a flat index. It panics when a coordinate
// is outside its dimension.
func (v View[T]) Offset(coord []int64) int64 {
	if len(coord) != len(v.shape) {
		panic("spacebatch: coordinate rank mismatch")
	}

	var off int64
	for i, c := range coord {
		if c < 0 || c >= v.shape[i] {
			panic("spacebatch: coordinate out of range")
		}

		off += c * v.strides[i]
	}

	return off
}

// At returns the element at coord.
func (v View[T]) At(coord ...int64) T {
	return v.data[v.Offset(coord)]
}

// Set stores val at coord.
func (v View[T]) Set(val T, coord ...int64) {
	v.data[v.Offset(coord)] = val
}

// coord decomposes a flat index into out, last dimension fastest.
func (v View[T]) coord(linear int64, out []int64) {
	for i := len(v.shape) - 1; i >= 0; i-- {
		d := v.shape[i]
		if d == 0 {
			out[i] = 0
			continue
		}

		out[i] = linear % d
		linear /= d
	}
}

func computeStrides(shape []int64) []int64 {
	if len(shape) == 0 {
		return nil
	}

	strides := make([]int64, len(shape))

	stride := int64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}

	return strides
}

// elemCount multiplies shape with an overflow guard on int64.
func elemCount(shape []int64) (int64, error) {
	total := int64(1)

	for i, d := range shape {
		if d < 0 {
			return 0, shapeErr("shape %v has negative dimension at %d", shape, i)
		}

		if d != 0 && total > math.MaxInt64/d {
			return 0, shapeErr("shape %v overflows int64", shape)
		}

		total *= d
	}

	return total, nil
}
