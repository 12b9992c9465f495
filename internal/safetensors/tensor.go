package safetensors

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tensor is one named tensor. Raw holds the little-endian element bytes
// exactly as stored, so data movement between files never converts values.
type Tensor struct {
	Name  string
	DType DType
	Shape []int64
	Raw   []byte
}

// NewTensor encodes values of a supported Go element type.
func NewTensor[T any](name string, shape []int64, values []T) (Tensor, error) {
	dtype, ok := dtypeOf[T]()
	if !ok {
		return Tensor{}, fmt.Errorf("safetensors: tensor %q: unsupported element type %T", name, *new(T))
	}

	return newTensorAs(name, dtype, shape, values)
}

// WithValues returns a tensor that keeps t's dtype tag but carries values
// and shape. It is used to write a transformed buffer back in the source
// encoding, including F16/BF16 bits carried as uint16.
func WithValues[T any](t *Tensor, shape []int64, values []T) (Tensor, error) {
	dtype, ok := dtypeOf[T]()
	if !ok || (dtype != t.DType && !(dtype == U16 && t.DType.Size() == 2)) {
		return Tensor{}, fmt.Errorf("safetensors: tensor %q: %T values cannot carry dtype %s", t.Name, *new(T), t.DType)
	}

	return newTensorAs(t.Name, t.DType, shape, values)
}

func newTensorAs[T any](name string, dtype DType, shape []int64, values []T) (Tensor, error) {
	n, err := shapeElementCount(shape)
	if err != nil {
		return Tensor{}, fmt.Errorf("safetensors: tensor %q: %w", name, err)
	}

	if int64(len(values)) != n {
		return Tensor{}, fmt.Errorf("safetensors: tensor %q shape %v expects %d elements, got %d", name, shape, n, len(values))
	}

	raw, err := binary.Append(make([]byte, 0, len(values)*dtype.Size()), binary.LittleEndian, values)
	if err != nil {
		return Tensor{}, fmt.Errorf("safetensors: tensor %q: %w", name, err)
	}

	return Tensor{
		Name:  name,
		DType: dtype,
		Shape: append([]int64(nil), shape...),
		Raw:   raw,
	}, nil
}

// ElemCount returns the number of elements described by Shape.
func (t *Tensor) ElemCount() int64 {
	n, err := shapeElementCount(t.Shape)
	if err != nil {
		return 0
	}

	return n
}

// Values decodes the tensor into a slice of T. T must match the dtype
// exactly, except that F16 and BF16 may be read as their uint16 bits.
func Values[T any](t *Tensor) ([]T, error) {
	dtype, ok := dtypeOf[T]()
	if !ok || (dtype != t.DType && !(dtype == U16 && t.DType.Size() == 2)) {
		return nil, fmt.Errorf("safetensors: tensor %q is %s, cannot read as %T", t.Name, t.DType, *new(T))
	}

	out := make([]T, t.ElemCount())
	if _, err := binary.Decode(t.Raw, binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("safetensors: tensor %q decode: %w", t.Name, err)
	}

	return out, nil
}

// Float32 decodes floating-point tensors to float32, widening half
// precision and narrowing F64.
func (t *Tensor) Float32() ([]float32, error) {
	switch t.DType {
	case F32:
		return Values[float32](t)
	case F64:
		wide, err := Values[float64](t)
		if err != nil {
			return nil, err
		}

		out := make([]float32, len(wide))
		for i, v := range wide {
			out[i] = float32(v)
		}

		return out, nil
	case F16, BF16:
		bits, err := Values[uint16](t)
		if err != nil {
			return nil, err
		}

		widen := float16ToFloat32
		if t.DType == BF16 {
			widen = bfloat16ToFloat32
		}

		out := make([]float32, len(bits))
		for i, h := range bits {
			out[i] = widen(h)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("safetensors: tensor %q is %s, not floating point", t.Name, t.DType)
	}
}

func shapeElementCount(shape []int64) (int64, error) {
	total := int64(1)

	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("negative dimension %d", d)
		}

		if d == 0 {
			return 0, nil
		}

		if total > math.MaxInt64/d {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}

		total *= d
	}

	return total, nil
}
