package safetensors

import (
	"fmt"
	"math"
	"strings"
)

// DType is a safetensors element type tag.
type DType string

const (
	F64  DType = "F64"
	F32  DType = "F32"
	F16  DType = "F16"
	BF16 DType = "BF16"
	I64  DType = "I64"
	I32  DType = "I32"
	U16  DType = "U16"
	U8   DType = "U8"
)

// ParseDType normalizes a dtype tag and rejects the ones this package cannot
// carry.
func ParseDType(s string) (DType, error) {
	d := DType(strings.ToUpper(strings.TrimSpace(s)))
	if d.Size() == 0 {
		return "", fmt.Errorf("safetensors: unsupported dtype %q", s)
	}

	return d, nil
}

// Size returns the width of one element in bytes, or 0 for unknown tags.
func (d DType) Size() int {
	switch d {
	case F64, I64:
		return 8
	case F32, I32:
		return 4
	case F16, BF16, U16:
		return 2
	case U8:
		return 1
	default:
		return 0
	}
}

// dtypeOf maps a Go element type to its tag. Half-precision tags have no Go
// type; their bits travel as uint16 and are tagged by the caller.
func dtypeOf[T any]() (DType, bool) {
	var zero T

	switch any(zero).(type) {
	case float64:
		return F64, true
	case float32:
		return F32, true
	case int64:
		return I64, true
	case int32:
		return I32, true
	case uint16:
		return U16, true
	case uint8:
		return U8, true
	default:
		return "", false
	}
}

func float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h & 0x03ff)

	var bits uint32

	switch exp {
	case 0:
		if frac == 0 {
			bits = sign << 31
		} else {
			e := int32(-14)

			for (frac & 0x0400) == 0 {
				frac <<= 1
				e--
			}

			frac &= 0x03ff
			bits = (sign << 31) | (uint32(e+127) << 23) | (frac << 13)
		}
	case 0x1f:
		bits = (sign << 31) | 0x7f800000 | (frac << 13)
	default:
		bits = (sign << 31) | ((exp + 127 - 15) << 23) | (frac << 13)
	}

	return math.Float32frombits(bits)
}

func bfloat16ToFloat32(h uint16) float32 {
	return math.Float32frombits(uint32(h) << 16)
}
