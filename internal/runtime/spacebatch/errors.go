package spacebatch

import (
	"errors"
	"fmt"
)

var (
	// ErrRangeViolation reports a scalar or element count outside the signed
	// 32-bit range the kernel computes indices in.
	ErrRangeViolation = errors.New("spacebatch: value exceeds 32-bit range")

	// ErrInvalidShape reports inconsistent shapes, block sizes or paddings.
	ErrInvalidShape = errors.New("spacebatch: invalid shape")
)

// RangeError describes which quantity overflowed the 32-bit range.
// It matches ErrRangeViolation with errors.Is.
type RangeError struct {
	Quantity string // e.g. "block_shape value"
	Dim      int    // block dimension, or -1 for element counts
	Value    int64
}

func (e *RangeError) Error() string {
	if e.Dim < 0 {
		return fmt.Sprintf("spacebatch: %s exceeds 32-bit range (%d)", e.Quantity, e.Value)
	}

	return fmt.Sprintf("spacebatch: %s exceeds 32-bit range (dim %d: %d)", e.Quantity, e.Dim, e.Value)
}

func (e *RangeError) Unwrap() error { return ErrRangeViolation }

const (
	quantityBlockShape   = "block_shape value"
	quantitySpaceDim     = "space tensor dimension"
	quantityPadding      = "padding value"
	quantityElementCount = "element count"
)

func rangeErr(quantity string, dim int, value int64) error {
	return &RangeError{Quantity: quantity, Dim: dim, Value: value}
}

func shapeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidShape, fmt.Sprintf(format, args...))
}
