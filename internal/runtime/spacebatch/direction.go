package spacebatch

import (
	"fmt"
	"strings"
)

// Direction selects which tensor is read and which is written.
type Direction uint8

const (
	// SpaceToBatch gathers the space tensor into the batch tensor and
	// zero-fills padding positions.
	SpaceToBatch Direction = iota
	// BatchToSpace scatters valid batch positions back into the space
	// tensor. Cropped positions are skipped.
	BatchToSpace
)

func (d Direction) String() string {
	switch d {
	case SpaceToBatch:
		return "space-to-batch"
	case BatchToSpace:
		return "batch-to-space"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// ParseDirection accepts "space-to-batch"/"s2b" and "batch-to-space"/"b2s".
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "space-to-batch", "s2b", "spacetobatch":
		return SpaceToBatch, nil
	case "batch-to-space", "b2s", "batchtospace":
		return BatchToSpace, nil
	default:
		return 0, fmt.Errorf("spacebatch: invalid direction %q (expected space-to-batch|batch-to-space)", raw)
	}
}
