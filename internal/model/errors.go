package model

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch means a vector's length disagrees with what an
// artifact was fitted on: the vocabulary and the artifacts are out of sync.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// DimensionError reports which artifact rejected a vector.
type DimensionError struct {
	Artifact string
	Want     int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: %s: expected %d features, got %d", e.Artifact, ErrDimensionMismatch, e.Want, e.Got)
}

func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
