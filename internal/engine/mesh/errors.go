package mesh

import (
	"errors"
	"fmt"
)

// MinGridSize is the smallest grid edge that can be triangulated.
const MinGridSize = 2

var (
	// ErrNilDisparityMap is returned by Build when no map is given.
	ErrNilDisparityMap = errors.New("mesh: nil disparity map")
	// ErrInvalidMaxDepth is returned for a non-positive or non-finite far plane.
	ErrInvalidMaxDepth = errors.New("mesh: max depth must be positive and finite")
)

// DegenerateGridError is returned when the sampling grid is too small for
// triangle-strip generation.
type DegenerateGridError struct {
	Width  int
	Height int
}

func (e *DegenerateGridError) Error() string {
	return fmt.Sprintf("mesh: grid %dx%d is degenerate, need at least %dx%d",
		e.Width, e.Height, MinGridSize, MinGridSize)
}

func checkGrid(w, h int) error {
	if w < MinGridSize || h < MinGridSize {
		return &DegenerateGridError{Width: w, Height: h}
	}
	return nil
}
