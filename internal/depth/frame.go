package depth

import (
	"image"
	"time"
)

// Frame is one synchronized color + disparity capture.
type Frame struct {
	Disparity   *DisparityMap
	Orientation Orientation
	FrontFacing bool
	Color       image.Image
	Captured    time.Time
}

// HasDepth reports whether the frame carries a disparity map.
func (f *Frame) HasDepth() bool {
	return f != nil && f.Disparity != nil
}
