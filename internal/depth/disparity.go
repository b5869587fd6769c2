// Package depth provides disparity maps and the frames depth sources produce.
package depth

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// bytesPerSample is the size of one DisparityFloat32 sample.
const bytesPerSample = 4

// ErrEmptyMap is returned when a disparity map has no samples.
var ErrEmptyMap = errors.New("depth: disparity map has no samples")

// DisparityMap wraps a decoded DisparityFloat32 buffer.
// Samples are little-endian float32 values laid out row by row, each row
// starting RowStride bytes after the previous one.
type DisparityMap struct {
	width     int
	height    int
	rowStride int
	buf       []byte
}

// NewDisparityMap wraps buf without copying it. The caller must not modify
// buf afterwards.
func NewDisparityMap(width, height, rowStrideBytes int, buf []byte) (*DisparityMap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyMap, width, height)
	}
	if rowStrideBytes < width*bytesPerSample {
		return nil, fmt.Errorf("depth: row stride %d shorter than row of %d samples", rowStrideBytes, width)
	}
	need := (height-1)*rowStrideBytes + width*bytesPerSample
	if len(buf) < need {
		return nil, fmt.Errorf("depth: buffer has %d bytes, need %d", len(buf), need)
	}
	return &DisparityMap{
		width:     width,
		height:    height,
		rowStride: rowStrideBytes,
		buf:       buf,
	}, nil
}

// FromSamples builds a tightly packed map from row-major samples.
func FromSamples(width, height int, samples []float32) (*DisparityMap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyMap, width, height)
	}
	if len(samples) != width*height {
		return nil, fmt.Errorf("depth: got %d samples for %dx%d map", len(samples), width, height)
	}
	buf := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*bytesPerSample:], math.Float32bits(s))
	}
	return NewDisparityMap(width, height, width*bytesPerSample, buf)
}

// Width returns the number of samples per row.
func (m *DisparityMap) Width() int { return m.width }

// Height returns the number of rows.
func (m *DisparityMap) Height() int { return m.height }

// RowStride returns the distance between rows in bytes.
func (m *DisparityMap) RowStride() int { return m.rowStride }

// Disparity returns the raw sample at (x, y). Coordinates outside the map
// are clamped to the nearest edge.
func (m *DisparityMap) Disparity(x, y int) float32 {
	x = clamp(x, 0, m.width-1)
	y = clamp(y, 0, m.height-1)
	off := y*m.rowStride + x*bytesPerSample
	return math.Float32frombits(binary.LittleEndian.Uint32(m.buf[off:]))
}

// Bytes returns the map repacked without row padding.
func (m *DisparityMap) Bytes() []byte {
	rowLen := m.width * bytesPerSample
	if m.rowStride == rowLen {
		out := make([]byte, m.height*rowLen)
		copy(out, m.buf)
		return out
	}
	out := make([]byte, 0, m.height*rowLen)
	for y := 0; y < m.height; y++ {
		off := y * m.rowStride
		out = append(out, m.buf[off:off+rowLen]...)
	}
	return out
}

// MinMax returns the range of valid samples. ok is false when the map holds
// no valid sample at all.
func (m *DisparityMap) MinMax() (lo, hi float32, ok bool) {
	lo = math.MaxFloat32
	hi = -math.MaxFloat32
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			d := m.Disparity(x, y)
			if !Valid(d) {
				continue
			}
			ok = true
			if d < lo {
				lo = d
			}
			if d > hi {
				hi = d
			}
		}
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

// Valid reports whether d is a usable disparity sample. Zero, negative,
// infinite and NaN samples carry no depth information.
func Valid(d float32) bool {
	return d > 0 && d <= math.MaxFloat32
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
