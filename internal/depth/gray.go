package depth

import (
	"image"
	"image/color"
)

// Gray renders the map as an 8-bit grayscale image. Valid samples are
// normalised over the map's own range so the nearest surface (largest
// disparity) is white. Invalid samples are black.
func (m *DisparityMap) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.width, m.height))
	lo, hi, ok := m.MinMax()
	if !ok {
		return img
	}
	span := hi - lo
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			d := m.Disparity(x, y)
			if !Valid(d) {
				continue
			}
			v := uint8(255)
			if span > 0 {
				v = uint8((d - lo) / span * 255)
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}
