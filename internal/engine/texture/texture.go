// Package texture prepares color images for GPU upload.
package texture

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// DefaultMaxSize is the largest texture edge assumed when the backend does
// not report one.
const DefaultMaxSize = 4096

// ToRGBA converts img to an *image.RGBA anchored at the origin.
// An RGBA image already at the origin is returned as is.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// Fit converts img to RGBA, scaling it down with bilinear filtering so that
// neither edge exceeds maxSize. Aspect ratio is preserved. maxSize <= 0
// means DefaultMaxSize.
func Fit(img image.Image, maxSize int) *image.RGBA {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	w, h := FitSize(img.Bounds().Dx(), img.Bounds().Dy(), maxSize)
	if w == img.Bounds().Dx() && h == img.Bounds().Dy() {
		return ToRGBA(img)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// FitSize returns w x h scaled down to fit within maxSize on both edges.
// Neither result is smaller than 1.
func FitSize(w, h, maxSize int) (int, int) {
	if w <= maxSize && h <= maxSize {
		return w, h
	}
	if w >= h {
		nh := h * maxSize / w
		if nh < 1 {
			nh = 1
		}
		return maxSize, nh
	}
	nw := w * maxSize / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxSize
}

// Solid returns a w x h image filled with c. The viewer shows it when a
// frame carries depth but no color.
func Solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}
