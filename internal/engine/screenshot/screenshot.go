// Package screenshot saves what the viewer has drawn.
package screenshot

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/benbjohnson/clock"
)

// FromPixels builds an image from bottom-up RGBA rows as read back from
// the framebuffer, flipping it so row 0 is the top.
func FromPixels(pixels []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("screenshot: invalid size %dx%d", width, height)
	}
	if len(pixels) != width*height*4 {
		return nil, fmt.Errorf("pixel data size mismatch: expected %d, got %d", width*height*4, len(pixels))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rowSize := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * rowSize
		dst := y * img.Stride
		copy(img.Pix[dst:dst+rowSize], pixels[src:src+rowSize])
	}
	return img, nil
}

// Writer stores screenshots as timestamped PNG files.
type Writer struct {
	Dir    string
	Prefix string
	Clock  clock.Clock
}

// Filename returns the path the next screenshot will be written to.
func (w Writer) Filename() string {
	clk := w.Clock
	if clk == nil {
		clk = clock.New()
	}
	name := fmt.Sprintf("%s_%s.png", w.Prefix, clk.Now().Format("2006-01-02_15-04-05.000"))
	if w.Dir != "" {
		name = filepath.Join(w.Dir, name)
	}
	return name
}

// Save encodes img to a new file and returns its path.
func (w Writer) Save(img image.Image) (string, error) {
	if w.Dir != "" {
		if err := os.MkdirAll(w.Dir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}

	filename := w.Filename()
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	return filename, file.Close()
}
