// Package depthio reads and writes depth photos: a PNG color image carrying
// its disparity map in a private ancillary chunk.
//
// Chunk "dsPy" payload, little-endian:
//
//	offset  size  field
//	0       1     version (1)
//	1       1     orientation
//	2       1     flags (bit 0: front facing)
//	3       1     reserved
//	4       4     width
//	8       4     height
//	12      8     capture time, Unix nanoseconds (0 if unknown)
//	20      4*w*h disparity samples, float32, row-major
package depthio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	_ "image/jpeg" // Color-only fallback inputs
	"image/png"
	"io"
	"math"
	"os"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/Faultbox/xplo/internal/depth"
)

const (
	chunkType     = "dsPy"
	formatVersion = 1
	headerSize    = 20
	flagFront     = 1 << 0
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

var (
	// ErrMissingDepthData is returned with a color-only frame when an image
	// carries no disparity map. Callers show it as a flat photo.
	ErrMissingDepthData = errors.New("depthio: image has no depth data")
	// ErrCorruptDepthData reports a depth chunk that fails validation.
	ErrCorruptDepthData = errors.New("depthio: corrupt depth data")
)

// Decode reads a depth photo. Images in any registered format (PNG, JPEG,
// BMP, TIFF) without a depth chunk return their color image together with
// ErrMissingDepthData.
func Decode(data []byte) (*depth.Frame, error) {
	// The PNG decoder rejects any chunk with a bad CRC, so the depth chunk
	// is located and checked before the color image is decoded.
	var payload []byte
	if bytes.HasPrefix(data, pngSignature) {
		var err error
		if payload, err = findChunk(data, chunkType); err != nil {
			return nil, err
		}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	frame := &depth.Frame{Color: img}
	if payload == nil {
		return frame, ErrMissingDepthData
	}
	if err := decodePayload(payload, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// ReadFile decodes the depth photo at path.
func ReadFile(path string) (*depth.Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := Decode(data)
	if err != nil && !errors.Is(err, ErrMissingDepthData) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, err
}

// findChunk walks the PNG chunk list and returns the payload of the first
// chunk of type typ, or nil if there is none.
func findChunk(data []byte, typ string) ([]byte, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, fmt.Errorf("%w: not a PNG stream", ErrCorruptDepthData)
	}
	p := len(pngSignature)
	for p+12 <= len(data) {
		n := int(binary.BigEndian.Uint32(data[p:]))
		name := string(data[p+4 : p+8])
		end := p + 8 + n
		if n < 0 || end+4 > len(data) {
			return nil, fmt.Errorf("%w: truncated %q chunk", ErrCorruptDepthData, name)
		}
		if name == typ {
			want := binary.BigEndian.Uint32(data[end:])
			if got := crc32.ChecksumIEEE(data[p+4 : end]); got != want {
				return nil, fmt.Errorf("%w: chunk CRC %08x, want %08x", ErrCorruptDepthData, got, want)
			}
			return data[p+8 : end], nil
		}
		if name == "IEND" {
			break
		}
		p = end + 4
	}
	return nil, nil
}

func decodePayload(b []byte, f *depth.Frame) error {
	if len(b) < headerSize {
		return fmt.Errorf("%w: header is %d bytes", ErrCorruptDepthData, len(b))
	}
	if b[0] != formatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptDepthData, b[0])
	}
	o := depth.Orientation(b[1])
	if o > depth.Right {
		return fmt.Errorf("%w: orientation %d", ErrCorruptDepthData, b[1])
	}
	w := int(binary.LittleEndian.Uint32(b[4:]))
	h := int(binary.LittleEndian.Uint32(b[8:]))
	if w <= 0 || h <= 0 || (len(b)-headerSize)/4/w < h {
		return fmt.Errorf("%w: %dx%d samples in %d bytes", ErrCorruptDepthData, w, h, len(b)-headerSize)
	}

	samples := make([]byte, 4*w*h)
	copy(samples, b[headerSize:])
	m, err := depth.NewDisparityMap(w, h, 4*w, samples)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptDepthData, err)
	}

	f.Disparity = m
	f.Orientation = o
	f.FrontFacing = b[2]&flagFront != 0
	if ns := int64(binary.LittleEndian.Uint64(b[12:])); ns != 0 {
		f.Captured = time.Unix(0, ns)
	}
	return nil
}

// Encode writes f as a PNG with a depth chunk. A frame without a color
// image stores the grayscale disparity as its color.
func Encode(w io.Writer, f *depth.Frame) error {
	if f == nil || f.Disparity == nil {
		return errors.New("depthio: frame has no disparity map")
	}
	img := f.Color
	if img == nil {
		img = f.Disparity.Gray()
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	data := buf.Bytes()

	// png.Encode always ends with an empty IEND chunk.
	const iendSize = 12
	if len(data) < len(pngSignature)+iendSize {
		return errors.New("depthio: png encoder produced no IEND")
	}
	split := len(data) - iendSize

	if _, err := w.Write(data[:split]); err != nil {
		return err
	}
	if err := writeChunk(w, chunkType, encodePayload(f)); err != nil {
		return err
	}
	_, err := w.Write(data[split:])
	return err
}

// WriteFile encodes f to path.
func WriteFile(path string, f *depth.Frame) error {
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func encodePayload(f *depth.Frame) []byte {
	m := f.Disparity
	w, h := m.Width(), m.Height()
	b := make([]byte, headerSize+4*w*h)
	b[0] = formatVersion
	b[1] = byte(f.Orientation)
	if f.FrontFacing {
		b[2] |= flagFront
	}
	binary.LittleEndian.PutUint32(b[4:], uint32(w))
	binary.LittleEndian.PutUint32(b[8:], uint32(h))
	if !f.Captured.IsZero() {
		binary.LittleEndian.PutUint64(b[12:], uint64(f.Captured.UnixNano()))
	}
	p := headerSize
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			binary.LittleEndian.PutUint32(b[p:], math.Float32bits(m.Disparity(x, y)))
			p += 4
		}
	}
	return b
}

func writeChunk(w io.Writer, typ string, payload []byte) error {
	var head [8]byte
	binary.BigEndian.PutUint32(head[:4], uint32(len(payload)))
	copy(head[4:], typ)

	crc := crc32.NewIEEE()
	crc.Write(head[4:])
	crc.Write(payload)
	var tail [4]byte
	binary.BigEndian.PutUint32(tail[:], crc.Sum32())

	for _, part := range [][]byte{head[:], payload, tail[:]} {
		if _, err := w.Write(part); err != nil {
			return fmt.Errorf("write %s chunk: %w", typ, err)
		}
	}
	return nil
}
