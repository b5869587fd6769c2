package depth

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"
)

// Orientation is the rotation of the sensor image relative to the display.
type Orientation uint8

const (
	Up Orientation = iota
	Down
	Left
	Right
)

var orientationNames = [...]string{
	Up:    "up",
	Down:  "down",
	Left:  "left",
	Right: "right",
}

func (o Orientation) String() string {
	if int(o) < len(orientationNames) {
		return orientationNames[o]
	}
	return fmt.Sprintf("orientation(%d)", uint8(o))
}

// ParseOrientation converts a name such as "right" to an Orientation.
func ParseOrientation(s string) (Orientation, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range orientationNames {
		if n == name {
			return Orientation(i), nil
		}
	}
	return Up, fmt.Errorf("unknown orientation %q", s)
}

// TextureAngle is the rotation in radians the renderer applies to texture
// coordinates so the color image lines up with the oriented geometry.
func (o Orientation) TextureAngle() float32 {
	switch o {
	case Right:
		return -math32.Pi / 2
	case Down:
		return math32.Pi
	case Left:
		return math32.Pi / 2
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler so orientations read
// naturally in YAML config.
func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Orientation) UnmarshalText(text []byte) error {
	v, err := ParseOrientation(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
