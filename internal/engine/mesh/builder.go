package mesh

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/xplo/internal/depth"
)

// Default reconstruction constants. They are empirically tuned against the
// dual-camera disparity range and kept as named values rather than derived.
const (
	DefaultGridWidth         = 150
	DefaultGridHeight        = 150
	DefaultDepthScale        = 100.0 // k in depth = k / disparity
	DefaultPlanarScale       = 10.0  // pixels per scene unit
	DefaultCenterOffsetScale = 4.0   // centerOffset = scale * mean(z)
	DefaultMaxDepth          = 350.0
)

// Config holds the sampling grid and reconstruction constants.
type Config struct {
	GridWidth         int     `yaml:"grid_width"`
	GridHeight        int     `yaml:"grid_height"`
	DepthScale        float32 `yaml:"depth_scale"`
	PlanarScale       float32 `yaml:"planar_scale"`
	CenterOffsetScale float32 `yaml:"center_offset_scale"`
	MaxDepth          float32 `yaml:"max_depth"`
}

// DefaultConfig returns the reference reconstruction settings.
func DefaultConfig() Config {
	return Config{
		GridWidth:         DefaultGridWidth,
		GridHeight:        DefaultGridHeight,
		DepthScale:        DefaultDepthScale,
		PlanarScale:       DefaultPlanarScale,
		CenterOffsetScale: DefaultCenterOffsetScale,
		MaxDepth:          DefaultMaxDepth,
	}
}

// Builder turns disparity maps into meshes on a fixed sampling grid.
// It keeps no per-build state, so one Builder may serve concurrent builds.
type Builder struct {
	cfg     Config
	indices []uint32
}

// NewBuilder validates cfg and precomputes the strip indices for its grid.
func NewBuilder(cfg Config) (*Builder, error) {
	indices, err := StripIndices(cfg.GridWidth, cfg.GridHeight)
	if err != nil {
		return nil, err
	}
	if cfg.PlanarScale == 0 {
		cfg.PlanarScale = DefaultPlanarScale
	}
	if cfg.DepthScale == 0 {
		cfg.DepthScale = DefaultDepthScale
	}
	return &Builder{cfg: cfg, indices: indices}, nil
}

// Config returns the builder's settings.
func (b *Builder) Config() Config {
	return b.cfg
}

// Build samples m on the builder's grid and returns the reconstructed mesh.
//
// Each grid cell takes the nearest source sample, converts it to depth as
// min(k/d, maxDepth) and recentres the planar coordinates on the map's
// middle. Invalid samples (d <= 0 or NaN) land on the far plane. The result
// is then rotated for the sensor orientation and, for front cameras,
// mirrored in x. Texture coordinates follow the grid and are not oriented;
// the renderer rotates the texture instead.
func (b *Builder) Build(m *depth.DisparityMap, o depth.Orientation, mirrored bool, maxDepth float32) (*Mesh, error) {
	if m == nil {
		return nil, ErrNilDisparityMap
	}
	if !(maxDepth > 0) || math32.IsInf(maxDepth, 1) {
		return nil, ErrInvalidMaxDepth
	}

	gw, gh := b.cfg.GridWidth, b.cfg.GridHeight
	mapW, mapH := float32(m.Width()), float32(m.Height())
	strideX := mapW / float32(gw)
	strideY := mapH / float32(gh)

	out := &Mesh{
		GridWidth:  gw,
		GridHeight: gh,
		Vertices:   make([]Vertex, 0, gw*gh),
		Indices:    b.indices,
		ZMin:       math32.MaxFloat32,
		ZMax:       -math32.MaxFloat32,
	}

	var sum float64
	for j := 0; j < gh; j++ {
		for i := 0; i < gw; i++ {
			sx := float32(i) * strideX
			sy := float32(j) * strideY

			d := m.Disparity(int(sx), int(sy))
			z := maxDepth
			if depth.Valid(d) {
				z = math32.Min(b.cfg.DepthScale/d, maxDepth)
			} else {
				out.ClampedSamples++
			}

			x := (sx - 0.5*mapW) / b.cfg.PlanarScale
			y := (sy - 0.5*mapH) / b.cfg.PlanarScale
			x, y = orient(x, y, o)
			if mirrored {
				x = -x
			}

			out.ZMin = math32.Min(out.ZMin, z)
			out.ZMax = math32.Max(out.ZMax, z)
			sum += float64(z)

			out.Vertices = append(out.Vertices, Vertex{
				X: x,
				Y: y,
				Z: z,
				U: float32(i) / float32(gw),
				V: float32(j) / float32(gh),
			})
		}
	}

	mean := float32(sum / float64(len(out.Vertices)))
	out.CenterOffset = b.cfg.CenterOffsetScale * mean
	return out, nil
}

// orient corrects for the sensor-to-display rotation.
func orient(x, y float32, o depth.Orientation) (float32, float32) {
	switch o {
	case depth.Right:
		x, y = y, x
		return x, -y
	case depth.Down:
		return -x, -y
	default:
		return x, y
	}
}
