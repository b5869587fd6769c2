package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/chewxy/math32"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/Faultbox/xplo/internal/depth"
	"github.com/Faultbox/xplo/internal/depthio"
)

// Source produces depth frames until ctx is done or it runs out.
// Run returns nil when the source is exhausted and ctx.Err() when cancelled.
type Source interface {
	Run(ctx context.Context, out chan<- depth.Frame) error
	// Live reports whether frames stream continuously.
	Live() bool
}

// SyntheticConfig shapes the generated stream.
type SyntheticConfig struct {
	Width       int               `yaml:"width"`
	Height      int               `yaml:"height"`
	FPS         int               `yaml:"fps"`
	Orientation depth.Orientation `yaml:"orientation"`
	FrontFacing bool              `yaml:"front_facing"`
}

// DefaultSyntheticConfig returns a 320x240 stream at 30 frames per second.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{Width: 320, Height: 240, FPS: 30, Orientation: depth.Up, FrontFacing: true}
}

// SyntheticSource streams an animated depth scene: a far backdrop with a
// bump that circles the frame. It stands in for a live depth camera.
type SyntheticSource struct {
	cfg     SyntheticConfig
	clock   clock.Clock
	log     *zap.Logger
	dropped atomic.Int64
}

// NewSynthetic creates a synthetic live source.
func NewSynthetic(cfg SyntheticConfig, clk clock.Clock, log *zap.Logger) *SyntheticSource {
	def := DefaultSyntheticConfig()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.FPS <= 0 {
		cfg.FPS = def.FPS
	}
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SyntheticSource{cfg: cfg, clock: clk, log: log}
}

// Live implements Source.
func (s *SyntheticSource) Live() bool { return true }

// Dropped returns how many frames were discarded because the consumer was busy.
func (s *SyntheticSource) Dropped() int64 { return s.dropped.Load() }

// Run implements Source. Frames the consumer is not ready for are dropped,
// like a camera discarding late frames.
func (s *SyntheticSource) Run(ctx context.Context, out chan<- depth.Frame) error {
	ticker := s.clock.Ticker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()
	start := s.clock.Now()

	s.log.Info("synthetic source started",
		zap.Int("width", s.cfg.Width),
		zap.Int("height", s.cfg.Height),
		zap.Int("fps", s.cfg.FPS),
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			f, err := SyntheticFrame(s.cfg, now.Sub(start))
			if err != nil {
				return err
			}
			f.Captured = now
			select {
			case out <- *f:
			case <-ctx.Done():
				return ctx.Err()
			default:
				s.dropped.Inc()
			}
		}
	}
}

// SyntheticFrame renders the synthetic scene at elapsed time t.
func SyntheticFrame(cfg SyntheticConfig, t time.Duration) (*depth.Frame, error) {
	w, h := cfg.Width, cfg.Height
	samples := make([]float32, w*h)
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	phase := float32(t.Seconds()) * math32.Pi / 2
	sin, cos := math32.Sincos(phase)
	cx := float32(w) * (0.5 + 0.25*cos)
	cy := float32(h) * (0.5 + 0.25*sin)
	sigma := float32(min(w, h)) / 5

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float32(x)-cx, float32(y)-cy
			bump := math32.Exp(-(dx*dx + dy*dy) / (2 * sigma * sigma))
			d := 0.4 + 1.6*bump
			samples[y*w+x] = d

			shade := uint8(255 * bump)
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(255 * x / w),
				G: uint8(255 * y / h),
				B: 255 - shade,
				A: 255,
			})
		}
	}

	m, err := depth.FromSamples(w, h, samples)
	if err != nil {
		return nil, fmt.Errorf("synthetic frame: %w", err)
	}
	return &depth.Frame{
		Disparity:   m,
		Orientation: cfg.Orientation,
		FrontFacing: cfg.FrontFacing,
		Color:       img,
	}, nil
}

// PhotoFile delivers the single frame stored in a depth photo.
type PhotoFile struct {
	Path string
}

// Live implements Source.
func (p PhotoFile) Live() bool { return false }

// Run implements Source. A photo without depth data is still delivered so
// the viewer can show it flat; the returned error is then
// depthio.ErrMissingDepthData.
func (p PhotoFile) Run(ctx context.Context, out chan<- depth.Frame) error {
	f, err := depthio.ReadFile(p.Path)
	if f == nil {
		return err
	}
	select {
	case out <- *f:
	case <-ctx.Done():
		return ctx.Err()
	}
	if errors.Is(err, depthio.ErrMissingDepthData) {
		return err
	}
	return nil
}
