package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/Faultbox/xplo/internal/config"
	"github.com/Faultbox/xplo/internal/engine/camera"
	"github.com/Faultbox/xplo/internal/engine/glbackend"
	"github.com/Faultbox/xplo/internal/engine/input"
	"github.com/Faultbox/xplo/internal/engine/motion"
	"github.com/Faultbox/xplo/internal/engine/renderer"
	"github.com/Faultbox/xplo/internal/engine/screenshot"
	"github.com/Faultbox/xplo/internal/engine/window"
	"github.com/Faultbox/xplo/internal/logger"
)

const windowTitle = "XPLO"

// Viewer is the interactive desktop viewer.
type Viewer struct {
	cfg      *config.Config
	clock    clock.Clock
	log      *zap.Logger
	window   *window.Window
	backend  *glbackend.Backend
	renderer *renderer.FrameRenderer
	motion   *motion.Controller
	input    *input.Input
	session  *Session
	shots    screenshot.Writer
	wantShot bool
}

// New opens the window and builds the pipeline. It must run on the main
// thread.
func New(cfg *config.Config) (*Viewer, error) {
	v := &Viewer{
		cfg:   cfg,
		clock: clock.New(),
		log:   logger.Named("viewer"),
	}

	var err error
	v.window, err = window.New(window.Config{
		Title:      windowTitle,
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	}, logger.Named("window"))
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// The backend needs the GL context the window just made current.
	v.backend, err = glbackend.New(logger.Named("gl"))
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("failed to create graphics backend: %w", err)
	}

	maxTex := v.backend.MaxTextureSize()
	if cfg.Graphics.MaxTextureSize > 0 && cfg.Graphics.MaxTextureSize < maxTex {
		maxTex = cfg.Graphics.MaxTextureSize
	}
	width, height := v.window.DrawableSize()

	v.motion = motion.NewController(cfg.Motion, cfg.Camera.Distances.Pose(camera.SubjectLivePreview), v.clock, logger.Named("motion"))
	v.renderer = renderer.New(v.backend, v.motion, renderer.Options{
		FOVDegrees:     cfg.Camera.FOVDegrees,
		Near:           cfg.Camera.Near,
		Far:            cfg.Camera.Far,
		Width:          width,
		Height:         height,
		MaxTextureSize: maxTex,
		ClearColor:     cfg.Graphics.ClearColor,
		Clock:          v.clock,
		Logger:         logger.Named("renderer"),
	})
	v.input = input.New()
	v.shots = screenshot.Writer{Dir: cfg.Capture.SnapshotDir, Prefix: "screen", Clock: v.clock}

	v.session, err = NewSession(cfg, v.renderer, v.motion, v.clock, logger.Named("session"))
	if err != nil {
		v.Close()
		return nil, err
	}

	v.log.Info("viewer initialized",
		zap.Int("drawableWidth", width),
		zap.Int("drawableHeight", height),
		zap.Int("maxTextureSize", maxTex),
		zap.Int("gridWidth", cfg.Mesh.GridWidth),
		zap.Int("gridHeight", cfg.Mesh.GridHeight),
	)
	return v, nil
}

// Run drives the render loop until the window closes or ctx ends. Render
// errors are logged and the loop keeps going.
func (v *Viewer) Run(ctx context.Context) error {
	v.session.Start(ctx)
	defer v.session.Stop()

	frameCount := 0
	fpsTimer := v.clock.Now()
	v.log.Info("starting render loop")

	for ctx.Err() == nil {
		if v.input.Update() {
			break
		}
		if v.handleEvents(ctx) {
			break
		}

		if err := v.renderer.Draw(); err != nil {
			v.log.Debug("draw", zap.Error(err))
		}
		if v.wantShot {
			v.screenshot()
			v.wantShot = false
		}
		v.window.SwapBuffers()

		frameCount++
		if elapsed := v.clock.Since(fpsTimer); elapsed >= time.Second {
			fps := float64(frameCount) / elapsed.Seconds()
			v.window.SetTitle(v.title(fps))
			v.log.Debug("fps", zap.Float64("fps", fps))
			frameCount = 0
			fpsTimer = v.clock.Now()
		}
	}
	return nil
}

// handleEvents applies this frame's input and reports whether to quit.
func (v *Viewer) handleEvents(ctx context.Context) bool {
	for _, e := range v.input.Events() {
		switch e.Type {
		case input.EventQuit:
			return true
		case input.EventWindowResize:
			v.renderer.SetViewport(v.window.DrawableSize())
		case input.EventPan:
			v.motion.OnPan(e.VX, e.VY)
		case input.EventPinch:
			v.motion.OnPinch(e.Scale)
		case input.EventAction:
			if v.handleAction(ctx, e.Action) {
				return true
			}
		}
	}
	return false
}

func (v *Viewer) handleAction(ctx context.Context, a input.Action) bool {
	switch a {
	case input.ActionQuit:
		return true
	case input.ActionToggleWiggle:
		on := v.motion.ToggleWiggle()
		v.log.Info("wiggle", zap.Bool("on", on))
	case input.ActionReset:
		v.session.Reset()
	case input.ActionToggleSource:
		if err := v.session.ToggleSource(ctx); err != nil {
			v.log.Warn("cannot switch source", zap.Error(err))
		}
	case input.ActionToggleDevice:
		if err := v.session.ToggleDevice(ctx); err != nil {
			v.log.Warn("cannot switch camera", zap.Error(err))
		}
	case input.ActionScreenshot:
		v.wantShot = true
	case input.ActionCapture:
		if _, err := v.session.Capture(nil); err != nil {
			if errors.Is(err, ErrNothingToCapture) {
				v.log.Info("nothing on screen to capture")
			} else {
				v.log.Warn("capture failed", zap.Error(err))
			}
		}
	}
	return false
}

// screenshot saves the frame just drawn. The back buffer is undefined
// after SwapBuffers, so it runs between Draw and the swap.
func (v *Viewer) screenshot() {
	w, h := v.window.DrawableSize()
	pixels, err := v.backend.ReadPixels(w, h)
	if err == nil {
		var img image.Image
		if img, err = screenshot.FromPixels(pixels, w, h); err == nil {
			var path string
			if path, err = v.shots.Save(img); err == nil {
				v.log.Info("screenshot saved", zap.String("path", path))
				return
			}
		}
	}
	v.log.Warn("screenshot failed", zap.Error(err))
}

func (v *Viewer) title(fps float64) string {
	st := v.session.Status()
	source := "photo"
	if st.Live {
		source = "live"
	}
	side := "rear"
	if st.Front {
		side = "front"
	}
	t := fmt.Sprintf("%s - %s (%s) - %.0f fps", windowTitle, source, side, fps)
	if st.Capturing {
		t += " - saving"
	}
	return t
}

// Close releases the pipeline, GPU resources and the window.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")

	if v.session != nil {
		v.session.Close()
	}
	if v.motion != nil {
		v.motion.StopWiggle()
	}
	if v.renderer != nil {
		if err := v.renderer.Close(); err != nil {
			v.log.Warn("renderer close", zap.Error(err))
		}
	}
	if v.backend != nil {
		if err := v.backend.Close(); err != nil {
			v.log.Warn("backend close", zap.Error(err))
		}
	}
	if v.window != nil {
		v.window.Close()
	}
}
