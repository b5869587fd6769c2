// Package app runs the viewer: a producer that turns depth frames into
// meshes, and the render loop that shows them.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/Faultbox/xplo/internal/capture"
	"github.com/Faultbox/xplo/internal/config"
	"github.com/Faultbox/xplo/internal/depth"
	"github.com/Faultbox/xplo/internal/depthio"
	"github.com/Faultbox/xplo/internal/engine/camera"
	"github.com/Faultbox/xplo/internal/engine/mesh"
	"github.com/Faultbox/xplo/internal/engine/motion"
	"github.com/Faultbox/xplo/internal/engine/renderer"
)

var (
	// ErrNothingToCapture is returned by Capture before any frame arrived.
	ErrNothingToCapture = errors.New("app: no frame to capture")
	// ErrNoPhoto is returned when switching to photo mode without a path.
	ErrNoPhoto = errors.New("app: no photo configured")
)

// noSubject marks that no frame has been shown yet.
const noSubject = -1

// Status is a point-in-time summary for the title bar.
type Status struct {
	Live      bool
	Front     bool
	Frames    int64
	Capturing bool
	Err       error
}

// MeshSink receives reconstructed meshes. *renderer.FrameRenderer is the
// one the viewer uses.
type MeshSink interface {
	LoadMesh(m *mesh.Mesh, img image.Image, o depth.Orientation) error
	SetMode(m renderer.Mode)
}

// Session connects a depth source to the mesh builder and the renderer.
// The producer goroutine it starts is the only caller of Consume; the
// other methods are meant for the UI thread.
type Session struct {
	cfg      *config.Config
	builder  *mesh.Builder
	renderer MeshSink
	motion   *motion.Controller
	clock    clock.Clock
	log      *zap.Logger

	rig    capture.DeviceInfo
	live   atomic.Bool
	front  atomic.Bool
	saving capture.InFlight
	saves  sync.WaitGroup

	last    atomic.Pointer[depth.Frame]
	subject atomic.Int32
	frames  atomic.Int64
	lastErr atomic.Error

	mu     sync.Mutex
	caps   capture.Capabilities
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession negotiates the camera rig and prepares the builder.
func NewSession(cfg *config.Config, r MeshSink, ctl *motion.Controller, clk clock.Clock, log *zap.Logger) (*Session, error) {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	builder, err := mesh.NewBuilder(cfg.Mesh)
	if err != nil {
		return nil, fmt.Errorf("mesh builder: %w", err)
	}

	rig := capture.SyntheticRig()
	caps, err := capture.Negotiate(rig)
	if err != nil {
		return nil, err
	}
	if caps.FrontFacing != cfg.Source.Synthetic.FrontFacing {
		if caps, err = capture.Toggle(rig, caps); err != nil {
			return nil, err
		}
	}

	s := &Session{
		cfg:      cfg,
		builder:  builder,
		renderer: r,
		motion:   ctl,
		clock:    clk,
		log:      log,
		rig:      rig,
		caps:     caps,
	}
	s.live.Store(cfg.Source.Mode != config.SourcePhoto)
	s.front.Store(caps.FrontFacing)
	s.subject.Store(noSubject)

	log.Info("camera negotiated",
		zap.String("device", caps.Device.Name),
		zap.Stringer("kind", caps.Device.Kind),
		zap.Bool("depth", caps.DepthDelivery),
		zap.Bool("canToggle", caps.CanToggle),
	)
	return s, nil
}

// Live reports whether the live source is selected.
func (s *Session) Live() bool {
	return s.live.Load()
}

// Capabilities returns the negotiated camera configuration.
func (s *Session) Capabilities() capture.Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// Start runs the selected source until ctx ends or another Start or Stop
// replaces it.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	src := s.sourceLocked()
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go s.run(ctx, src, done)
}

// Stop halts the running source and waits for the producer to exit.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel, s.done = nil, nil
}

func (s *Session) sourceLocked() capture.Source {
	if !s.live.Load() {
		return capture.PhotoFile{Path: s.cfg.Source.PhotoPath}
	}
	sc := s.cfg.Source.Synthetic
	sc.FrontFacing = s.caps.FrontFacing
	return capture.NewSynthetic(sc, s.clock, s.log.Named("source"))
}

// run is the producer goroutine.
func (s *Session) run(ctx context.Context, src capture.Source, done chan<- struct{}) {
	defer close(done)

	out := make(chan depth.Frame, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- src.Run(ctx, out)
		close(out)
	}()

	live := src.Live()
	for f := range out {
		if err := s.Consume(f, live); err != nil {
			s.lastErr.Store(err)
			s.log.Warn("frame skipped", zap.Error(err))
		}
	}

	err := <-errc
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, depthio.ErrMissingDepthData):
	default:
		s.lastErr.Store(err)
		s.log.Error("source failed", zap.Bool("live", live), zap.Error(err))
	}
}

// Consume reconstructs f and hands the mesh to the renderer. The camera is
// reset to the subject's default pose when the subject changes.
func (s *Session) Consume(f depth.Frame, live bool) error {
	if !f.HasDepth() {
		return depthio.ErrMissingDepthData
	}
	m, err := s.builder.Build(f.Disparity, f.Orientation, f.FrontFacing, s.cfg.Mesh.MaxDepth)
	if err != nil {
		return fmt.Errorf("build mesh: %w", err)
	}

	// Mode and pose go first so the first draw of a new subject's mesh
	// already uses them.
	subject := camera.SubjectFor(live, f.FrontFacing)
	changed := s.subject.Load() != int32(subject)
	mode := renderer.ModePhoto
	if live {
		mode = renderer.ModeLivePreview
	}
	if changed {
		s.renderer.SetMode(mode)
		s.motion.Reset(s.cfg.Camera.Distances.Pose(subject))
	}
	if err := s.renderer.LoadMesh(m, f.Color, f.Orientation); err != nil {
		return fmt.Errorf("load mesh: %w", err)
	}

	if changed {
		s.subject.Store(int32(subject))
		s.log.Info("subject changed",
			zap.Bool("live", live),
			zap.Bool("front", f.FrontFacing),
			zap.Stringer("mode", mode),
			zap.Int("clamped", m.ClampedSamples),
		)
	}

	s.last.Store(&f)
	s.frames.Inc()
	return nil
}

// Reset returns the camera to the default pose for what is on screen.
func (s *Session) Reset() {
	subject := camera.Subject(s.subject.Load())
	if subject == noSubject {
		subject = camera.SubjectFor(s.Live(), s.front.Load())
	}
	s.motion.Reset(s.cfg.Camera.Distances.Pose(subject))
}

// ToggleSource switches between the live stream and the configured photo
// and restarts the producer.
func (s *Session) ToggleSource(ctx context.Context) error {
	live := !s.Live()
	if !live && s.cfg.Source.PhotoPath == "" {
		return ErrNoPhoto
	}
	s.live.Store(live)
	s.log.Info("source switched", zap.Bool("live", live))
	s.Start(ctx)
	return nil
}

// ToggleDevice swaps to the camera on the other side and restarts a live
// stream so new frames come from it.
func (s *Session) ToggleDevice(ctx context.Context) error {
	s.mu.Lock()
	caps, err := capture.Toggle(s.rig, s.caps)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.caps = caps
	s.front.Store(caps.FrontFacing)
	s.mu.Unlock()

	s.log.Info("camera toggled", zap.String("device", caps.Device.Name))
	if s.Live() {
		s.Start(ctx)
	}
	return nil
}

// Capture saves the frame on screen to the snapshot directory in the
// background and returns the path it will be written to. done, if not nil,
// runs when the write finishes.
func (s *Session) Capture(done func(path string, err error)) (string, error) {
	f := s.last.Load()
	if f == nil {
		return "", ErrNothingToCapture
	}
	dir := s.cfg.Capture.SnapshotDir
	path := filepath.Join(dir, fmt.Sprintf("xplo-%s.png", s.clock.Now().Format("20060102-150405.000")))

	s.saving.Increment()
	s.saves.Add(1)
	go func() {
		defer s.saves.Done()
		err := os.MkdirAll(dir, 0o755)
		if err == nil {
			err = depthio.WriteFile(path, f)
		}
		s.saving.Decrement()
		if err != nil {
			s.lastErr.Store(err)
			s.log.Error("snapshot failed", zap.String("path", path), zap.Error(err))
		} else {
			s.log.Info("snapshot saved", zap.String("path", path))
		}
		if done != nil {
			done(path, err)
		}
	}()
	return path, nil
}

// Capturing reports whether a snapshot is still being written.
func (s *Session) Capturing() bool {
	return s.saving.Busy()
}

// WaitCaptures blocks until every pending snapshot is written.
func (s *Session) WaitCaptures() {
	s.saves.Wait()
}

// Status summarises the session.
func (s *Session) Status() Status {
	return Status{
		Live:      s.Live(),
		Front:     s.front.Load(),
		Frames:    s.frames.Load(),
		Capturing: s.Capturing(),
		Err:       s.lastErr.Load(),
	}
}

// Close stops the producer and waits for pending snapshots.
func (s *Session) Close() {
	s.Stop()
	s.WaitCaptures()
}
