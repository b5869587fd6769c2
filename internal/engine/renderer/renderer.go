// Package renderer draws the latest reconstructed mesh once per display refresh.
package renderer

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/xplo/internal/depth"
	"github.com/Faultbox/xplo/internal/engine/camera"
	"github.com/Faultbox/xplo/internal/engine/gfx"
	"github.com/Faultbox/xplo/internal/engine/mesh"
	"github.com/Faultbox/xplo/internal/engine/motion"
	"github.com/Faultbox/xplo/internal/engine/texture"
)

// maxFrameStep caps the time integrated by one Draw after a stall.
const maxFrameStep = 100 * time.Millisecond

var (
	ErrNilMesh   = errors.New("renderer: nil mesh")
	ErrNoIndices = errors.New("renderer: mesh has no indices")
)

// Mode selects the face culling convention.
type Mode int32

const (
	// ModePhoto views a stored photo from the front; back faces are culled.
	ModePhoto Mode = iota
	// ModeLivePreview views the live stream from behind; front faces are culled.
	ModeLivePreview
)

func (m Mode) String() string {
	if m == ModeLivePreview {
		return "live"
	}
	return "photo"
}

// Options configures a FrameRenderer.
type Options struct {
	FOVDegrees     float32
	Near, Far      float32
	Width, Height  int
	MaxTextureSize int
	ClearColor     [4]float32
	Mode           Mode

	Clock  clock.Clock
	Logger *zap.Logger
}

// DefaultOptions returns the reference projection with an 800x600 viewport.
func DefaultOptions() Options {
	return Options{
		FOVDegrees:     camera.DefaultFOVDegrees,
		Near:           camera.DefaultNear,
		Far:            camera.DefaultFar,
		Width:          800,
		Height:         600,
		MaxTextureSize: texture.DefaultMaxSize,
		ClearColor:     [4]float32{0, 0, 0, 1},
	}
}

// frame is a mesh published by the producer, ready for upload.
type frame struct {
	mesh        *mesh.Mesh
	color       *image.RGBA
	orientation depth.Orientation
}

// FrameRenderer keeps GPU copies of the latest mesh and issues one draw per
// refresh. LoadMesh and SetMode may be called from any goroutine; every
// other method belongs to the render loop.
type FrameRenderer struct {
	backend gfx.Backend
	ctl     *motion.Controller
	clock   clock.Clock
	log     *zap.Logger
	opts    Options

	pending atomic.Pointer[frame]
	mode    atomic.Int32

	camera    *camera.VirtualCamera
	current   *frame
	vertices  gfx.Buffer
	indices   gfx.Buffer
	uniforms  gfx.Buffer
	tex       gfx.Texture
	lastFrame time.Time
	failing   bool
}

// New creates a renderer. backend may be nil, in which case Draw only
// advances the motion controller.
func New(backend gfx.Backend, ctl *motion.Controller, opts Options) *FrameRenderer {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.FOVDegrees <= 0 {
		opts.FOVDegrees = camera.DefaultFOVDegrees
	}
	if opts.Near <= 0 {
		opts.Near = camera.DefaultNear
	}
	if opts.Far <= opts.Near {
		opts.Far = camera.DefaultFar
	}

	r := &FrameRenderer{
		backend: backend,
		ctl:     ctl,
		clock:   opts.Clock,
		log:     opts.Logger,
		opts:    opts,
		camera:  &camera.VirtualCamera{},
	}
	r.camera.SetProjection(mgl32.DegToRad(opts.FOVDegrees), aspect(opts.Width, opts.Height), opts.Near, opts.Far)
	r.mode.Store(int32(opts.Mode))
	return r
}

func aspect(w, h int) float32 {
	if w <= 0 || h <= 0 {
		return 1
	}
	return float32(w) / float32(h)
}

// LoadMesh publishes a mesh and its color image for the next Draw. A mesh
// published before the previous one was drawn replaces it.
func (r *FrameRenderer) LoadMesh(m *mesh.Mesh, img image.Image, o depth.Orientation) error {
	if m == nil {
		return ErrNilMesh
	}
	if want := m.GridWidth * m.GridHeight; len(m.Vertices) != want {
		return fmt.Errorf("renderer: mesh has %d vertices, want %d for a %dx%d grid",
			len(m.Vertices), want, m.GridWidth, m.GridHeight)
	}
	if len(m.Indices) == 0 {
		return ErrNoIndices
	}

	var rgba *image.RGBA
	if img == nil {
		rgba = texture.Solid(1, 1, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	} else {
		rgba = texture.Fit(img, r.opts.MaxTextureSize)
	}
	r.pending.Store(&frame{mesh: m, color: rgba, orientation: o})
	return nil
}

// SetMode switches the culling convention.
func (r *FrameRenderer) SetMode(m Mode) {
	r.mode.Store(int32(m))
}

// Mode returns the current culling convention.
func (r *FrameRenderer) Mode() Mode {
	return Mode(r.mode.Load())
}

// SetViewport updates the drawable size and projection aspect ratio.
func (r *FrameRenderer) SetViewport(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.opts.Width = width
	r.opts.Height = height
	r.camera.SetAspect(aspect(width, height))
	r.log.Debug("viewport resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// HasMesh reports whether a mesh is resident on the GPU.
func (r *FrameRenderer) HasMesh() bool {
	return r.current != nil
}

// Draw advances the motion controller, uploads a newly published mesh if
// there is one and draws the resident mesh. An upload that fails for lack
// of GPU memory keeps the previous mesh on screen and is retried on the next
// call; the error is still returned.
func (r *FrameRenderer) Draw() error {
	dt := r.tick()
	if r.ctl != nil {
		r.ctl.Advance(dt)
	}
	if r.backend == nil {
		return nil
	}

	var errs error
	if f := r.pending.Swap(nil); f != nil {
		if err := r.upload(f); err != nil {
			if gfx.IsAllocation(err) {
				r.pending.CompareAndSwap(nil, f)
			}
			if !r.failing {
				r.log.Warn("mesh upload failed", zap.Error(err))
				r.failing = true
			}
			errs = multierr.Append(errs, err)
		} else if r.failing {
			r.log.Info("mesh upload recovered")
			r.failing = false
		}
	}

	if r.current == nil {
		return errs
	}
	return multierr.Append(errs, r.submit())
}

func (r *FrameRenderer) tick() time.Duration {
	now := r.clock.Now()
	var dt time.Duration
	if !r.lastFrame.IsZero() {
		dt = now.Sub(r.lastFrame)
	}
	r.lastFrame = now
	if dt > maxFrameStep {
		dt = maxFrameStep
	}
	return dt
}

// upload moves f to the GPU. New resources are allocated before anything
// resident is touched, so a failed allocation leaves the previous mesh intact.
func (r *FrameRenderer) upload(f *frame) (err error) {
	var created []gfx.Resource
	defer func() {
		if err == nil {
			return
		}
		for _, res := range created {
			err = multierr.Append(err, r.backend.Release(res))
		}
	}()

	indices := r.indices
	if !indices.Valid() || r.current == nil || !r.current.mesh.SameShape(f.mesh) {
		indices, err = r.backend.CreateBuffer(gfx.IndexBuffer, gfx.EncodeIndices(f.mesh.Indices))
		if err != nil {
			return fmt.Errorf("index buffer: %w", err)
		}
		created = append(created, indices)
	}

	vdata := gfx.EncodeVertices(f.mesh.Vertices)
	vertices := r.vertices
	reuseVertices := vertices.Valid() && vertices.Size == len(vdata)
	if !reuseVertices {
		vertices, err = r.backend.CreateBuffer(gfx.VertexBuffer, vdata)
		if err != nil {
			return fmt.Errorf("vertex buffer: %w", err)
		}
		created = append(created, vertices)
	}

	tex := r.tex
	size := f.color.Bounds().Size()
	reuseTexture := tex.Valid() && tex.Width == size.X && tex.Height == size.Y
	if !reuseTexture {
		tex, err = r.backend.CreateTexture(f.color)
		if err != nil {
			return fmt.Errorf("texture: %w", err)
		}
		created = append(created, tex)
	}

	if reuseTexture {
		if err = r.backend.UpdateTexture(tex, f.color); err != nil {
			return fmt.Errorf("texture: %w", err)
		}
	}
	if reuseVertices {
		if err = r.backend.UpdateBuffer(vertices, vdata); err != nil {
			return fmt.Errorf("vertex buffer: %w", err)
		}
	}

	var released error
	if r.indices.Valid() && r.indices != indices {
		released = multierr.Append(released, r.backend.Release(r.indices))
	}
	if r.vertices.Valid() && r.vertices != vertices {
		released = multierr.Append(released, r.backend.Release(r.vertices))
	}
	if r.tex.Valid() && r.tex != tex {
		released = multierr.Append(released, r.backend.Release(r.tex))
	}
	if released != nil {
		r.log.Warn("release replaced resources", zap.Error(released))
	}

	r.indices, r.vertices, r.tex = indices, vertices, tex
	r.current = f
	r.log.Debug("mesh uploaded",
		zap.Int("grid_width", f.mesh.GridWidth),
		zap.Int("grid_height", f.mesh.GridHeight),
		zap.Int("clamped", f.mesh.ClampedSamples),
		zap.Stringer("orientation", f.orientation),
	)
	return nil
}

func (r *FrameRenderer) submit() error {
	data := gfx.EncodeUniforms(r.Uniforms())
	if !r.uniforms.Valid() {
		ub, err := r.backend.CreateBuffer(gfx.UniformBuffer, data)
		if err != nil {
			return fmt.Errorf("uniform buffer: %w", err)
		}
		r.uniforms = ub
	} else if err := r.backend.UpdateBuffer(r.uniforms, data); err != nil {
		return fmt.Errorf("uniform buffer: %w", err)
	}

	return r.backend.SubmitDraw(gfx.DrawCommand{
		Vertices:   r.vertices,
		Indices:    r.indices,
		Uniforms:   r.uniforms,
		Texture:    r.tex,
		IndexCount: len(r.current.mesh.Indices),
		Topology:   gfx.TriangleStrip,
		Cull:       r.cullMode(),
		ClearColor: r.opts.ClearColor,
		Viewport:   image.Pt(r.opts.Width, r.opts.Height),
	})
}

func (r *FrameRenderer) cullMode() gfx.CullMode {
	if r.Mode() == ModeLivePreview {
		return gfx.CullFront
	}
	return gfx.CullBack
}

// Uniforms returns the per-frame uniform block for the resident mesh and
// the controller's current state.
func (r *FrameRenderer) Uniforms() gfx.Uniforms {
	pose := camera.DefaultPose(camera.SubjectPhoto)
	if r.ctl != nil {
		s := r.ctl.Snapshot()
		pose = camera.Pose{Position: s.Position, Rotation: s.Rotation}
	}
	u := gfx.Uniforms{
		ViewProjection:  camera.Compose(pose.Position, pose.Rotation, r.camera.Projection()),
		TextureRotation: mgl32.Ident4(),
	}
	if r.current != nil {
		u.TextureRotation = TextureRotation(r.current.orientation.TextureAngle())
		u.Offset = mgl32.Vec4{0, 0, -r.current.mesh.CenterOffset, 0}
	}
	return u
}

// TextureRotation rotates texture coordinates by angle radians about the
// texture centre.
func TextureRotation(angle float32) mgl32.Mat4 {
	return mgl32.Translate3D(0.5, 0.5, 0).
		Mul4(mgl32.HomogRotate3DZ(angle)).
		Mul4(mgl32.Translate3D(-0.5, -0.5, 0))
}

// Close releases every GPU resource held by the renderer.
func (r *FrameRenderer) Close() error {
	r.pending.Store(nil)
	if r.backend == nil {
		return nil
	}
	var err error
	for _, res := range []gfx.Resource{r.vertices, r.indices, r.uniforms, r.tex} {
		if res.Handle() != 0 {
			err = multierr.Append(err, r.backend.Release(res))
		}
	}
	r.vertices, r.indices, r.uniforms, r.tex = gfx.Buffer{}, gfx.Buffer{}, gfx.Buffer{}, gfx.Texture{}
	r.current = nil
	return err
}
