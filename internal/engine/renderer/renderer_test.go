package renderer

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/xplo/internal/depth"
	"github.com/Faultbox/xplo/internal/engine/camera"
	"github.com/Faultbox/xplo/internal/engine/gfx"
	"github.com/Faultbox/xplo/internal/engine/mesh"
	"github.com/Faultbox/xplo/internal/engine/motion"
	"github.com/Faultbox/xplo/internal/engine/texture"
)

// fakeBackend records every call and can be told to fail allocations.
type fakeBackend struct {
	nextID   uint32
	live     map[uint32]bool
	data     map[uint32][]byte
	created  []gfx.BufferKind
	textures int
	updates  int
	draws    []gfx.DrawCommand
	released []uint32

	failKind    map[gfx.BufferKind]bool
	failTexture bool
	failRelease bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		live:     map[uint32]bool{},
		data:     map[uint32][]byte{},
		failKind: map[gfx.BufferKind]bool{},
	}
}

func (f *fakeBackend) alloc() uint32 {
	f.nextID++
	f.live[f.nextID] = true
	return f.nextID
}

func (f *fakeBackend) CreateBuffer(kind gfx.BufferKind, data []byte) (gfx.Buffer, error) {
	if f.failKind[kind] {
		return gfx.Buffer{}, &gfx.AllocationError{Resource: kind.String() + " buffer", Size: len(data)}
	}
	id := f.alloc()
	f.created = append(f.created, kind)
	f.data[id] = append([]byte(nil), data...)
	return gfx.Buffer{ID: id, Kind: kind, Size: len(data)}, nil
}

func (f *fakeBackend) UpdateBuffer(b gfx.Buffer, data []byte) error {
	if !f.live[b.ID] {
		return errors.New("update of unknown buffer")
	}
	f.updates++
	f.data[b.ID] = append([]byte(nil), data...)
	return nil
}

func (f *fakeBackend) CreateTexture(img *image.RGBA) (gfx.Texture, error) {
	if f.failTexture {
		return gfx.Texture{}, &gfx.AllocationError{Resource: "texture", Size: len(img.Pix)}
	}
	f.textures++
	b := img.Bounds()
	return gfx.Texture{ID: f.alloc(), Width: b.Dx(), Height: b.Dy()}, nil
}

func (f *fakeBackend) UpdateTexture(t gfx.Texture, img *image.RGBA) error {
	if !f.live[t.ID] {
		return errors.New("update of unknown texture")
	}
	f.updates++
	return nil
}

func (f *fakeBackend) SubmitDraw(cmd gfx.DrawCommand) error {
	for _, id := range []uint32{cmd.Vertices.ID, cmd.Indices.ID, cmd.Uniforms.ID, cmd.Texture.ID} {
		if !f.live[id] {
			return errors.New("draw references a released resource")
		}
	}
	f.draws = append(f.draws, cmd)
	return nil
}

func (f *fakeBackend) Release(r gfx.Resource) error {
	f.released = append(f.released, r.Handle())
	delete(f.live, r.Handle())
	if f.failRelease {
		return errors.New("release failed")
	}
	return nil
}

func (f *fakeBackend) countCreated(kind gfx.BufferKind) int {
	n := 0
	for _, k := range f.created {
		if k == kind {
			n++
		}
	}
	return n
}

func buildMesh(t *testing.T, grid int, d float32) *mesh.Mesh {
	t.Helper()
	samples := make([]float32, 8*8)
	for i := range samples {
		samples[i] = d
	}
	dm, err := depth.FromSamples(8, 8, samples)
	if err != nil {
		t.Fatal(err)
	}
	cfg := mesh.DefaultConfig()
	cfg.GridWidth, cfg.GridHeight = grid, grid
	b, err := mesh.NewBuilder(cfg)
	if err != nil {
		t.Fatal(err)
	}
	m, err := b.Build(dm, depth.Up, false, mesh.DefaultMaxDepth)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func colorImage() image.Image {
	return texture.Solid(4, 4, color.RGBA{R: 255, A: 255})
}

func newTestRenderer(be gfx.Backend, ctl *motion.Controller, clk clock.Clock) *FrameRenderer {
	opts := DefaultOptions()
	opts.Clock = clk
	return New(be, ctl, opts)
}

func TestDrawWithoutBackendOrMesh(t *testing.T) {
	r := newTestRenderer(nil, nil, clock.NewMock())
	if err := r.LoadMesh(buildMesh(t, 3, 1), colorImage(), depth.Up); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(); err != nil {
		t.Errorf("draw without backend: %v", err)
	}

	be := newFakeBackend()
	r = newTestRenderer(be, nil, clock.NewMock())
	if err := r.Draw(); err != nil {
		t.Errorf("draw without mesh: %v", err)
	}
	if len(be.draws) != 0 || len(be.created) != 0 {
		t.Error("draw without mesh should not touch the backend")
	}
}

func TestDrawUploadsAndSubmitsOnce(t *testing.T) {
	be := newFakeBackend()
	r := newTestRenderer(be, nil, clock.NewMock())
	m := buildMesh(t, 4, 1)
	if err := r.LoadMesh(m, colorImage(), depth.Up); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if len(be.draws) != 1 {
		t.Fatalf("draws: got %d, want 1", len(be.draws))
	}
	cmd := be.draws[0]
	if cmd.Topology != gfx.TriangleStrip {
		t.Error("mesh should be drawn as a triangle strip")
	}
	if cmd.IndexCount != mesh.StripIndexCount(4, 4) {
		t.Errorf("index count: got %d, want %d", cmd.IndexCount, mesh.StripIndexCount(4, 4))
	}
	if cmd.Vertices.Size != 16*gfx.VertexStride {
		t.Errorf("vertex buffer size: got %d", cmd.Vertices.Size)
	}
	if cmd.Cull != gfx.CullBack {
		t.Errorf("photo mode should cull back faces, got %v", cmd.Cull)
	}
	if !r.HasMesh() {
		t.Error("HasMesh should be true after upload")
	}

	// Later frames redraw without re-uploading.
	if err := r.Draw(); err != nil {
		t.Fatal(err)
	}
	if len(be.draws) != 2 || be.countCreated(gfx.VertexBuffer) != 1 || be.textures != 1 {
		t.Errorf("redraw re-uploaded: draws=%d vertex buffers=%d textures=%d",
			len(be.draws), be.countCreated(gfx.VertexBuffer), be.textures)
	}
}

func TestIndexBufferReusedForSameShape(t *testing.T) {
	be := newFakeBackend()
	r := newTestRenderer(be, nil, clock.NewMock())

	for _, d := range []float32{1, 2, 4} {
		if err := r.LoadMesh(buildMesh(t, 5, d), colorImage(), depth.Up); err != nil {
			t.Fatal(err)
		}
		if err := r.Draw(); err != nil {
			t.Fatal(err)
		}
	}
	if n := be.countCreated(gfx.IndexBuffer); n != 1 {
		t.Errorf("index buffers created: got %d, want 1", n)
	}
	if n := be.countCreated(gfx.VertexBuffer); n != 1 {
		t.Errorf("vertex buffers created: got %d, want 1 (updated in place)", n)
	}

	if err := r.LoadMesh(buildMesh(t, 6, 1), colorImage(), depth.Up); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(); err != nil {
		t.Fatal(err)
	}
	if n := be.countCreated(gfx.IndexBuffer); n != 2 {
		t.Errorf("index buffers after shape change: got %d, want 2", n)
	}
	if got := be.draws[len(be.draws)-1].IndexCount; got != mesh.StripIndexCount(6, 6) {
		t.Errorf("index count after shape change: got %d", got)
	}
	if len(be.released) != 2 {
		t.Errorf("old index and vertex buffers should be released, released %v", be.released)
	}
}

func TestAllocationFailureKeepsPreviousMesh(t *testing.T) {
	be := newFakeBackend()
	r := newTestRenderer(be, nil, clock.NewMock())

	first := buildMesh(t, 3, 1)
	if err := r.LoadMesh(first, colorImage(), depth.Up); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(); err != nil {
		t.Fatal(err)
	}
	prev := be.draws[0]

	// A larger grid needs new buffers, which the backend refuses.
	be.failKind[gfx.VertexBuffer] = true
	if err := r.LoadMesh(buildMesh(t, 7, 2), colorImage(), depth.Up); err != nil {
		t.Fatal(err)
	}
	err := r.Draw()
	if !gfx.IsAllocation(err) {
		t.Fatalf("Draw error: got %v, want allocation failure", err)
	}
	last := be.draws[len(be.draws)-1]
	if last.Vertices != prev.Vertices || last.Indices != prev.Indices || last.IndexCount != prev.IndexCount {
		t.Error("previous mesh should still be drawn after a failed upload")
	}
	if be.live[be.nextID] {
		t.Error("index buffer allocated for the failed upload should be released")
	}

	be.failKind[gfx.VertexBuffer] = false
	if err := r.Draw(); err != nil {
		t.Fatalf("retry Draw: %v", err)
	}
	if got := be.draws[len(be.draws)-1].IndexCount; got != mesh.StripIndexCount(7, 7) {
		t.Errorf("pending mesh should upload on retry, index count %d", got)
	}
}

func TestNewerMeshWinsOverRetry(t *testing.T) {
	be := newFakeBackend()
	r := newTestRenderer(be, nil, clock.NewMock())
	be.failTexture = true
	if err := r.LoadMesh(buildMesh(t, 3, 1), colorImage(), depth.Up); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(); !gfx.IsAllocation(err) {
		t.Fatalf("got %v, want allocation failure", err)
	}
	if r.HasMesh() {
		t.Error("nothing should be resident after the first upload failed")
	}

	be.failTexture = false
	if err := r.LoadMesh(buildMesh(t, 4, 1), colorImage(), depth.Up); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(); err != nil {
		t.Fatal(err)
	}
	if got := be.draws[0].IndexCount; got != mesh.StripIndexCount(4, 4) {
		t.Errorf("newest mesh should be drawn, index count %d", got)
	}
}

func TestLoadMeshValidation(t *testing.T) {
	r := newTestRenderer(newFakeBackend(), nil, clock.NewMock())
	if err := r.LoadMesh(nil, nil, depth.Up); !errors.Is(err, ErrNilMesh) {
		t.Errorf("nil mesh: got %v", err)
	}

	bad := buildMesh(t, 3, 1)
	bad.Vertices = bad.Vertices[:5]
	if err := r.LoadMesh(bad, nil, depth.Up); err == nil {
		t.Error("vertex count mismatch should be rejected")
	}

	noIdx := buildMesh(t, 3, 1)
	noIdx.Indices = nil
	if err := r.LoadMesh(noIdx, nil, depth.Up); !errors.Is(err, ErrNoIndices) {
		t.Errorf("empty indices: got %v", err)
	}

	if err := r.LoadMesh(buildMesh(t, 3, 1), nil, depth.Up); err != nil {
		t.Errorf("missing color should fall back to a placeholder: %v", err)
	}
}

func TestModeSelectsCulling(t *testing.T) {
	be := newFakeBackend()
	r := newTestRenderer(be, nil, clock.NewMock())
	if err := r.LoadMesh(buildMesh(t, 3, 1), colorImage(), depth.Up); err != nil {
		t.Fatal(err)
	}
	r.SetMode(ModeLivePreview)
	if err := r.Draw(); err != nil {
		t.Fatal(err)
	}
	r.SetMode(ModePhoto)
	if err := r.Draw(); err != nil {
		t.Fatal(err)
	}
	if be.draws[0].Cull != gfx.CullFront || be.draws[1].Cull != gfx.CullBack {
		t.Errorf("cull modes: got %v, %v", be.draws[0].Cull, be.draws[1].Cull)
	}
}

func TestUniformBlock(t *testing.T) {
	be := newFakeBackend()
	ctl := motion.NewController(motion.DefaultConfig(), camera.DefaultPose(camera.SubjectPhoto), clock.NewMock(), nil)
	r := newTestRenderer(be, ctl, clock.NewMock())
	m := buildMesh(t, 3, 1)
	if err := r.LoadMesh(m, colorImage(), depth.Down); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(); err != nil {
		t.Fatal(err)
	}

	data := be.data[be.draws[0].Uniforms.ID]
	if len(data) != gfx.UniformsSize {
		t.Fatalf("uniform size: got %d", len(data))
	}
	float := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])) }
	if got := float(34); got != -m.CenterOffset {
		t.Errorf("offset z: got %f, want %f", got, -m.CenterOffset)
	}

	u := r.Uniforms()
	pose := camera.DefaultPose(camera.SubjectPhoto)
	want := camera.Compose(pose.Position, pose.Rotation, mgl32.Perspective(mgl32.DegToRad(55), 800.0/600.0, 0.01, 500))
	if !u.ViewProjection.ApproxEqualThreshold(want, 1e-4) {
		t.Errorf("viewProjection: got %v, want %v", u.ViewProjection, want)
	}
	if !u.TextureRotation.ApproxEqualThreshold(TextureRotation(math.Pi), 1e-6) {
		t.Error("down orientation should rotate the texture by pi")
	}
}

func TestTextureRotationAboutCentre(t *testing.T) {
	rot := TextureRotation(math.Pi / 2)
	centre := rot.Mul4x1(mgl32.Vec4{0.5, 0.5, 0, 1})
	if !centre.ApproxEqualThreshold(mgl32.Vec4{0.5, 0.5, 0, 1}, 1e-6) {
		t.Errorf("centre moved to %v", centre)
	}
	corner := rot.Mul4x1(mgl32.Vec4{1, 0.5, 0, 1})
	if !corner.ApproxEqualThreshold(mgl32.Vec4{0.5, 1, 0, 1}, 1e-6) {
		t.Errorf("(1, 0.5) rotated to %v, want (0.5, 1)", corner)
	}
}

func TestDrawAdvancesMotionWithClock(t *testing.T) {
	mock := clock.NewMock()
	ctl := motion.NewController(motion.DefaultConfig(), camera.DefaultPose(camera.SubjectPhoto), mock, nil)
	r := newTestRenderer(nil, ctl, mock)

	ctl.OnPan(2000, 0) // 10 rad/s about y
	before := ctl.Snapshot().Rotation.Y()
	_ = r.Draw() // first frame has no elapsed time
	if ctl.Snapshot().Rotation.Y() != before {
		t.Error("first frame should not rotate")
	}

	v := ctl.Snapshot().AngularVelocity.X()
	mock.Add(50 * time.Millisecond)
	_ = r.Draw()
	got := ctl.Snapshot().Rotation.Y() - before
	if want := v * 0.05; math.Abs(float64(got-want)) > 1e-4 {
		t.Errorf("rotation after 50ms: got %f, want %f", got, want)
	}

	// Long stalls are capped.
	prev := ctl.Snapshot()
	mock.Add(10 * time.Second)
	_ = r.Draw()
	step := ctl.Snapshot().Rotation.Y() - prev.Rotation.Y()
	if limit := prev.AngularVelocity.X() * float32(maxFrameStep.Seconds()); step > limit+1e-4 {
		t.Errorf("stalled frame rotated %f, cap is %f", step, limit)
	}
}

func TestSetViewport(t *testing.T) {
	be := newFakeBackend()
	r := newTestRenderer(be, nil, clock.NewMock())
	r.SetViewport(1000, 500)
	r.SetViewport(0, 100) // ignored
	if err := r.LoadMesh(buildMesh(t, 3, 1), colorImage(), depth.Up); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(); err != nil {
		t.Fatal(err)
	}
	if got := be.draws[0].Viewport; got != image.Pt(1000, 500) {
		t.Errorf("viewport: got %v", got)
	}
	want := mgl32.Perspective(mgl32.DegToRad(55), 2, 0.01, 500)
	if !r.camera.Projection().ApproxEqual(want) {
		t.Error("projection should follow the viewport aspect")
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	be := newFakeBackend()
	r := newTestRenderer(be, nil, clock.NewMock())
	if err := r.LoadMesh(buildMesh(t, 3, 1), colorImage(), depth.Up); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(); err != nil {
		t.Fatal(err)
	}
	be.failRelease = true
	err := r.Close()
	if err == nil {
		t.Fatal("release failures should be reported")
	}
	if len(be.live) != 0 {
		t.Errorf("%d resources still live after Close", len(be.live))
	}
	if r.HasMesh() {
		t.Error("no mesh should be resident after Close")
	}
	be.failRelease = false
	if err := r.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
