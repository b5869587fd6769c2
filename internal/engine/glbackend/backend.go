// Package glbackend implements gfx.Backend on OpenGL 4.1 core.
// Every method must be called on the thread that owns the GL context.
package glbackend

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/xplo/internal/engine/gfx"
	"github.com/Faultbox/xplo/internal/engine/glbackend/shaders"
)

// frameBinding is the uniform buffer binding point of the Frame block.
const frameBinding = 0

var _ gfx.Backend = (*Backend)(nil)

// Backend draws meshes with a single shader program and vertex array.
type Backend struct {
	log     *zap.Logger
	program uint32
	vao     uint32
}

// New initialises OpenGL and builds the mesh program.
// IMPORTANT: Must be called AFTER the OpenGL context is created!
func New(log *zap.Logger) (*Backend, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	program, err := linkProgram(shaders.MeshVertexShader, shaders.MeshFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("mesh program: %w", err)
	}

	block := gl.GetUniformBlockIndex(program, gl.Str("Frame\x00"))
	if block == gl.INVALID_INDEX {
		gl.DeleteProgram(program)
		return nil, fmt.Errorf("mesh program: uniform block Frame not found")
	}
	gl.UniformBlockBinding(program, block, frameBinding)
	gl.UseProgram(program)
	gl.Uniform1i(gl.GetUniformLocation(program, gl.Str("colorTexture\x00")), 0)

	b := &Backend{log: log, program: program}
	gl.GenVertexArrays(1, &b.vao)
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)

	log.Debug("mesh program created", zap.Uint32("program", program))
	return b, nil
}

// MaxTextureSize returns the largest texture edge the driver accepts.
func (b *Backend) MaxTextureSize() int {
	var size int32
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &size)
	return int(size)
}

func target(kind gfx.BufferKind) uint32 {
	switch kind {
	case gfx.IndexBuffer:
		return gl.ELEMENT_ARRAY_BUFFER
	case gfx.UniformBuffer:
		return gl.UNIFORM_BUFFER
	}
	return gl.ARRAY_BUFFER
}

// outOfMemory drains the GL error queue and reports whether it held
// GL_OUT_OF_MEMORY.
func outOfMemory() bool {
	oom := false
	for e := gl.GetError(); e != gl.NO_ERROR; e = gl.GetError() {
		if e == gl.OUT_OF_MEMORY {
			oom = true
		}
	}
	return oom
}

// CreateBuffer implements gfx.Backend.
func (b *Backend) CreateBuffer(kind gfx.BufferKind, data []byte) (gfx.Buffer, error) {
	if len(data) == 0 {
		return gfx.Buffer{}, fmt.Errorf("create %s buffer: no data", kind)
	}
	usage := uint32(gl.DYNAMIC_DRAW)
	if kind == gfx.IndexBuffer {
		usage = gl.STATIC_DRAW
	}

	outOfMemory()
	var id uint32
	gl.GenBuffers(1, &id)
	gl.BindVertexArray(b.vao)
	gl.BindBuffer(target(kind), id)
	gl.BufferData(target(kind), len(data), unsafe.Pointer(&data[0]), usage)
	gl.BindVertexArray(0)

	if outOfMemory() {
		gl.DeleteBuffers(1, &id)
		return gfx.Buffer{}, &gfx.AllocationError{Resource: kind.String() + " buffer", Size: len(data)}
	}
	return gfx.Buffer{ID: id, Kind: kind, Size: len(data)}, nil
}

// UpdateBuffer implements gfx.Backend.
func (b *Backend) UpdateBuffer(buf gfx.Buffer, data []byte) error {
	if len(data) > buf.Size {
		return fmt.Errorf("update %s buffer: %d bytes exceed capacity %d", buf.Kind, len(data), buf.Size)
	}
	if len(data) == 0 {
		return nil
	}
	gl.BindVertexArray(b.vao)
	gl.BindBuffer(target(buf.Kind), buf.ID)
	gl.BufferSubData(target(buf.Kind), 0, len(data), unsafe.Pointer(&data[0]))
	gl.BindVertexArray(0)
	return nil
}

// CreateTexture implements gfx.Backend.
func (b *Backend) CreateTexture(img *image.RGBA) (gfx.Texture, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return gfx.Texture{}, fmt.Errorf("create texture: empty image")
	}

	outOfMemory()
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(w), int32(h),
		0, gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.Pix[0]))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	if outOfMemory() {
		gl.DeleteTextures(1, &id)
		return gfx.Texture{}, &gfx.AllocationError{Resource: "texture", Size: len(img.Pix)}
	}
	return gfx.Texture{ID: id, Width: w, Height: h}, nil
}

// UpdateTexture implements gfx.Backend.
func (b *Backend) UpdateTexture(t gfx.Texture, img *image.RGBA) error {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w != t.Width || h != t.Height {
		return fmt.Errorf("update texture: size %dx%d, texture is %dx%d", w, h, t.Width, t.Height)
	}
	gl.BindTexture(gl.TEXTURE_2D, t.ID)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(w), int32(h),
		gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.Pix[0]))
	return nil
}

// SubmitDraw implements gfx.Backend. It clears the framebuffer and issues
// one indexed draw.
func (b *Backend) SubmitDraw(cmd gfx.DrawCommand) error {
	if cmd.Viewport.X > 0 && cmd.Viewport.Y > 0 {
		gl.Viewport(0, 0, int32(cmd.Viewport.X), int32(cmd.Viewport.Y))
	}
	c := cmd.ClearColor
	gl.ClearColor(c[0], c[1], c[2], c[3])
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	switch cmd.Cull {
	case gfx.CullFront:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.FRONT)
	case gfx.CullBack:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	default:
		gl.Disable(gl.CULL_FACE)
	}

	gl.UseProgram(b.program)
	gl.BindVertexArray(b.vao)

	gl.BindBuffer(gl.ARRAY_BUFFER, cmd.Vertices.ID)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, gfx.VertexStride, gfx.PositionOffset)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, gfx.VertexStride, gfx.TexCoordOffset)
	gl.EnableVertexAttribArray(1)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, cmd.Indices.ID)

	gl.BindBufferBase(gl.UNIFORM_BUFFER, frameBinding, cmd.Uniforms.ID)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, cmd.Texture.ID)

	mode := uint32(gl.TRIANGLE_STRIP)
	if cmd.Topology == gfx.Triangles {
		mode = gl.TRIANGLES
	}
	gl.DrawElementsWithOffset(mode, int32(cmd.IndexCount), gl.UNSIGNED_INT, 0)
	gl.BindVertexArray(0)

	if e := gl.GetError(); e != gl.NO_ERROR {
		if e == gl.OUT_OF_MEMORY {
			return &gfx.AllocationError{Resource: "draw"}
		}
		return fmt.Errorf("draw: GL error 0x%x", e)
	}
	return nil
}

// ReadPixels returns the back buffer as bottom-up RGBA rows.
func (b *Backend) ReadPixels(width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("read pixels: invalid size %dx%d", width, height)
	}
	pixels := make([]byte, width*height*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&pixels[0]))
	if e := gl.GetError(); e != gl.NO_ERROR {
		return nil, fmt.Errorf("read pixels: GL error 0x%x", e)
	}
	return pixels, nil
}

// Release implements gfx.Backend.
func (b *Backend) Release(r gfx.Resource) error {
	switch v := r.(type) {
	case gfx.Buffer:
		id := v.ID
		gl.DeleteBuffers(1, &id)
	case gfx.Texture:
		id := v.ID
		gl.DeleteTextures(1, &id)
	default:
		return fmt.Errorf("release: unknown resource %T", r)
	}
	return nil
}

// Close deletes the program and vertex array.
func (b *Backend) Close() error {
	b.log.Info("closing GL backend")
	var err error
	if b.vao != 0 {
		gl.DeleteVertexArrays(1, &b.vao)
		b.vao = 0
	}
	if b.program != 0 {
		gl.DeleteProgram(b.program)
		b.program = 0
	}
	if e := gl.GetError(); e != gl.NO_ERROR {
		err = multierr.Append(err, fmt.Errorf("close: GL error 0x%x", e))
	}
	return err
}
