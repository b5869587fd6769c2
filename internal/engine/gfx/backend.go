// Package gfx defines the GPU backend contract used by the frame renderer
// and the byte layouts it uploads.
package gfx

import (
	"errors"
	"fmt"
	"image"
)

// BufferKind selects how a buffer is bound.
type BufferKind int

const (
	VertexBuffer BufferKind = iota
	IndexBuffer
	UniformBuffer
)

func (k BufferKind) String() string {
	switch k {
	case VertexBuffer:
		return "vertex"
	case IndexBuffer:
		return "index"
	case UniformBuffer:
		return "uniform"
	}
	return fmt.Sprintf("BufferKind(%d)", int(k))
}

// Resource is a backend-owned GPU object.
type Resource interface {
	Handle() uint32
}

// Buffer is a GPU buffer handle.
type Buffer struct {
	ID   uint32
	Kind BufferKind
	Size int // Bytes
}

// Handle implements Resource.
func (b Buffer) Handle() uint32 { return b.ID }

// Valid reports whether b refers to an allocated buffer.
func (b Buffer) Valid() bool { return b.ID != 0 }

// Texture is a GPU texture handle.
type Texture struct {
	ID            uint32
	Width, Height int
}

// Handle implements Resource.
func (t Texture) Handle() uint32 { return t.ID }

// Valid reports whether t refers to an allocated texture.
func (t Texture) Valid() bool { return t.ID != 0 }

// Topology is the primitive assembly mode.
type Topology int

const (
	TriangleStrip Topology = iota
	Triangles
)

// CullMode selects which faces are discarded.
type CullMode int

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

func (c CullMode) String() string {
	switch c {
	case CullFront:
		return "front"
	case CullBack:
		return "back"
	}
	return "none"
}

// DrawCommand is one indexed draw with everything bound.
type DrawCommand struct {
	Vertices   Buffer
	Indices    Buffer
	Uniforms   Buffer
	Texture    Texture
	IndexCount int
	Topology   Topology
	Cull       CullMode
	ClearColor [4]float32
	// Viewport is the target size in pixels. Zero keeps the current one.
	Viewport image.Point
}

// Backend is the GPU contract. Implementations are not safe for concurrent
// use; the render loop owns the backend.
type Backend interface {
	CreateBuffer(kind BufferKind, data []byte) (Buffer, error)
	UpdateBuffer(b Buffer, data []byte) error
	CreateTexture(img *image.RGBA) (Texture, error)
	UpdateTexture(t Texture, img *image.RGBA) error
	SubmitDraw(cmd DrawCommand) error
	Release(r Resource) error
}

// AllocationError reports that the backend could not allocate a resource.
// The caller may keep using previously allocated resources and retry later.
type AllocationError struct {
	Resource string
	Size     int
	Err      error
}

func (e *AllocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("allocate %s (%d bytes): %v", e.Resource, e.Size, e.Err)
	}
	return fmt.Sprintf("allocate %s (%d bytes)", e.Resource, e.Size)
}

func (e *AllocationError) Unwrap() error { return e.Err }

// IsAllocation reports whether err is or wraps an *AllocationError.
func IsAllocation(err error) bool {
	var ae *AllocationError
	return errors.As(err, &ae)
}
