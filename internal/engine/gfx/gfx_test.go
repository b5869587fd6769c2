package gfx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/xplo/internal/engine/mesh"
)

func readFloat(b []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
}

func TestEncodeVertices(t *testing.T) {
	vs := []mesh.Vertex{
		{X: 1, Y: 2, Z: 3, U: 0.25, V: 0.5},
		{X: -1, Y: -2, Z: 350, U: 1, V: 0},
	}
	b := EncodeVertices(vs)
	if len(b) != 2*VertexStride {
		t.Fatalf("length: got %d, want %d", len(b), 2*VertexStride)
	}
	want := []float32{1, 2, 3, 0.25, 0.5, -1, -2, 350, 1, 0}
	for i, w := range want {
		if got := readFloat(b, i); got != w {
			t.Errorf("float %d: got %f, want %f", i, got, w)
		}
	}
	if got := readFloat(b, TexCoordOffset/4); got != 0.25 {
		t.Errorf("texcoord offset points at %f", got)
	}
}

func TestEncodeIndices(t *testing.T) {
	b := EncodeIndices([]uint32{0, 3, 1, 0xdeadbeef})
	if len(b) != 16 {
		t.Fatalf("length: got %d, want 16", len(b))
	}
	if got := binary.LittleEndian.Uint32(b[12:]); got != 0xdeadbeef {
		t.Errorf("last index: got %#x", got)
	}
	if b[4] != 3 || b[5] != 0 {
		t.Errorf("index 1 not little-endian: % x", b[4:8])
	}
}

func TestEncodeUniformsLayout(t *testing.T) {
	vp := mgl32.Translate3D(7, 8, 9)
	u := Uniforms{
		ViewProjection:  vp,
		TextureRotation: mgl32.Ident4(),
		Offset:          mgl32.Vec4{0, 0, -400, 0},
	}
	b := EncodeUniforms(u)
	if len(b) != UniformsSize || UniformsSize != 144 {
		t.Fatalf("size: got %d, UniformsSize %d, want 144", len(b), UniformsSize)
	}
	// Column-major: translation lives in floats 12..14.
	for i, w := range []float32{7, 8, 9} {
		if got := readFloat(b, 12+i); got != w {
			t.Errorf("viewProjection[%d]: got %f, want %f", 12+i, got, w)
		}
	}
	if readFloat(b, 16) != 1 || readFloat(b, 21) != 1 {
		t.Error("texture rotation identity not at offset 64")
	}
	if got := readFloat(b, 34); got != -400 {
		t.Errorf("offset.z: got %f, want -400", got)
	}
}

func TestAllocationError(t *testing.T) {
	base := errors.New("out of memory")
	err := fmt.Errorf("upload: %w", &AllocationError{Resource: "vertex buffer", Size: 1024, Err: base})
	if !IsAllocation(err) {
		t.Error("wrapped AllocationError not detected")
	}
	if !errors.Is(err, base) {
		t.Error("AllocationError should unwrap to its cause")
	}
	if IsAllocation(base) {
		t.Error("plain error reported as allocation failure")
	}
	want := "upload: allocate vertex buffer (1024 bytes): out of memory"
	if err.Error() != want {
		t.Errorf("message: got %q, want %q", err.Error(), want)
	}
}

func TestHandles(t *testing.T) {
	var r Resource = Buffer{ID: 4, Kind: IndexBuffer}
	if r.Handle() != 4 {
		t.Errorf("buffer handle: got %d", r.Handle())
	}
	if (Texture{}).Valid() {
		t.Error("zero texture should be invalid")
	}
	if IndexBuffer.String() != "index" || CullFront.String() != "front" {
		t.Error("unexpected String output")
	}
}
