package gfx

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/xplo/internal/engine/mesh"
)

// Vertex layout: position xyz then texcoord uv, tightly packed float32.
const (
	VertexStride   = 5 * 4
	PositionOffset = 0
	TexCoordOffset = 3 * 4
	IndexSize      = 4
)

// UniformsSize is the std140 size of Uniforms: two mat4 and one vec4.
const UniformsSize = 16*4*2 + 4*4

// Uniforms is the per-frame uniform block.
//
//	layout(std140) uniform Frame {
//	    mat4 viewProjection;
//	    mat4 textureRotation;
//	    vec4 offset;
//	};
type Uniforms struct {
	ViewProjection  mgl32.Mat4
	TextureRotation mgl32.Mat4
	Offset          mgl32.Vec4
}

// EncodeVertices packs vertices as little-endian float32 x, y, z, u, v.
func EncodeVertices(vs []mesh.Vertex) []byte {
	buf := make([]byte, len(vs)*VertexStride)
	off := 0
	for _, v := range vs {
		putFloats(buf[off:], v.X, v.Y, v.Z, v.U, v.V)
		off += VertexStride
	}
	return buf
}

// EncodeIndices packs indices as little-endian uint32.
func EncodeIndices(idx []uint32) []byte {
	buf := make([]byte, len(idx)*IndexSize)
	for i, v := range idx {
		binary.LittleEndian.PutUint32(buf[i*IndexSize:], v)
	}
	return buf
}

// EncodeUniforms packs u in std140 order. mgl32 matrices are column-major,
// which is what std140 expects for mat4.
func EncodeUniforms(u Uniforms) []byte {
	buf := make([]byte, UniformsSize)
	putFloats(buf, u.ViewProjection[:]...)
	putFloats(buf[64:], u.TextureRotation[:]...)
	putFloats(buf[128:], u.Offset[:]...)
	return buf
}

func putFloats(dst []byte, fs ...float32) {
	for i, f := range fs {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}
