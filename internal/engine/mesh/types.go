// Package mesh reconstructs textured triangle-strip surfaces from disparity maps.
package mesh

// Vertex is a mesh vertex: position followed by texture coordinate.
type Vertex struct {
	X, Y, Z float32
	U, V    float32
}

// Mesh is a grid surface ready for GPU upload.
// Vertices are row-major over the sampling grid and Indices describe one
// continuous triangle strip over the whole grid.
type Mesh struct {
	GridWidth  int
	GridHeight int
	Vertices   []Vertex
	// Indices is shared by every mesh built on the same grid shape.
	// Do not modify it.
	Indices []uint32

	ZMin float32
	ZMax float32
	// CenterOffset is the depth the renderer subtracts to bring the surface
	// to the origin.
	CenterOffset float32

	// ClampedSamples counts invalid disparity samples that were clamped to
	// the far plane.
	ClampedSamples int
}

// SameShape reports whether m and other share a grid shape, and therefore
// an index buffer.
func (m *Mesh) SameShape(other *Mesh) bool {
	if m == nil || other == nil {
		return false
	}
	return m.GridWidth == other.GridWidth && m.GridHeight == other.GridHeight
}
