// Package camera provides the virtual camera used to view reconstructed meshes.
package camera

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Default projection parameters.
const (
	DefaultFOVDegrees = 55.0
	DefaultNear       = 0.01
	DefaultFar        = 500.0
)

// VirtualCamera accumulates a projection * view transform.
//
// SetProjection starts a new accumulation; Translate and Rotate then compose
// onto the right of the accumulated matrix, so the call order
// SetProjection, Translate, Rotate yields P * T * Rx * Ry * Rz.
type VirtualCamera struct {
	projection mgl32.Mat4
	matrix     mgl32.Mat4

	fovY   float32 // Radians
	aspect float32
	near   float32
	far    float32
}

// New creates a camera with the default perspective for the given aspect
// ratio (width / height).
func New(aspect float32) *VirtualCamera {
	c := &VirtualCamera{}
	c.SetProjection(mgl32.DegToRad(DefaultFOVDegrees), aspect, DefaultNear, DefaultFar)
	return c
}

// SetProjection replaces the projection and resets the accumulated matrix to it.
// fovY is in radians.
func (c *VirtualCamera) SetProjection(fovY, aspect, near, far float32) {
	if aspect <= 0 {
		aspect = 1
	}
	c.fovY = fovY
	c.aspect = aspect
	c.near = near
	c.far = far
	c.projection = mgl32.Perspective(fovY, aspect, near, far)
	c.matrix = c.projection
}

// SetAspect keeps the field of view and clip planes and changes the aspect ratio.
func (c *VirtualCamera) SetAspect(aspect float32) {
	c.SetProjection(c.fovY, aspect, c.near, c.far)
}

// Aspect returns the current aspect ratio.
func (c *VirtualCamera) Aspect() float32 {
	return c.aspect
}

// Reset discards accumulated transforms, leaving only the projection.
func (c *VirtualCamera) Reset() {
	c.matrix = c.projection
}

// Translate composes a translation onto the accumulated matrix.
func (c *VirtualCamera) Translate(x, y, z float32) {
	c.matrix = c.matrix.Mul4(mgl32.Translate3D(x, y, z))
}

// Rotate composes rotations about x, then y, then z (radians).
func (c *VirtualCamera) Rotate(x, y, z float32) {
	c.matrix = c.matrix.
		Mul4(mgl32.HomogRotate3DX(x)).
		Mul4(mgl32.HomogRotate3DY(y)).
		Mul4(mgl32.HomogRotate3DZ(z))
}

// Projection returns the projection matrix alone.
func (c *VirtualCamera) Projection() mgl32.Mat4 {
	return c.projection
}

// Matrix returns the accumulated projection * view matrix.
func (c *VirtualCamera) Matrix() mgl32.Mat4 {
	return c.matrix
}

// Compose builds projection * T(position) * Rx * Ry * Rz from scratch.
func Compose(position, rotation mgl32.Vec3, projection mgl32.Mat4) mgl32.Mat4 {
	return projection.
		Mul4(mgl32.Translate3D(position.X(), position.Y(), position.Z())).
		Mul4(mgl32.HomogRotate3DX(rotation.X())).
		Mul4(mgl32.HomogRotate3DY(rotation.Y())).
		Mul4(mgl32.HomogRotate3DZ(rotation.Z()))
}
