package camera

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Subject identifies what the camera is framing. Each subject has its own
// empirically tuned viewing distance.
type Subject int

const (
	// SubjectPhoto is a stored depth photo from the front camera.
	SubjectPhoto Subject = iota
	// SubjectRearPhoto is a stored depth photo from the rear dual camera,
	// whose wider baseline puts the surface closer.
	SubjectRearPhoto
	// SubjectLivePreview is the live depth stream.
	SubjectLivePreview
)

// Default viewing distances along z. The reconstructed surface sits in
// front of a camera looking down -z, so these are negative.
const (
	PhotoDistance       float32 = -150
	RearCameraDistance  float32 = -50
	LivePreviewDistance float32 = -200
)

// Pose is a camera position and Euler rotation (radians).
type Pose struct {
	Position mgl32.Vec3
	Rotation mgl32.Vec3
}

// Distances holds the viewing distance for each subject.
type Distances struct {
	Photo       float32 `yaml:"photo"`
	RearPhoto   float32 `yaml:"rear_photo"`
	LivePreview float32 `yaml:"live_preview"`
}

// DefaultDistances returns the reference distances.
func DefaultDistances() Distances {
	return Distances{
		Photo:       PhotoDistance,
		RearPhoto:   RearCameraDistance,
		LivePreview: LivePreviewDistance,
	}
}

// DefaultPose returns the pose a subject is first shown from at the
// reference distances.
func DefaultPose(s Subject) Pose {
	return DefaultDistances().Pose(s)
}

// Pose returns the initial pose for s. The 180 degree yaw and roll turn the
// reconstructed surface, whose convention places the sensor behind the
// scene, upright and facing the viewer.
func (d Distances) Pose(s Subject) Pose {
	z := d.Photo
	switch s {
	case SubjectRearPhoto:
		z = d.RearPhoto
	case SubjectLivePreview:
		z = d.LivePreview
	}
	return Pose{
		Position: mgl32.Vec3{0, 0, z},
		Rotation: mgl32.Vec3{0, math32.Pi, math32.Pi},
	}
}

// SubjectFor picks the subject for a frame source.
func SubjectFor(live, frontFacing bool) Subject {
	switch {
	case live:
		return SubjectLivePreview
	case frontFacing:
		return SubjectPhoto
	default:
		return SubjectRearPhoto
	}
}
