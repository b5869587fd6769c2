// Package motion integrates gesture input into virtual camera state.
package motion

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/Faultbox/xplo/internal/engine/camera"
)

// Reference tuning values.
const (
	DefaultVelocityScale = 0.005 // pan pixels/s -> rad/s
	DefaultDamping       = 0.98  // per-frame angular velocity decay
	DefaultSnapThreshold = 0.01  // rad/s below which rotation stops
	DefaultPinchScale    = 10.0  // pinch delta -> z translation
)

// Config holds motion tuning.
type Config struct {
	VelocityScale float32      `yaml:"velocity_scale"`
	Damping       float32      `yaml:"damping"`
	SnapThreshold float32      `yaml:"snap_threshold"`
	PinchScale    float32      `yaml:"pinch_scale"`
	Wiggle        WiggleConfig `yaml:"wiggle"`
}

// DefaultConfig returns the reference motion tuning.
func DefaultConfig() Config {
	return Config{
		VelocityScale: DefaultVelocityScale,
		Damping:       DefaultDamping,
		SnapThreshold: DefaultSnapThreshold,
		PinchScale:    DefaultPinchScale,
		Wiggle:        DefaultWiggleConfig(),
	}
}

// State is a point-in-time copy of the controller.
type State struct {
	Position        mgl32.Vec3
	Rotation        mgl32.Vec3
	AngularVelocity mgl32.Vec2
	Wiggling        bool
}

// Controller owns camera position, rotation and angular velocity.
//
// Gesture handlers run on the input goroutine and the render loop calls
// Advance and Snapshot. Every scalar is an independent atomic; readers may
// see a mix of old and new fields for one frame, which is harmless because
// no invariant spans fields.
type Controller struct {
	cfg Config
	log *zap.Logger

	posX, posY, posZ atomic.Float32
	rotX, rotY, rotZ atomic.Float32
	velX, velY       atomic.Float32

	// Wiggle base position, restored when wiggling stops.
	baseX, baseY atomic.Float32
	wiggle       *Wiggler
}

// NewController creates a controller at the given pose. clk drives the
// wiggle ticker; pass clock.New() outside tests.
func NewController(cfg Config, pose camera.Pose, clk clock.Clock, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{cfg: cfg, log: log}
	c.wiggle = NewWiggler(clk, cfg.Wiggle, func(dx, dy float32) {
		c.posX.Store(c.baseX.Load() + dx)
		c.posY.Store(c.baseY.Load() + dy)
	})
	c.store(pose)
	return c
}

// OnPan feeds a pan gesture velocity in pixels per second. Horizontal drag
// spins about the vertical axis and vertical drag about the horizontal one.
// Manual rotation takes over from wiggling.
func (c *Controller) OnPan(vx, vy float32) {
	c.StopWiggle()
	c.velX.Store(vx * c.cfg.VelocityScale)
	c.velY.Store(vy * c.cfg.VelocityScale)
}

// OnPinch zooms by moving the camera along z.
func (c *Controller) OnPinch(deltaScale float32) {
	c.StopWiggle()
	c.posZ.Add(deltaScale * c.cfg.PinchScale)
}

// Advance integrates angular velocity over dt and applies damping.
func (c *Controller) Advance(dt time.Duration) {
	secs := float32(dt.Seconds())
	if secs < 0 {
		secs = 0
	}
	vx := c.velX.Load()
	vy := c.velY.Load()
	c.rotX.Add(vy * secs)
	c.rotY.Add(vx * secs)

	// A pan that lands between Load and here wins over the decayed value.
	c.velX.CompareAndSwap(vx, c.decay(vx))
	c.velY.CompareAndSwap(vy, c.decay(vy))
}

func (c *Controller) decay(v float32) float32 {
	v *= c.cfg.Damping
	if math32.Abs(v) < c.cfg.SnapThreshold {
		return 0
	}
	return v
}

// Reset moves the camera to pose, stops wiggling and clears velocity.
// Call it whenever the viewed subject changes.
func (c *Controller) Reset(pose camera.Pose) {
	c.StopWiggle()
	c.store(pose)
	c.log.Debug("camera reset",
		zap.Float32("z", pose.Position.Z()),
	)
}

func (c *Controller) store(pose camera.Pose) {
	c.posX.Store(pose.Position.X())
	c.posY.Store(pose.Position.Y())
	c.posZ.Store(pose.Position.Z())
	c.rotX.Store(pose.Rotation.X())
	c.rotY.Store(pose.Rotation.Y())
	c.rotZ.Store(pose.Rotation.Z())
	c.velX.Store(0)
	c.velY.Store(0)
	c.baseX.Store(pose.Position.X())
	c.baseY.Store(pose.Position.Y())
}

// StartWiggle begins the passive parallax animation. It stops any inertial
// rotation so the two never fight over the camera.
func (c *Controller) StartWiggle() {
	if c.wiggle.Running() {
		return
	}
	c.velX.Store(0)
	c.velY.Store(0)
	c.baseX.Store(c.posX.Load())
	c.baseY.Store(c.posY.Load())
	c.wiggle.Start()
	c.log.Debug("wiggle started")
}

// StopWiggle halts the animation and puts the camera back on its base
// position. It returns once the ticker goroutine has exited.
func (c *Controller) StopWiggle() {
	if !c.wiggle.Stop() {
		return
	}
	c.posX.Store(c.baseX.Load())
	c.posY.Store(c.baseY.Load())
	c.log.Debug("wiggle stopped")
}

// ToggleWiggle flips the wiggle animation and reports whether it is now on.
func (c *Controller) ToggleWiggle() bool {
	if c.wiggle.Running() {
		c.StopWiggle()
		return false
	}
	c.StartWiggle()
	return true
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	return State{
		Position:        mgl32.Vec3{c.posX.Load(), c.posY.Load(), c.posZ.Load()},
		Rotation:        mgl32.Vec3{c.rotX.Load(), c.rotY.Load(), c.rotZ.Load()},
		AngularVelocity: mgl32.Vec2{c.velX.Load(), c.velY.Load()},
		Wiggling:        c.wiggle.Running(),
	}
}
