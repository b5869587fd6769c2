package input

// Gesture tuning.
const (
	DefaultSmoothing      = 0.5
	DefaultWheelStep      = 0.05
	DefaultReleaseTimeout = 100 // ms
)

// Gestures turns mouse drags into pan velocities in pixels per second and
// wheel notches into scale deltas. Timestamps are SDL
// millisecond ticks.
type Gestures struct {
	Smoothing      float32 // weight of the newest sample, in (0, 1]
	WheelStep      float32 // scale delta per wheel notch
	ReleaseTimeout uint32  // a drag idle this long ends with no velocity

	dragging bool
	lastTime uint32
	vx, vy   float32
}

// NewGestures returns a tracker with default tuning.
func NewGestures() *Gestures {
	return &Gestures{
		Smoothing:      DefaultSmoothing,
		WheelStep:      DefaultWheelStep,
		ReleaseTimeout: DefaultReleaseTimeout,
	}
}

// Dragging reports whether a drag is in progress.
func (g *Gestures) Dragging() bool {
	return g.dragging
}

// Press starts a drag.
func (g *Gestures) Press(ts uint32) {
	g.dragging = true
	g.lastTime = ts
	g.vx, g.vy = 0, 0
}

// Move records a drag step of (dx, dy) pixels and returns the smoothed
// velocity. ok is false when no drag is active.
func (g *Gestures) Move(dx, dy int32, ts uint32) (vx, vy float32, ok bool) {
	if !g.dragging {
		return 0, 0, false
	}
	elapsed := ts - g.lastTime
	if elapsed == 0 {
		elapsed = 1
	}
	ms := float32(elapsed)
	ix, iy := float32(dx)*1000/ms, float32(dy)*1000/ms

	if g.vx == 0 && g.vy == 0 {
		g.vx, g.vy = ix, iy
	} else {
		a := g.Smoothing
		g.vx = a*ix + (1-a)*g.vx
		g.vy = a*iy + (1-a)*g.vy
	}
	g.lastTime = ts
	return g.vx, g.vy, true
}

// Release ends a drag and returns the velocity the view should keep
// spinning with.
func (g *Gestures) Release(ts uint32) (vx, vy float32, ok bool) {
	if !g.dragging {
		return 0, 0, false
	}
	g.dragging = false
	if ts-g.lastTime > g.ReleaseTimeout {
		g.vx, g.vy = 0, 0
	}
	return g.vx, g.vy, true
}

// Wheel converts wheel notches into a pinch scale delta.
func (g *Gestures) Wheel(notches int32) float32 {
	return float32(notches) * g.WheelStep
}
