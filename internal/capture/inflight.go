package capture

import "go.uber.org/atomic"

// InFlight counts captures that have started but not finished saving.
// Completion callbacks may run on any goroutine.
type InFlight struct {
	n atomic.Int64
}

// Increment records a started capture and returns the new count.
func (c *InFlight) Increment() int64 {
	return c.n.Inc()
}

// Decrement records a finished capture and returns the new count, clamped
// at zero.
func (c *InFlight) Decrement() int64 {
	for {
		cur := c.n.Load()
		if cur <= 0 {
			return 0
		}
		if c.n.CompareAndSwap(cur, cur-1) {
			return cur - 1
		}
	}
}

// Count returns the number of captures in flight.
func (c *InFlight) Count() int64 {
	return c.n.Load()
}

// Busy reports whether any capture is in flight.
func (c *InFlight) Busy() bool {
	return c.n.Load() > 0
}
