package motion

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/chewxy/math32"
)

// WiggleConfig describes the passive parallax circle.
type WiggleConfig struct {
	Radius       float32       `yaml:"radius"`
	AngularRate  float32       `yaml:"angular_rate"` // Radians per second
	TickInterval time.Duration `yaml:"tick_interval"`
}

// DefaultWiggleConfig returns a gentle circle at 60 ticks per second.
func DefaultWiggleConfig() WiggleConfig {
	return WiggleConfig{
		Radius:       3,
		AngularRate:  2 * math32.Pi / 3,
		TickInterval: time.Second / 60,
	}
}

// Offset returns the circle position after elapsed time.
func (c WiggleConfig) Offset(elapsed time.Duration) (dx, dy float32) {
	theta := c.AngularRate * float32(elapsed.Seconds())
	s, co := math32.Sincos(theta)
	return c.Radius * co, c.Radius * s
}

// Wiggler calls set with circle offsets on a fixed-rate ticker that is
// independent of the display refresh.
type Wiggler struct {
	clock clock.Clock
	cfg   WiggleConfig
	set   func(dx, dy float32)

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewWiggler creates a stopped wiggler.
func NewWiggler(clk clock.Clock, cfg WiggleConfig, set func(dx, dy float32)) *Wiggler {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultWiggleConfig().TickInterval
	}
	return &Wiggler{clock: clk, cfg: cfg, set: set}
}

// Running reports whether the ticker goroutine is active.
func (w *Wiggler) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stop != nil
}

// Start launches the ticker. Starting a running wiggler does nothing.
func (w *Wiggler) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		return
	}
	w.stop = make(chan struct{})
	w.done = make(chan struct{})

	ticker := w.clock.Ticker(w.cfg.TickInterval)
	start := w.clock.Now()
	go w.run(ticker, start, w.stop, w.done)
}

func (w *Wiggler) run(ticker *clock.Ticker, start time.Time, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			w.set(w.cfg.Offset(now.Sub(start)))
		}
	}
}

// Stop halts the ticker and waits for its goroutine to exit. It reports
// whether the wiggler was running.
func (w *Wiggler) Stop() bool {
	w.mu.Lock()
	stop, done := w.stop, w.done
	w.stop, w.done = nil, nil
	w.mu.Unlock()

	if stop == nil {
		return false
	}
	close(stop)
	<-done
	return true
}
