// Package input handles SDL2 input events.
package input

import (
	"github.com/veandco/go-sdl2/sdl"
)

// EventType identifies a processed event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventAction
	EventPan
	EventPinch
)

// Action is a viewer command bound to a key.
type Action int

const (
	ActionNone Action = iota
	ActionToggleWiggle
	ActionCapture
	ActionToggleSource
	ActionToggleDevice
	ActionReset
	ActionScreenshot
	ActionQuit
)

// Event represents a processed input event.
type Event struct {
	Type   EventType
	Action Action
	Width  int
	Height int
	VX, VY float32 // pan velocity, pixels per second
	Scale  float32 // pinch delta
}

// DefaultBindings maps keys to viewer actions.
func DefaultBindings() map[sdl.Scancode]Action {
	return map[sdl.Scancode]Action{
		sdl.SCANCODE_W:      ActionToggleWiggle,
		sdl.SCANCODE_SPACE:  ActionToggleWiggle,
		sdl.SCANCODE_C:      ActionToggleSource,
		sdl.SCANCODE_S:      ActionCapture,
		sdl.SCANCODE_D:      ActionToggleDevice,
		sdl.SCANCODE_R:      ActionReset,
		sdl.SCANCODE_P:      ActionScreenshot,
		sdl.SCANCODE_ESCAPE: ActionQuit,
	}
}

// Input handles all input processing.
type Input struct {
	Bindings map[sdl.Scancode]Action
	gestures *Gestures
	events   []Event
}

// New creates a new input handler.
func New() *Input {
	return &Input{
		Bindings: DefaultBindings(),
		gestures: NewGestures(),
		events:   make([]Event, 0, 16),
	}
}

// Gestures exposes the drag and pinch tracker for tuning.
func (i *Input) Gestures() *Gestures {
	return i.gestures
}

// Update polls SDL events and converts them to viewer events.
// Returns true if the viewer should quit.
func (i *Input) Update() bool {
	i.events = i.events[:0]

	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		if i.handle(event) {
			return true
		}
	}
	return false
}

// handle translates one SDL event and reports whether it asks to quit.
func (i *Input) handle(event sdl.Event) bool {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		i.events = append(i.events, Event{Type: EventQuit})
		return true

	case *sdl.WindowEvent:
		if e.Event == sdl.WINDOWEVENT_RESIZED || e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
			i.events = append(i.events, Event{
				Type:   EventWindowResize,
				Width:  int(e.Data1),
				Height: int(e.Data2),
			})
		}

	case *sdl.KeyboardEvent:
		if e.Type != sdl.KEYDOWN || e.Repeat != 0 {
			break
		}
		action, ok := i.Bindings[e.Keysym.Scancode]
		if !ok {
			break
		}
		i.events = append(i.events, Event{Type: EventAction, Action: action})
		if action == ActionQuit {
			return true
		}

	case *sdl.MouseButtonEvent:
		if e.Button != sdl.BUTTON_LEFT {
			break
		}
		if e.Type == sdl.MOUSEBUTTONDOWN {
			i.gestures.Press(e.Timestamp)
			i.events = append(i.events, Event{Type: EventPan})
		} else if vx, vy, ok := i.gestures.Release(e.Timestamp); ok {
			i.events = append(i.events, Event{Type: EventPan, VX: vx, VY: vy})
		}

	case *sdl.MouseMotionEvent:
		if vx, vy, ok := i.gestures.Move(e.XRel, e.YRel, e.Timestamp); ok {
			i.events = append(i.events, Event{Type: EventPan, VX: vx, VY: vy})
		}

	case *sdl.MouseWheelEvent:
		y := e.Y
		if e.Direction == sdl.MOUSEWHEEL_FLIPPED {
			y = -y
		}
		if y != 0 {
			i.events = append(i.events, Event{Type: EventPinch, Scale: i.gestures.Wheel(y)})
		}

	case *sdl.MultiGestureEvent:
		// DDist is already a scale delta normalised to the touch surface.
		if e.NumFingers == 2 && e.DDist != 0 {
			i.events = append(i.events, Event{Type: EventPinch, Scale: e.DDist})
		}
	}
	return false
}

// Events returns the events from the last Update.
func (i *Input) Events() []Event {
	return i.events
}

// Triggered checks if an action was triggered this frame.
func (i *Input) Triggered(a Action) bool {
	for _, e := range i.events {
		if e.Type == EventAction && e.Action == a {
			return true
		}
	}
	return false
}
