// Package capture provides depth frame sources and capture bookkeeping.
package capture

import (
	"errors"
	"fmt"
)

// Position is the side of the device a camera faces.
type Position int

const (
	PositionBack Position = iota
	PositionFront
)

func (p Position) String() string {
	if p == PositionFront {
		return "front"
	}
	return "back"
}

// DeviceKind is the type of camera module.
type DeviceKind int

const (
	WideAngle DeviceKind = iota
	DualCamera
	TrueDepth
	Synthetic
)

func (k DeviceKind) String() string {
	switch k {
	case DualCamera:
		return "dual"
	case TrueDepth:
		return "truedepth"
	case Synthetic:
		return "synthetic"
	}
	return "wide"
}

// Device describes one camera.
type Device struct {
	Name          string
	Kind          DeviceKind
	Position      Position
	DepthDelivery bool
}

// DeviceInfo is what the platform reports about available cameras.
type DeviceInfo struct {
	Devices []Device
}

// Capabilities is the negotiated capture configuration. It is computed once
// and then read as plain values.
type Capabilities struct {
	Device        Device
	DepthDelivery bool
	FrontFacing   bool
	CanToggle     bool
}

// ErrNoDevice is returned by Negotiate when no camera is available.
var ErrNoDevice = errors.New("capture: no camera device")

// Negotiate picks the preferred camera: a front depth camera, then a rear
// dual camera, then any depth-capable device, then the first device.
// Toggling is possible when cameras exist on both sides.
func Negotiate(info DeviceInfo) (Capabilities, error) {
	if len(info.Devices) == 0 {
		return Capabilities{}, ErrNoDevice
	}

	chosen, ok := find(info.Devices, func(d Device) bool {
		return d.Kind == TrueDepth && d.Position == PositionFront
	})
	if !ok {
		chosen, ok = find(info.Devices, func(d Device) bool {
			return d.Kind == DualCamera && d.Position == PositionBack
		})
	}
	if !ok {
		chosen, ok = find(info.Devices, func(d Device) bool { return d.DepthDelivery })
	}
	if !ok {
		chosen = info.Devices[0]
	}

	positions := map[Position]bool{}
	for _, d := range info.Devices {
		positions[d.Position] = true
	}
	return Capabilities{
		Device:        chosen,
		DepthDelivery: chosen.DepthDelivery,
		FrontFacing:   chosen.Position == PositionFront,
		CanToggle:     len(positions) > 1,
	}, nil
}

func find(devices []Device, match func(Device) bool) (Device, bool) {
	for _, d := range devices {
		if match(d) {
			return d, true
		}
	}
	return Device{}, false
}

// Toggle returns the capabilities for the best device on the other side.
func Toggle(info DeviceInfo, current Capabilities) (Capabilities, error) {
	if !current.CanToggle {
		return current, fmt.Errorf("capture: %s camera has no counterpart", current.Device.Position)
	}
	want := PositionFront
	if current.FrontFacing {
		want = PositionBack
	}
	var side []Device
	for _, d := range info.Devices {
		if d.Position == want {
			side = append(side, d)
		}
	}
	caps, err := Negotiate(DeviceInfo{Devices: side})
	if err != nil {
		return current, err
	}
	caps.CanToggle = true
	return caps, nil
}

// SyntheticRig describes the stand-in cameras behind SyntheticSource: a
// front depth camera and a rear dual camera.
func SyntheticRig() DeviceInfo {
	return DeviceInfo{Devices: []Device{
		{Name: "synthetic-front", Kind: TrueDepth, Position: PositionFront, DepthDelivery: true},
		{Name: "synthetic-back", Kind: DualCamera, Position: PositionBack, DepthDelivery: true},
	}}
}
