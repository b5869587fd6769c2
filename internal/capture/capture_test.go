package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Faultbox/xplo/internal/depth"
	"github.com/Faultbox/xplo/internal/depthio"
)

func TestNegotiate(t *testing.T) {
	front := Device{Name: "front", Kind: TrueDepth, Position: PositionFront, DepthDelivery: true}
	dual := Device{Name: "dual", Kind: DualCamera, Position: PositionBack, DepthDelivery: true}
	wide := Device{Name: "wide", Kind: WideAngle, Position: PositionBack}
	lidar := Device{Name: "other", Kind: WideAngle, Position: PositionBack, DepthDelivery: true}

	tests := []struct {
		name       string
		devices    []Device
		wantName   string
		wantDepth  bool
		wantFront  bool
		wantToggle bool
	}{
		{"front depth preferred", []Device{wide, dual, front}, "front", true, true, true},
		{"rear dual", []Device{wide, dual}, "dual", true, false, false},
		{"any depth", []Device{wide, lidar}, "other", true, false, false},
		{"no depth", []Device{wide}, "wide", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps, err := Negotiate(DeviceInfo{Devices: tt.devices})
			if err != nil {
				t.Fatal(err)
			}
			if caps.Device.Name != tt.wantName {
				t.Errorf("device: got %q, want %q", caps.Device.Name, tt.wantName)
			}
			if caps.DepthDelivery != tt.wantDepth || caps.FrontFacing != tt.wantFront || caps.CanToggle != tt.wantToggle {
				t.Errorf("caps: got depth=%v front=%v toggle=%v", caps.DepthDelivery, caps.FrontFacing, caps.CanToggle)
			}
		})
	}

	if _, err := Negotiate(DeviceInfo{}); !errors.Is(err, ErrNoDevice) {
		t.Errorf("empty device list: got %v", err)
	}
}

func TestToggle(t *testing.T) {
	info := DeviceInfo{Devices: []Device{
		{Name: "front", Kind: TrueDepth, Position: PositionFront, DepthDelivery: true},
		{Name: "dual", Kind: DualCamera, Position: PositionBack, DepthDelivery: true},
	}}
	caps, err := Negotiate(info)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Toggle(info, caps)
	if err != nil {
		t.Fatal(err)
	}
	if back.FrontFacing || back.Device.Name != "dual" || !back.CanToggle {
		t.Errorf("toggled caps: %+v", back)
	}

	single := DeviceInfo{Devices: info.Devices[:1]}
	caps, _ = Negotiate(single)
	if _, err := Toggle(single, caps); err == nil {
		t.Error("toggle with one camera should fail")
	}
}

func TestSyntheticRig(t *testing.T) {
	rig := SyntheticRig()
	caps, err := Negotiate(rig)
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if !caps.FrontFacing || !caps.CanToggle || !caps.DepthDelivery {
		t.Errorf("front depth camera expected first, got %+v", caps)
	}
	back, err := Toggle(rig, caps)
	if err != nil || back.FrontFacing || back.Device.Kind != DualCamera {
		t.Errorf("Toggle = %+v, %v", back, err)
	}
}

func TestInFlightClampsAtZero(t *testing.T) {
	var c InFlight
	if c.Decrement() != 0 || c.Count() != 0 {
		t.Error("decrement of an idle counter should stay at zero")
	}
	c.Increment()
	c.Increment()
	if !c.Busy() || c.Count() != 2 {
		t.Errorf("count: got %d, want 2", c.Count())
	}
	c.Decrement()
	c.Decrement()
	c.Decrement()
	if c.Busy() {
		t.Errorf("count after extra decrement: %d", c.Count())
	}
}

func TestInFlightConcurrent(t *testing.T) {
	var c InFlight
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Increment()
				c.Decrement()
			}
		}()
	}
	wg.Wait()
	if c.Count() != 0 {
		t.Errorf("balanced increments left count %d", c.Count())
	}
}

func TestSyntheticFrame(t *testing.T) {
	cfg := SyntheticConfig{Width: 40, Height: 20, FPS: 10, Orientation: depth.Right, FrontFacing: true}
	f, err := SyntheticFrame(cfg, 0)
	if err != nil {
		t.Fatal(err)
	}
	if f.Disparity.Width() != 40 || f.Disparity.Height() != 20 {
		t.Fatalf("dims: %dx%d", f.Disparity.Width(), f.Disparity.Height())
	}
	if f.Orientation != depth.Right || !f.FrontFacing {
		t.Error("frame should carry the configured orientation and facing")
	}
	if f.Color.Bounds() != image.Rect(0, 0, 40, 20) {
		t.Errorf("color bounds: %v", f.Color.Bounds())
	}

	// At t=0 the bump sits at (0.75w, 0.5h) and is the nearest point.
	lo, hi, ok := f.Disparity.MinMax()
	if !ok || lo <= 0 {
		t.Fatalf("all samples should be valid, min %f", lo)
	}
	if peak := f.Disparity.Disparity(30, 10); peak != hi {
		t.Errorf("peak disparity at bump centre: got %f, max %f", peak, hi)
	}

	later, err := SyntheticFrame(cfg, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if later.Disparity.Disparity(30, 10) == f.Disparity.Disparity(30, 10) {
		t.Error("scene should move over time")
	}
}

func TestSyntheticRun(t *testing.T) {
	mock := clock.NewMock()
	src := NewSynthetic(SyntheticConfig{Width: 8, Height: 6, FPS: 10}, mock, nil)
	if !src.Live() {
		t.Error("synthetic source should be live")
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan depth.Frame, 1)
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	var got depth.Frame
	deadline := time.After(2 * time.Second)
wait:
	for {
		mock.Add(100 * time.Millisecond)
		select {
		case got = <-out:
			break wait
		case <-deadline:
			t.Fatal("no frame received")
		default:
		}
	}
	if got.Disparity == nil || got.Captured.IsZero() {
		t.Error("streamed frame should carry disparity and capture time")
	}

	// The consumer stops reading; extra ticks are dropped, not queued.
	for i := 0; i < 5; i++ {
		mock.Add(100 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run: got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if src.Dropped() == 0 {
		t.Error("ticks with a full channel should be counted as dropped")
	}
}

func TestPhotoFile(t *testing.T) {
	dir := t.TempDir()
	f, err := SyntheticFrame(DefaultSyntheticConfig(), 0)
	if err != nil {
		t.Fatal(err)
	}
	withDepth := filepath.Join(dir, "depth.png")
	if err := depthio.WriteFile(withDepth, f); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	flat := filepath.Join(dir, "flat.png")
	if err := os.WriteFile(flat, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	out := make(chan depth.Frame, 1)
	src := PhotoFile{Path: withDepth}
	if src.Live() {
		t.Error("photo source should not be live")
	}
	if err := src.Run(context.Background(), out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := <-out; !got.HasDepth() {
		t.Error("photo frame should carry depth")
	}

	err = PhotoFile{Path: flat}.Run(context.Background(), out)
	if !errors.Is(err, depthio.ErrMissingDepthData) {
		t.Errorf("flat photo: got %v, want ErrMissingDepthData", err)
	}
	if got := <-out; got.HasDepth() || got.Color == nil {
		t.Error("flat photo should be delivered color-only")
	}

	if err := (PhotoFile{Path: filepath.Join(dir, "nope.png")}).Run(context.Background(), out); err == nil {
		t.Error("missing file should fail")
	}
}
