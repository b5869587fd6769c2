// depthtool is a CLI utility for working with XPLO depth photos.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image/png"
	"os"
	"time"

	"github.com/Faultbox/xplo/internal/capture"
	"github.com/Faultbox/xplo/internal/depth"
	"github.com/Faultbox/xplo/internal/depthio"
	"github.com/Faultbox/xplo/internal/engine/mesh"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "gray":
		cmdGray(args)
	case "synth":
		cmdSynth(args)
	case "mesh":
		cmdMesh(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`depthtool - XPLO depth photo utility

Usage:
  depthtool <command> [options]

Commands:
  info <photo>                 Show image and depth information
  gray <photo> <out.png>       Write the disparity map as a grayscale image
  synth [options] <out.png>    Write a synthetic depth photo
  mesh [options] <photo>       Reconstruct a mesh and print its statistics

Examples:
  depthtool info portrait.png
  depthtool gray portrait.png portrait-depth.png
  depthtool synth -width 640 -height 480 -orientation right scene.png
  depthtool mesh -grid 100 portrait.png`)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: depthtool info <photo>")
		os.Exit(1)
	}

	f, err := depthio.ReadFile(args[0])
	if f == nil {
		fail(err)
	}

	b := f.Color.Bounds()
	fmt.Printf("File:        %s\n", args[0])
	fmt.Printf("Color:       %dx%d\n", b.Dx(), b.Dy())
	if errors.Is(err, depthio.ErrMissingDepthData) {
		fmt.Println("Depth:       none (2-D only)")
		return
	}

	m := f.Disparity
	fmt.Printf("Depth:       %dx%d\n", m.Width(), m.Height())
	fmt.Printf("Orientation: %s\n", f.Orientation)
	fmt.Printf("Camera:      %s\n", facing(f.FrontFacing))
	if !f.Captured.IsZero() {
		fmt.Printf("Captured:    %s\n", f.Captured.Format(time.RFC3339))
	}
	if lo, hi, ok := m.MinMax(); ok {
		fmt.Printf("Disparity:   %.4f .. %.4f\n", lo, hi)
	} else {
		fmt.Println("Disparity:   no valid samples")
	}
}

func facing(front bool) string {
	if front {
		return "front"
	}
	return "rear"
}

func cmdGray(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: depthtool gray <photo> <out.png>")
		os.Exit(1)
	}

	f, err := depthio.ReadFile(args[0])
	if err != nil {
		fail(err)
	}

	out, err := os.Create(args[1])
	if err != nil {
		fail(err)
	}
	defer out.Close()

	if err := png.Encode(out, f.Disparity.Gray()); err != nil {
		fail(err)
	}
	fmt.Printf("Wrote %s\n", args[1])
}

func cmdSynth(args []string) {
	def := capture.DefaultSyntheticConfig()
	fs := flag.NewFlagSet("synth", flag.ExitOnError)
	width := fs.Int("width", def.Width, "Depth map width")
	height := fs.Int("height", def.Height, "Depth map height")
	orientation := fs.String("orientation", def.Orientation.String(), "Sensor orientation (up, down, left, right)")
	front := fs.Bool("front", def.FrontFacing, "Mark as a front camera photo")
	at := fs.Duration("t", 0, "Animation time of the synthetic scene")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: depthtool synth [options] <out.png>")
		os.Exit(1)
	}

	o, err := depth.ParseOrientation(*orientation)
	if err != nil {
		fail(err)
	}
	cfg := capture.SyntheticConfig{
		Width:       *width,
		Height:      *height,
		FPS:         def.FPS,
		Orientation: o,
		FrontFacing: *front,
	}
	f, err := capture.SyntheticFrame(cfg, *at)
	if err != nil {
		fail(err)
	}
	f.Captured = time.Now()

	if err := depthio.WriteFile(fs.Arg(0), f); err != nil {
		fail(err)
	}
	fmt.Printf("Wrote %s (%dx%d, %s, %s)\n", fs.Arg(0), *width, *height, o, facing(*front))
}

func cmdMesh(args []string) {
	def := mesh.DefaultConfig()
	fs := flag.NewFlagSet("mesh", flag.ExitOnError)
	grid := fs.Int("grid", def.GridWidth, "Sampling grid size (both axes)")
	maxDepth := fs.Float64("max-depth", float64(def.MaxDepth), "Far plane for invalid or distant samples")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: depthtool mesh [options] <photo>")
		os.Exit(1)
	}

	f, err := depthio.ReadFile(fs.Arg(0))
	if err != nil {
		fail(err)
	}

	cfg := def
	cfg.GridWidth, cfg.GridHeight = *grid, *grid
	b, err := mesh.NewBuilder(cfg)
	if err != nil {
		fail(err)
	}

	start := time.Now()
	m, err := b.Build(f.Disparity, f.Orientation, f.FrontFacing, float32(*maxDepth))
	if err != nil {
		fail(err)
	}
	elapsed := time.Since(start)

	fmt.Printf("Grid:          %dx%d\n", m.GridWidth, m.GridHeight)
	fmt.Printf("Vertices:      %d\n", len(m.Vertices))
	fmt.Printf("Indices:       %d (triangle strip)\n", len(m.Indices))
	fmt.Printf("Depth range:   %.2f .. %.2f\n", m.ZMin, m.ZMax)
	fmt.Printf("Center offset: %.2f\n", m.CenterOffset)
	fmt.Printf("Clamped:       %d\n", m.ClampedSamples)
	fmt.Printf("Build time:    %s\n", elapsed)
}
