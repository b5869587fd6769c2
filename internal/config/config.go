// Package config handles viewer configuration loading and management.
package config

import (
	"github.com/Faultbox/xplo/internal/capture"
	"github.com/Faultbox/xplo/internal/engine/camera"
	"github.com/Faultbox/xplo/internal/engine/mesh"
	"github.com/Faultbox/xplo/internal/engine/motion"
)

// Source modes.
const (
	SourceLive  = "live"
	SourcePhoto = "photo"
)

// Config holds all viewer settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Mesh     mesh.Config    `yaml:"mesh"`
	Camera   CameraConfig   `yaml:"camera"`
	Motion   motion.Config  `yaml:"motion"`
	Source   SourceConfig   `yaml:"source"`
	Capture  CaptureConfig  `yaml:"capture"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width          int        `yaml:"width"`
	Height         int        `yaml:"height"`
	Fullscreen     bool       `yaml:"fullscreen"`
	VSync          bool       `yaml:"vsync"`
	MaxTextureSize int        `yaml:"max_texture_size"` // 0 = ask the driver
	ClearColor     [4]float32 `yaml:"clear_color,flow"`
}

// CameraConfig holds projection and per-subject viewing distances.
type CameraConfig struct {
	FOVDegrees float32          `yaml:"fov"`
	Near       float32          `yaml:"near"`
	Far        float32          `yaml:"far"`
	Distances  camera.Distances `yaml:"distances"`
}

// SourceConfig selects where depth frames come from.
type SourceConfig struct {
	Mode      string                  `yaml:"mode"` // live | photo
	PhotoPath string                  `yaml:"photo_path"`
	Synthetic capture.SyntheticConfig `yaml:"synthetic"`
}

// CaptureConfig holds snapshot settings.
type CaptureConfig struct {
	SnapshotDir string `yaml:"snapshot_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
			ClearColor: [4]float32{0.05, 0.05, 0.08, 1},
		},
		Mesh: mesh.DefaultConfig(),
		Camera: CameraConfig{
			FOVDegrees: camera.DefaultFOVDegrees,
			Near:       camera.DefaultNear,
			Far:        camera.DefaultFar,
			Distances:  camera.DefaultDistances(),
		},
		Motion: motion.DefaultConfig(),
		Source: SourceConfig{
			Mode:      SourceLive,
			Synthetic: capture.DefaultSyntheticConfig(),
		},
		Capture: CaptureConfig{
			SnapshotDir: "snapshots",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
