package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/xplo/internal/engine/mesh"
)

const (
	appDir   = "xplo"
	fileName = "config.yaml"
)

// Load builds the configuration from defaults, then the first config file
// found, then command-line flags. The result is validated.
func Load() (*Config, error) {
	cfg := Default()

	path := ConfigPath()
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// searchPaths lists config file candidates, most specific first.
func searchPaths() []string {
	return []string{
		"xplo.yaml",
		fileName,
		filepath.Join(ConfigDir(), fileName),
	}
}

func findConfigFile() string {
	for _, path := range searchPaths() {
		if st, err := os.Stat(path); err == nil && st.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

// ConfigDir is the per-user directory holding config.yaml. It falls back to
// ./.xplo when the platform reports no user config location.
func ConfigDir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, appDir)
	}
	dir, err := filepath.Abs("." + appDir)
	if err != nil {
		return "." + appDir
	}
	return dir
}

// loadFromFile overlays the YAML at path onto cfg. Keys the config does not
// know are rejected so typos do not silently fall back to defaults. An empty
// file leaves cfg unchanged.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports every setting the viewer cannot run with.
func (c *Config) Validate() error {
	var err error
	if c.Graphics.Width <= 0 || c.Graphics.Height <= 0 {
		err = multierr.Append(err, fmt.Errorf("graphics: window size %dx%d", c.Graphics.Width, c.Graphics.Height))
	}
	if c.Mesh.GridWidth < mesh.MinGridSize || c.Mesh.GridHeight < mesh.MinGridSize {
		err = multierr.Append(err, &mesh.DegenerateGridError{Width: c.Mesh.GridWidth, Height: c.Mesh.GridHeight})
	}
	if !(c.Mesh.MaxDepth > 0) {
		err = multierr.Append(err, fmt.Errorf("mesh: max_depth %v must be positive", c.Mesh.MaxDepth))
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		err = multierr.Append(err, fmt.Errorf("camera: clip planes near=%v far=%v", c.Camera.Near, c.Camera.Far))
	}
	if c.Motion.Damping < 0 || c.Motion.Damping >= 1 {
		err = multierr.Append(err, fmt.Errorf("motion: damping %v must be in [0, 1)", c.Motion.Damping))
	}
	switch c.Source.Mode {
	case SourceLive:
	case SourcePhoto:
		if c.Source.PhotoPath == "" {
			err = multierr.Append(err, fmt.Errorf("source: photo mode needs photo_path"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("source: unknown mode %q", c.Source.Mode))
	}
	return err
}
