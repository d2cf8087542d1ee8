// Package config loads the engine and demo settings from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/osmike/pacer/internal/domain"
)

// Config holds the settings of the pacer engine and its demo collaborators.
type Config struct {
	FrameCap  int           `yaml:"frame_cap"`  // Frames per second; 0 or less is uncapped
	IdlePoll  time.Duration `yaml:"idle_poll"`  // Upper bound on a worker's sleep between polls
	LogLevel  string        `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string        `yaml:"log_format"` // Log format: text, json
	Demo      Demo          `yaml:"demo"`
}

// Demo configures the headless software window used by the CLI.
type Demo struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Frames int    `yaml:"frames"` // The window requests close after this many frames
	Output string `yaml:"output"` // PNG path for the last frame; empty disables
	Shapes int    `yaml:"shapes"` // Number of animated shapes in the scene
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		FrameCap:  60,
		IdlePoll:  domain.DEFAULT_IDLE_POLL,
		LogLevel:  "info",
		LogFormat: "text",
		Demo: Demo{
			Width:  320,
			Height: 240,
			Frames: 120,
			Shapes: 8,
		},
	}
}

// Load reads path over the defaults. Keys absent from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.IdlePoll < 0 {
		return fmt.Errorf("idle_poll must not be negative, got %s", c.IdlePoll)
	}
	if c.Demo.Width <= 0 || c.Demo.Height <= 0 {
		return fmt.Errorf("demo size must be positive, got %dx%d", c.Demo.Width, c.Demo.Height)
	}
	if c.Demo.Frames < 0 {
		return fmt.Errorf("demo frames must not be negative, got %d", c.Demo.Frames)
	}
	return nil
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
