// Package config loads and saves midi2notes settings
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/james-see/midi2notes/pkg/converter"
	"github.com/james-see/midi2notes/pkg/logger"
	"github.com/james-see/midi2notes/pkg/notes"
	"github.com/james-see/midi2notes/pkg/render"
)

// ServerConfig holds API server settings
type ServerConfig struct {
	Port int `json:"port,omitempty"`
}

// RenderConfig holds piano-roll snapshot settings
type RenderConfig struct {
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	ScrollSpeed float64 `json:"scrollSpeed,omitempty"`
	PitchLow    float64 `json:"pitchLow,omitempty"`
	PitchHigh   float64 `json:"pitchHigh,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Mode     string       `json:"mode,omitempty"`
	Format   string       `json:"format,omitempty"`
	Sort     string       `json:"sort,omitempty"`
	Parallel bool         `json:"parallel,omitempty"`
	LogLevel string       `json:"logLevel,omitempty"`
	Server   ServerConfig `json:"server,omitempty"`
	Render   RenderConfig `json:"render,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	f := render.DefaultFrame()
	return &Config{
		Mode:     string(notes.ModeSeconds),
		Format:   string(converter.FormatJSON),
		Sort:     string(converter.SortNone),
		LogLevel: "warn",
		Server: ServerConfig{
			Port: 8080,
		},
		Render: RenderConfig{
			Width:       f.Width,
			Height:      f.Height,
			ScrollSpeed: f.ScrollSpeed,
			PitchLow:    f.PitchLow,
			PitchHigh:   f.PitchHigh,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "midi2notes"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from the default path, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. Missing fields keep their defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path, creating its directory
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks enumerated fields and ranges
func (c *Config) Validate() error {
	if _, err := notes.ParseMode(c.Mode); err != nil {
		return err
	}
	if _, err := converter.ParseFormat(c.Format); err != nil {
		return err
	}
	if _, err := converter.ParseSortOrder(c.Sort); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Server.Port)
	}
	if c.Render.PitchHigh <= c.Render.PitchLow {
		return fmt.Errorf("render pitch range is empty: %v..%v", c.Render.PitchLow, c.Render.PitchHigh)
	}
	return nil
}

// NotesOptions returns extraction options for this config
func (c *Config) NotesOptions() (notes.Options, error) {
	mode, err := notes.ParseMode(c.Mode)
	if err != nil {
		return notes.Options{}, err
	}
	return notes.Options{
		Mode:     mode,
		Parallel: c.Parallel,
		Logger:   logger.GetLogger(),
	}, nil
}

// Frame returns the renderer geometry for this config
func (c *Config) Frame() render.Frame {
	f := render.DefaultFrame()
	if c.Render.Width > 0 {
		f.Width = c.Render.Width
	}
	if c.Render.Height > 0 {
		f.Height = c.Render.Height
	}
	if c.Render.ScrollSpeed > 0 {
		f.ScrollSpeed = c.Render.ScrollSpeed
	}
	if c.Render.PitchHigh > c.Render.PitchLow {
		f.PitchLow = c.Render.PitchLow
		f.PitchHigh = c.Render.PitchHigh
	}
	return f
}
