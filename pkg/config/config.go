// Package config provides configuration loading and management for ftbeamlab.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"ftbeamlab/pkg/beam"
)

// ErrInvalidConfig is wrapped by every error Validate returns.
var ErrInvalidConfig = errors.New("invalid configuration")

// Beam image normalization modes.
const (
	NormalizePeak  = "peak"
	NormalizeRange = "range"
)

// Scenario is a named beam preset offered to clients.
type Scenario struct {
	Name        string           `yaml:"name" json:"name"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	Units       []beam.ArrayUnit `yaml:"units" json:"units"`
	PhaseShifts []float64        `yaml:"phaseShifts,omitempty" json:"phase_shifts,omitempty"`
	Speed       float64          `yaml:"speed" json:"speed"`
	MapSize     float64          `yaml:"mapSize" json:"map_size"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// HTTP server parameters
	Server struct {
		// Listen is the TCP address the API binds to
		Listen string `yaml:"listen"`

		// AllowedOrigins lists the CORS origins; "*" allows any
		AllowedOrigins []string `yaml:"allowedOrigins"`

		// MaxUploadBytes bounds the size of one uploaded image
		MaxUploadBytes int64 `yaml:"maxUploadBytes"`
		// MaxImagePixels bounds width*height of one decoded image
		MaxImagePixels int `yaml:"maxImagePixels"`

		ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
		ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`

		// SessionIdleTimeout drops client sessions unused for this long; zero
		// keeps them forever
		SessionIdleTimeout time.Duration `yaml:"sessionIdleTimeout"`
	} `yaml:"server"`

	// Image mixer parameters
	Mixer struct {
		// Epsilon guards min-max normalization of mixed and preview images
		Epsilon float64 `yaml:"epsilon"`
	} `yaml:"mixer"`

	// Beam simulator parameters
	Beam struct {
		// Request defaults applied when a field is omitted
		Resolution int     `yaml:"resolution"`
		Speed      float64 `yaml:"speed"`
		MapSize    float64 `yaml:"mapSize"`

		// ProfileSamples is the default number of bearings in a profile
		ProfileSamples int `yaml:"profileSamples"`

		// Workers is the number of grid rows synthesized in parallel
		Workers int `yaml:"workers"`

		// Normalization selects how field magnitudes map to gray levels:
		// "peak" (v/max) or "range" (min-max)
		Normalization string  `yaml:"normalization"`
		PeakEpsilon   float64 `yaml:"peakEpsilon"`

		Limits beam.Limits `yaml:"limits"`
	} `yaml:"beam"`

	Scenarios []Scenario `yaml:"scenarios"`
}

// DefaultScenarios returns the built-in presets: a single 3 GHz array, a
// two-panel 28 GHz 5G layout and a 3.5 MHz ultrasound probe in tissue.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{
			Name:        "default",
			Description: "Single 32-element array at 3 GHz",
			Units:       []beam.ArrayUnit{{ID: 1, X: 2.5, Y: 2.5, Elements: 32, Frequency: 3e9}},
			Speed:       3e8,
			MapSize:     5.0,
		},
		{
			Name:        "5g",
			Description: "Two 16-element 28 GHz panels",
			Units: []beam.ArrayUnit{
				{ID: 1, X: 1.5, Y: 1.5, Elements: 16, Frequency: 28e9},
				{ID: 2, X: 3.5, Y: 3.5, Elements: 16, Frequency: 28e9},
			},
			Speed:   3e8,
			MapSize: 5.0,
		},
		{
			Name:        "ultrasound",
			Description: "32-element 3.5 MHz probe in soft tissue",
			Units:       []beam.ArrayUnit{{ID: 1, X: 0.05, Y: 0.02, Elements: 32, Frequency: 3.5e6}},
			Speed:       1540,
			MapSize:     0.1,
		},
	}
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Listen = ":8000"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Server.MaxUploadBytes = 32 << 20
	cfg.Server.MaxImagePixels = 4096 * 4096
	cfg.Server.ReadHeaderTimeout = 10 * time.Second
	cfg.Server.ShutdownTimeout = 15 * time.Second
	cfg.Server.SessionIdleTimeout = time.Hour

	cfg.Mixer.Epsilon = 1e-5

	cfg.Beam.Resolution = 200
	cfg.Beam.Speed = 3e8
	cfg.Beam.MapSize = 5.0
	cfg.Beam.ProfileSamples = 361
	cfg.Beam.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Beam.Normalization = NormalizePeak
	cfg.Beam.PeakEpsilon = 1e-9
	cfg.Beam.Limits = beam.Limits{MaxResolution: 1000, MaxElements: 256, MaxUnits: 16}

	cfg.Scenarios = DefaultScenarios()

	return cfg
}

// Validate reports every problem found in cfg.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Server.Listen == "" {
		bad("server.listen is empty")
	}
	if c.Server.MaxUploadBytes <= 0 {
		bad("server.maxUploadBytes must be positive, got %d", c.Server.MaxUploadBytes)
	}
	if c.Server.MaxImagePixels <= 0 {
		bad("server.maxImagePixels must be positive, got %d", c.Server.MaxImagePixels)
	}
	if c.Server.SessionIdleTimeout < 0 {
		bad("server.sessionIdleTimeout must not be negative")
	}
	if c.Mixer.Epsilon <= 0 {
		bad("mixer.epsilon must be positive, got %v", c.Mixer.Epsilon)
	}
	if c.Beam.Resolution < 1 {
		bad("beam.resolution must be at least 1, got %d", c.Beam.Resolution)
	}
	if !(c.Beam.Speed > 0) || !(c.Beam.MapSize > 0) {
		bad("beam.speed and beam.mapSize must be positive")
	}
	if c.Beam.ProfileSamples < 2 {
		bad("beam.profileSamples must be at least 2, got %d", c.Beam.ProfileSamples)
	}
	if c.Beam.Normalization != NormalizePeak && c.Beam.Normalization != NormalizeRange {
		bad("beam.normalization must be %q or %q, got %q", NormalizePeak, NormalizeRange, c.Beam.Normalization)
	}
	if c.Beam.PeakEpsilon <= 0 {
		bad("beam.peakEpsilon must be positive, got %v", c.Beam.PeakEpsilon)
	}
	l := c.Beam.Limits
	if l.MaxResolution < 0 || l.MaxElements < 0 || l.MaxUnits < 0 {
		bad("beam.limits must not be negative")
	}
	if l.MaxResolution > 0 && c.Beam.Resolution > l.MaxResolution {
		bad("beam.resolution %d exceeds beam.limits.maxResolution %d", c.Beam.Resolution, l.MaxResolution)
	}

	seen := make(map[string]bool)
	for i, s := range c.Scenarios {
		if s.Name == "" {
			bad("scenarios[%d] has no name", i)
		} else if seen[s.Name] {
			bad("duplicate scenario %q", s.Name)
		}
		seen[s.Name] = true
		for _, u := range s.Units {
			if err := u.Validate(); err != nil {
				bad("scenario %q: %v", s.Name, err)
			}
		}
	}

	return errors.Join(errs...)
}

// Scenario returns the preset with the given name.
func (c *Config) Scenario(name string) (Scenario, bool) {
	for _, s := range c.Scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
