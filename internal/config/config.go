package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file and default values.
const (
	EnvCornerThreshold = "PLACEMENT_MCP_CORNER_THRESHOLD"
	EnvConvertQuality  = "PLACEMENT_MCP_CONVERT_QUALITY"
	EnvMaxDimension    = "PLACEMENT_MCP_MAX_DIMENSION"
	EnvAnalysisTimeout = "PLACEMENT_MCP_ANALYSIS_TIMEOUT"
)

// Config holds the application configuration
type Config struct {
	Detector   DetectorConfig   `json:"detector" yaml:"detector"`
	Normalizer NormalizerConfig `json:"normalizer" yaml:"normalizer"`
	Placement  PlacementConfig  `json:"placement" yaml:"placement"`
	Session    SessionConfig    `json:"session" yaml:"session"`
}

// DetectorConfig holds configuration for corner detection. The corner
// threshold is the only tunable; blur radius and point confidence are fixed.
type DetectorConfig struct {
	CornerThreshold int `json:"corner_threshold" yaml:"corner_threshold"`
}

// NormalizerConfig holds configuration for format conversion and decoding
type NormalizerConfig struct {
	ConvertQuality float64 `json:"convert_quality" yaml:"convert_quality"`
	TempDir        string  `json:"temp_dir" yaml:"temp_dir"`
	MaxDimension   int     `json:"max_dimension" yaml:"max_dimension"`
}

// PlacementConfig holds the scales the controller starts from and resets to
type PlacementConfig struct {
	InitialScale float64 `json:"initial_scale" yaml:"initial_scale"`
	ResetScale   float64 `json:"reset_scale" yaml:"reset_scale"`
}

// SessionConfig holds per-session limits
type SessionConfig struct {
	AnalysisTimeoutMs int `json:"analysis_timeout_ms" yaml:"analysis_timeout_ms"`
}

// AnalysisTimeout returns the analysis budget, or 0 for no limit.
func (s SessionConfig) AnalysisTimeout() time.Duration {
	return time.Duration(s.AnalysisTimeoutMs) * time.Millisecond
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			CornerThreshold: 25,
		},
		Normalizer: NormalizerConfig{
			ConvertQuality: 0.8,
			TempDir:        "",
			MaxDimension:   0,
		},
		Placement: PlacementConfig{
			InitialScale: 3,
			ResetScale:   1,
		},
		Session: SessionConfig{
			AnalysisTimeoutMs: 30000,
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file on top of the defaults.
// The format is chosen by extension; anything but .yaml/.yml is read as JSON.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from the PLACEMENT_MCP_* environment variables.
// Unset variables leave the field untouched.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvCornerThreshold); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvCornerThreshold, err)
		}
		c.Detector.CornerThreshold = n
	}

	if v, ok := os.LookupEnv(EnvConvertQuality); ok {
		q, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvConvertQuality, err)
		}
		c.Normalizer.ConvertQuality = q
	}

	if v, ok := os.LookupEnv(EnvMaxDimension); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxDimension, err)
		}
		c.Normalizer.MaxDimension = n
	}

	if v, ok := os.LookupEnv(EnvAnalysisTimeout); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvAnalysisTimeout, err)
		}
		c.Session.AnalysisTimeoutMs = int(d / time.Millisecond)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Detector.CornerThreshold < 1 || c.Detector.CornerThreshold > 255 {
		return fmt.Errorf("detector.corner_threshold must be between 1 and 255")
	}

	if c.Normalizer.ConvertQuality <= 0 || c.Normalizer.ConvertQuality > 1 {
		return fmt.Errorf("normalizer.convert_quality must be in (0, 1]")
	}

	if c.Normalizer.MaxDimension < 0 {
		return fmt.Errorf("normalizer.max_dimension must not be negative")
	}

	if c.Placement.InitialScale < 0.2 || c.Placement.InitialScale > 5 {
		return fmt.Errorf("placement.initial_scale must be between 0.2 and 5")
	}

	if c.Placement.ResetScale < 0.2 || c.Placement.ResetScale > 3 {
		return fmt.Errorf("placement.reset_scale must be between 0.2 and 3")
	}

	if c.Session.AnalysisTimeoutMs < 0 {
		return fmt.Errorf("session.analysis_timeout_ms must not be negative")
	}

	return nil
}

// Load builds the effective configuration: defaults, then the optional file,
// then environment overrides, then validation.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		var err error
		if cfg, err = LoadFromFile(filename); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
