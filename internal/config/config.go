// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for the
// lynx chat relay and its clients.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/lynx-chat/internal/model"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete relay and client configuration.
type Config struct {
	Server    ServerConfig    `toml:"server" yaml:"server" json:"server"`
	Backend   BackendConfig   `toml:"backend" yaml:"backend" json:"backend"`
	RateLimit RateLimitConfig `toml:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	Fallback  FallbackConfig  `toml:"fallback" yaml:"fallback" json:"fallback"`
	Log       LogConfig       `toml:"log" yaml:"log" json:"log"`
	Client    ClientConfig    `toml:"client" yaml:"client" json:"client"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Host                string   `toml:"host" yaml:"host" json:"host"`
	Port                int      `toml:"port" yaml:"port" json:"port"`
	MaxBodyBytes        int64    `toml:"max_body_bytes" yaml:"max_body_bytes" json:"max_body_bytes"`
	ShutdownTimeoutSecs int      `toml:"shutdown_timeout_secs" yaml:"shutdown_timeout_secs" json:"shutdown_timeout_secs"`
	AllowedOrigins      []string `toml:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
}

// BackendConfig contains generation backend settings.
type BackendConfig struct {
	APIKey            string  `toml:"api_key" yaml:"api_key" json:"api_key"`
	Model             string  `toml:"model" yaml:"model" json:"model"`
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `toml:"burst" yaml:"burst" json:"burst"`
}

// RateLimitConfig contains admission limiter settings.
type RateLimitConfig struct {
	Points            int `toml:"points" yaml:"points" json:"points"`
	DurationSecs      int `toml:"duration_secs" yaml:"duration_secs" json:"duration_secs"`
	SweepIntervalSecs int `toml:"sweep_interval_secs" yaml:"sweep_interval_secs" json:"sweep_interval_secs"`
}

// FallbackConfig contains settings for the demo stream served without a
// backend credential.
type FallbackConfig struct {
	IntervalMs int `toml:"interval_ms" yaml:"interval_ms" json:"interval_ms"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level" json:"level"`
	Format string `toml:"format" yaml:"format" json:"format"`
}

// ClientConfig contains settings for the bundled chat clients.
type ClientConfig struct {
	Endpoint string `toml:"endpoint" yaml:"endpoint" json:"endpoint"`
	Greeting string `toml:"greeting" yaml:"greeting" json:"greeting"`
}

// Duration returns the rate limit window.
func (c RateLimitConfig) Duration() time.Duration {
	return time.Duration(c.DurationSecs) * time.Second
}

// SweepInterval returns how often expired identities are dropped.
func (c RateLimitConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSecs) * time.Second
}

// Interval returns the pause between demo lines.
func (c FallbackConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSecs) * time.Second
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	DefaultPort           = 8787
	DefaultMaxBodyBytes   = 512 * 1024
	DefaultShutdownSecs   = 10
	DefaultModel          = "gemini-1.5-flash"
	DefaultRatePoints     = 10
	DefaultRateDuration   = 60
	DefaultFallbackMs     = 300
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	DefaultClientEndpoint = "http://localhost:8787"
	DefaultDevOrigin      = "http://localhost:5173"
	DefaultBackendBurst   = 1
)

// DefaultEnvFiles are the .env files read at startup, in order. Earlier
// files and the real environment win.
var DefaultEnvFiles = []string{".env", "../.env"}

// Default returns a configuration with built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                DefaultPort,
			MaxBodyBytes:        DefaultMaxBodyBytes,
			ShutdownTimeoutSecs: DefaultShutdownSecs,
			AllowedOrigins:      []string{DefaultDevOrigin},
		},
		Backend: BackendConfig{
			Model: DefaultModel,
			Burst: DefaultBackendBurst,
		},
		RateLimit: RateLimitConfig{
			Points:       DefaultRatePoints,
			DurationSecs: DefaultRateDuration,
		},
		Fallback: FallbackConfig{
			IntervalMs: DefaultFallbackMs,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Client: ClientConfig{
			Endpoint: DefaultClientEndpoint,
			Greeting: model.DefaultGreeting,
		},
	}
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = d.Server.MaxBodyBytes
	}
	if c.Server.ShutdownTimeoutSecs == 0 {
		c.Server.ShutdownTimeoutSecs = d.Server.ShutdownTimeoutSecs
	}
	if c.Backend.Model == "" {
		c.Backend.Model = d.Backend.Model
	}
	if c.Backend.Burst == 0 {
		c.Backend.Burst = d.Backend.Burst
	}
	if c.RateLimit.Points == 0 {
		c.RateLimit.Points = d.RateLimit.Points
	}
	if c.RateLimit.DurationSecs == 0 {
		c.RateLimit.DurationSecs = d.RateLimit.DurationSecs
	}
	if c.Fallback.IntervalMs == 0 {
		c.Fallback.IntervalMs = d.Fallback.IntervalMs
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Client.Endpoint == "" {
		c.Client.Endpoint = d.Client.Endpoint
	}
}

// =============================================================================
// LOADING
// =============================================================================

// LoadDotEnv exports variables from the given .env files without overriding
// anything already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := gotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load %s", path)
		}
	}
	return nil
}

// Load builds the effective configuration: defaults, then the optional file
// at path, then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, errors.Wrap(err, "invalid environment")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// LoadFile decodes path into cfg. The format follows the extension:
// .toml, .yaml/.yml or .json.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return errors.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to decode %s", path)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies recognized environment variables. Values that
// cannot be parsed are reported together.
func (c *Config) ApplyEnvOverrides() error {
	var errs ValidateErrors

	envInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := cast.ToIntE(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, ValidationError{Field: name, Message: fmt.Sprintf("not an integer: %q", v)})
				return
			}
			*dst = n
		}
	}

	// GEMINI_API_KEY
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Backend.APIKey = key
	}

	// GEMINI_MODEL
	if m := os.Getenv("GEMINI_MODEL"); m != "" {
		c.Backend.Model = m
	}

	// GEMINI_RPS
	if v := os.Getenv("GEMINI_RPS"); v != "" {
		rps, err := cast.ToFloat64E(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, ValidationError{Field: "GEMINI_RPS", Message: fmt.Sprintf("not a number: %q", v)})
		} else {
			c.Backend.RequestsPerSecond = rps
		}
	}

	envInt("RATE_LIMIT_POINTS", &c.RateLimit.Points)
	envInt("RATE_LIMIT_DURATION", &c.RateLimit.DurationSecs)
	envInt("PORT", &c.Server.Port)

	// LYNX_ALLOWED_ORIGINS
	if origins := os.Getenv("LYNX_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	// LYNX_LOG_LEVEL / LYNX_LOG_FORMAT
	if level := os.Getenv("LYNX_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("LYNX_LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}

	// LYNX_ENDPOINT
	if endpoint := os.Getenv("LYNX_ENDPOINT"); endpoint != "" {
		c.Client.Endpoint = endpoint
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{Field: "server.port", Message: fmt.Sprintf("must be between 1 and 65535, got %d", c.Server.Port)})
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, ValidationError{Field: "server.max_body_bytes", Message: "must not be negative"})
	}
	if c.RateLimit.Points < 1 {
		errs = append(errs, ValidationError{Field: "rate_limit.points", Message: "must be at least 1"})
	}
	if c.RateLimit.DurationSecs < 1 {
		errs = append(errs, ValidationError{Field: "rate_limit.duration_secs", Message: "must be at least 1"})
	}
	if c.Backend.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{Field: "backend.requests_per_second", Message: "must not be negative"})
	}
	if c.Fallback.IntervalMs < 0 {
		errs = append(errs, ValidationError{Field: "fallback.interval_ms", Message: "must not be negative"})
	}

	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		errs = append(errs, ValidationError{Field: "log.format", Message: fmt.Sprintf("invalid format '%s', must be one of: console, json", c.Log.Format)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// DISPLAY
// =============================================================================

// String returns the configuration as indented JSON with the API key masked.
func (c *Config) String() string {
	safe := *c
	if safe.Backend.APIKey != "" {
		safe.Backend.APIKey = "****"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
