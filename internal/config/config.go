// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers an optional YAML file and environment variables on top.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
)

// Defaults shared by the service and the trainer.
const (
	DefaultModelPath    = "model.json"
	DefaultModelVersion = "dev"
	DefaultAddr         = ":8000"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile, when set, sends logs to a size-rotated file instead of stdout.
	LogFile string `koanf:"log_file"`

	// LogJSON switches log lines to JSON.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// ModelPath points at the artifact written by the trainer.
	ModelPath string `koanf:"model_path"`

	// ModelVersion is a free-form tag reported by /health; it is not checked against the artifact.
	ModelVersion string `koanf:"model_version"`

	// StrictServerErrors answers recovered panics with 500 instead of 400.
	StrictServerErrors bool `koanf:"strict_server_errors"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:     "info",
		Addr:         DefaultAddr,
		ModelPath:    DefaultModelPath,
		ModelVersion: DefaultModelVersion,
	}
}
