package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment prefixes and the optional config file variable.
const (
	envPrefix      = "CLINIC_"
	modelEnvPrefix = "MODEL_"
	configFileEnv  = "CLINIC_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if CLINIC_CONFIG is set
//  3. env (prefix CLINIC_), e.g. CLINIC_ADDR -> addr
//  4. MODEL_PATH and MODEL_VERSION
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(configFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// Preserve underscores to match koanf tags on the struct.
	clinicEnv := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(clinicEnv, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// MODEL_PATH -> model_path, MODEL_VERSION -> model_version.
	modelEnv := env.Provider(modelEnvPrefix, ".", strings.ToLower)
	if err := k.Load(modelEnv, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.ModelPath) == "" {
		return fmt.Errorf("%w: model_path must not be empty", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.ModelVersion) == "" {
		c.ModelVersion = DefaultModelVersion
	}
	return nil
}
