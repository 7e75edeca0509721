package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable name on Config.
const EnvPrefix = "JOBVIEW_"

// ApplyEnv overlays JOBVIEW_* environment variables onto cfg.
// Variables that are not set leave the current value untouched, so calling it
// after Load gives environment precedence over the file.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadWithEnv is Load followed by ApplyEnv.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
