package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// FromEnv overlays environment variables onto cfg. Unset variables leave
// the current values in place.
func FromEnv(cfg Config) (Config, error) {
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
