package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// parseEnv overlays USERKEEPER_* variables. Unset variables leave the
// current value alone. Durations use Go syntax ("15m").
func parseEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
