// Package config loads process configuration from the environment and
// provides the fatal-exit helper used by command entry points.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv populates target from environment variables according to its
// `env` struct tags. Defaults come from `envDefault` tags; an unparsable
// value is a hard error.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	return nil
}
