package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Validator is implemented by config structs that check themselves after parsing.
type Validator interface {
	Validate() error
}

// Load fills cfg from environment variables using `env` and `envDefault` tags,
// then runs cfg.Validate when cfg implements Validator.
func Load(cfg any) error {
	return LoadWithOptions(cfg, env.Options{})
}

// LoadWithOptions is Load with caller-supplied parser options, e.g. a Prefix
// or an Environment map in tests.
func LoadWithOptions(cfg any, opts env.Options) error {
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}
	return nil
}
