package config

import "github.com/caarlos0/env/v6"

// parseEnv overlays fields whose environment variable is set; unset
// variables leave the current value alone.
func parseEnv(config *Config) error {
	return env.Parse(config)
}
