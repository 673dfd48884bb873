package config

import "github.com/caarlos0/env/v10"

// envOverrides holds operational settings that deployment tooling commonly
// wants to inject without rewriting the TOML file (e.g. a container
// orchestrator pinning the Redis endpoint). Empty/zero fields leave the
// TOML-sourced value untouched.
type envOverrides struct {
	RedisHost string `env:"FLUX_REDIS_HOST"`
	RedisPort int    `env:"FLUX_REDIS_PORT"`
	KeyPrefix string `env:"FLUX_KEY_PREFIX"`
}

// applyEnvOverrides layers process environment variables on top of a
// TOML-loaded Config, following the same override-wins convention the
// rest of this codebase's env-first services use.
func applyEnvOverrides(cfg Config) (Config, error) {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return cfg, err
	}
	if overrides.RedisHost != "" {
		cfg.Redis.Host = overrides.RedisHost
	}
	if overrides.RedisPort != 0 {
		cfg.Redis.Port = overrides.RedisPort
	}
	if overrides.KeyPrefix != "" {
		cfg.Flux.KeyPrefix = overrides.KeyPrefix
	}
	return cfg, nil
}
