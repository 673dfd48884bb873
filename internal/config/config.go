// Package config loads and validates the typed settings bundle consumed by
// the wire, scripts, limiter and analytics packages.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// RedisConfig describes how to reach the backing store.
type RedisConfig struct {
	Host      string `mapstructure:"host" validate:"required"`
	Port      int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	PoolSize  int    `mapstructure:"pool_size" validate:"required,min=1"`
	TimeoutMS int    `mapstructure:"timeout_ms" validate:"required,min=1"`
}

// Timeout returns the pool borrow timeout as a time.Duration.
func (r RedisConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// Addr returns the host:port dial address.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// FluxConfig holds engine-wide behavior toggles.
type FluxConfig struct {
	KeyPrefix        string `mapstructure:"key_prefix" validate:"required"`
	LogFile          string `mapstructure:"log_file"`
	AnalyticsEnabled bool   `mapstructure:"analytics_enabled"`
	AnalyticsStream  string `mapstructure:"analytics_stream" validate:"required_if=AnalyticsEnabled true"`
	JitterEnabled    bool   `mapstructure:"jitter_enabled"`
	JitterMaxMS      int    `mapstructure:"jitter_max_ms" validate:"min=0"`
	FailSilently     bool   `mapstructure:"fail_silently"`
}

// RateLimitDefaults is the fallback preset used when a named preset is absent.
type RateLimitDefaults struct {
	Policy   string `mapstructure:"policy" validate:"required,oneof=gcra token_bucket leaky_bucket fixed_window"`
	Requests int    `mapstructure:"requests" validate:"required,min=1"`
	Period   int    `mapstructure:"period" validate:"required,min=1"`
	Burst    int    `mapstructure:"burst" validate:"min=0"`
}

// Preset is one `[rate_limits.<name>]` entry.
type Preset struct {
	Policy   string `mapstructure:"policy" validate:"required,oneof=gcra token_bucket leaky_bucket fixed_window"`
	Requests int    `mapstructure:"requests" validate:"required,min=1"`
	Period   int    `mapstructure:"period" validate:"required,min=1"`
	Burst    int    `mapstructure:"burst" validate:"min=0"`
}

// EffectiveBurst returns Burst when set, else Requests (spec default).
func (p Preset) EffectiveBurst() int {
	if p.Burst > 0 {
		return p.Burst
	}
	return p.Requests
}

// Config is the fully materialized settings bundle.
type Config struct {
	Redis      RedisConfig        `mapstructure:"redis" validate:"required"`
	Flux       FluxConfig         `mapstructure:"flux" validate:"required"`
	RateLimit  RateLimitDefaults  `mapstructure:"rate_limit" validate:"required"`
	RateLimits map[string]Preset  `mapstructure:"rate_limits"`
}

// Default returns the zero-config defaults a freshly-written TOML file ships.
func Default() Config {
	return Config{
		Redis: RedisConfig{Host: "127.0.0.1", Port: 6379, PoolSize: 5, TimeoutMS: 1000},
		Flux: FluxConfig{
			KeyPrefix:       "flux:",
			AnalyticsStream: "flux:events",
			JitterMaxMS:     0,
		},
		RateLimit:  RateLimitDefaults{Policy: "token_bucket", Requests: 60, Period: 60},
		RateLimits: map[string]Preset{},
	}
}

var validate = validator.New()

// Validate checks field-level constraints and returns a wrapped ErrInvalid
// describing the first violation found.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, err.Error())
	}
	for name, p := range c.RateLimits {
		if err := validate.Struct(p); err != nil {
			return fmt.Errorf("%w: preset %q: %s", ErrInvalid, name, err.Error())
		}
	}
	return nil
}

// Preset resolves a named preset, falling back to the [rate_limit] defaults
// when name is empty or unknown.
func (c Config) Preset(name string) Preset {
	if name != "" {
		if p, ok := c.RateLimits[name]; ok {
			return p
		}
	}
	return Preset{
		Policy:   c.RateLimit.Policy,
		Requests: c.RateLimit.Requests,
		Period:   c.RateLimit.Period,
		Burst:    c.RateLimit.Burst,
	}
}

// Load reads a TOML configuration file from path, or from the location named
// by the FLUX_CONFIG environment variable when path is empty, validates it
// and returns the materialized Config.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	resolved := path
	if resolved == "" {
		resolved = os.Getenv("FLUX_CONFIG")
	}
	if resolved == "" {
		resolved = "flux.toml"
	}
	v.SetConfigFile(resolved)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) || strings.Contains(err.Error(), "Not Found") {
			return Config{}, fmt.Errorf("%w: %s", ErrNotFound, resolved)
		}
		return Config{}, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config %s: %w", resolved, err)
	}

	cfg, err := applyEnvOverrides(cfg)
	if err != nil {
		return Config{}, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
