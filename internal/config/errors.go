package config

import "errors"

// ErrInvalid is wrapped by every configuration validation failure so callers
// can test with errors.Is regardless of which field failed.
var ErrInvalid = errors.New("invalid configuration")

// ErrNotFound is returned by Load when no config file exists at the resolved path.
var ErrNotFound = errors.New("configuration file not found")
