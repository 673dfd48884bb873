package main

import (
	"fmt"
	"log/slog"

	"github.com/swam244/flux/internal/config"
	"github.com/swam244/flux/internal/observability"
	"github.com/swam244/flux/internal/wire"
)

func loadClient(path string) (config.Config, *wire.Client, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("flux: %w", err)
	}

	logger, err := observability.SetupLogger(cfg.Flux.LogFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("flux: %w", err)
	}
	slog.SetDefault(logger)

	pool := wire.NewPool(cfg.Redis)
	return cfg, wire.NewClient(pool), nil
}
