// Command fluxworker drains the analytics event stream and materializes
// per-endpoint and global aggregate counters, shutting down cleanly on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swam244/flux/internal/analytics"
	"github.com/swam244/flux/internal/config"
	"github.com/swam244/flux/internal/observability"
	"github.com/swam244/flux/internal/wire"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fluxworker: exiting", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Flux.AnalyticsEnabled {
		return fmt.Errorf("analytics_enabled is false in config, nothing for fluxworker to do")
	}

	logger, err := observability.SetupLogger(cfg.Flux.LogFile)
	if err != nil {
		return fmt.Errorf("setting up logger: %w", err)
	}
	slog.SetDefault(logger)

	pool := wire.NewPool(cfg.Redis)
	client := wire.NewClient(pool)
	defer client.Close()

	hostname, _ := os.Hostname()
	consumer := fmt.Sprintf("%s-%s", hostname, uuid.NewString())

	worker := analytics.NewWorker(
		analytics.WireReader{Client: client},
		cfg.Flux.AnalyticsStream,
		"aggregator",
		consumer,
		cfg.Flux.KeyPrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil && err != http.ErrServerClosed {
			slog.Error("fluxworker: metrics server error", slog.Any("error", err))
		}
	}()

	slog.Info("fluxworker: starting", slog.String("consumer", consumer), slog.String("stream", cfg.Flux.AnalyticsStream))
	err = worker.Run(ctx)
	if err != nil && ctx.Err() != nil {
		slog.Info("fluxworker: shut down cleanly")
		return nil
	}
	return err
}
