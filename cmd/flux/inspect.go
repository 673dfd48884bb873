package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swam244/flux/internal/analytics"
	"github.com/swam244/flux/internal/scripts"
)

func newInspectCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show script cache status, live bucket keys and aggregate stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, err := loadClient(*configPath)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			registry := scripts.NewRegistry(client)
			if _, err := registry.Preload(ctx); err != nil {
				return fmt.Errorf("flux: preloading scripts: %w", err)
			}
			fmt.Fprintln(out, "script cache:")
			for policy, digest := range registry.Digests() {
				fmt.Fprintf(out, "  %-14s %s\n", policy, digest)
			}

			keys, err := client.Scan(ctx, cfg.Flux.KeyPrefix+"*")
			if err != nil {
				return fmt.Errorf("flux: scanning keys: %w", err)
			}
			fmt.Fprintf(out, "\nlive keys (%d):\n", len(keys))
			for _, key := range keys {
				ttl, err := client.TTL(ctx, key)
				if err != nil {
					fmt.Fprintf(out, "  %s  (ttl error: %v)\n", key, err)
					continue
				}
				fmt.Fprintf(out, "  %-64s ttl=%s\n", key, ttl)
			}

			stats, err := analytics.Snapshot(ctx, analytics.WireReader{Client: client}, cfg.Flux.KeyPrefix)
			if err != nil {
				return fmt.Errorf("flux: reading aggregate stats: %w", err)
			}
			fmt.Fprintf(out, "\nglobal: count=%d last_updated=%s\n", stats.Global.Count, stats.Global.LastUpdated)
			for ep, s := range stats.Endpoints {
				fmt.Fprintf(out, "  %-20s allowed=%d blocked=%d last_updated=%s\n", ep, s.Allowed, s.Blocked, s.LastUpdated)
			}
			return nil
		},
	}
}
