package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClearCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every bucket and aggregate key under the configured prefix",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, err := loadClient(*configPath)
			if err != nil {
				return err
			}
			defer client.Close()

			keys, err := client.Scan(cmd.Context(), cfg.Flux.KeyPrefix+"*")
			if err != nil {
				return fmt.Errorf("flux: scanning %s*: %w", cfg.Flux.KeyPrefix, err)
			}
			if len(keys) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no keys under prefix, nothing to clear")
				return nil
			}

			deleted, err := client.Del(cmd.Context(), keys...)
			if err != nil {
				return fmt.Errorf("flux: deleting keys: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d key(s)\n", deleted)
			return nil
		},
	}
}
