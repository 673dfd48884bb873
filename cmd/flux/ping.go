package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPingCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Smoke-test connectivity to the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := loadClient(*configPath)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("flux: ping failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "PONG")
			return nil
		},
	}
}
