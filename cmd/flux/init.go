package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const initTemplate = `[redis]
host = "127.0.0.1"
port = 6379
pool_size = 5
timeout_ms = 1000

[flux]
key_prefix = "flux:"
analytics_enabled = false
analytics_stream = "flux:events"
jitter_enabled = false
jitter_max_ms = 0
fail_silently = false

[rate_limit]
policy = "token_bucket"
requests = 60
period = 60
burst = 0

# [rate_limits.login]
# policy = "fixed_window"
# requests = 5
# period = 60
`

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter flux.toml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "flux.toml"
			if len(args) == 1 {
				path = args[0]
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("flux: %s already exists, pass --force to overwrite", path)
				}
			}

			if err := os.WriteFile(path, []byte(initTemplate), 0o644); err != nil {
				return fmt.Errorf("flux: writing %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
