// Command flux is the operator CLI for the rate-limiting engine: it
// scaffolds a configuration file, clears cached state, inspects aggregate
// counters and smoke-tests connectivity to the backing store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "flux",
		Short: "Operate a flux rate-limiting deployment",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to flux.toml (defaults to $FLUX_CONFIG or ./flux.toml)")

	root.AddCommand(
		newInitCmd(),
		newPingCmd(&configPath),
		newClearCmd(&configPath),
		newInspectCmd(&configPath),
	)
	return root
}
