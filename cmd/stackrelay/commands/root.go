package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stackrelay",
		Short: "Stackrelay - Deployment Lifecycle Orchestrator",
		Long: `Stackrelay orchestrates long-running deployment builds behind a
custom-resource lifecycle contract.

It accepts Create/Update/Delete requests, decides whether a rebuild is
required, runs builds through a cloud build executor, collects stack
outputs, and reports exactly one completion callback per request.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "stackrelay.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newDispatchCommand())
	rootCmd.AddCommand(newExecutionsCommand())

	return rootCmd
}
