// Package cmd defines and implements the CLI commands for the dictgen executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dictgen",
		Short: "Generates dictionaries from a random-word API with bounded fan-out.",
		Long: `dictgen accepts dictionary generation requests over HTTP, fetches the
requested number of words concurrently under a process-wide permit limit,
persists each completed dictionary and serves its status, letter statistics
and text download.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment variables override it")

	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "dictgen: %v\n", err)
		os.Exit(1)
	}
}
