// Package cmd defines and implements the CLI commands for the paperchase
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paperchase",
		Short: "Keyword retrieval from a bot-defended newspaper archive.",
		Long: `paperchase searches a newspaper archive for a keyword, walks the
paginated result set through a headless browser session pool, enriches
every record with its per-page match count, and exports the stream to
CSV/NDJSON files and optional downstream stores.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults plus PAPERCHASE_* env)")

	cmd.AddCommand(newRetrieveCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
