package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jobtrawl/jobtrawl/cmd/jobtrawl/commands"
	"github.com/jobtrawl/jobtrawl/logger"
)

var logJSON bool

var rootCmd = &cobra.Command{
	Use:   "jobtrawl",
	Short: "jobtrawl - job posting discovery and scrape ledger",
	Long: `jobtrawl - job posting discovery and scrape ledger

Job discoveries and scrape completions are appended to JSONL ledgers (the
durable, merge-friendly source of truth) and materialized into a local
SQLite index for querying. The index is disposable: it is rebuilt from the
ledgers whenever it is deleted.

Examples:
  jobtrawl ids add 4012345678 --source manual   # Record a discovered job id
  jobtrawl ids ls --unscraped                   # List job ids awaiting scrape
  jobtrawl stats                                # Show index statistics
  jobtrawl ingest                               # Apply new ledger bytes to the index
  jobtrawl export --out data/exports/jobs.jsonl # Export details as a dataset
  jobtrawl watch                                # Re-ingest as ledgers change`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(logJSON); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")

	rootCmd.AddCommand(commands.IdsCmd)
	rootCmd.AddCommand(commands.StatsCmd)
	rootCmd.AddCommand(commands.IngestCmd)
	rootCmd.AddCommand(commands.ExportCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
