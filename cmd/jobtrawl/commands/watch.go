package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jobtrawl/jobtrawl/logger"
	"github.com/jobtrawl/jobtrawl/storage"
)

// WatchCmd continuously re-ingests as ledger files change
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-ingest whenever ledger files change",
	Long: `Watch the ledger directories and apply new bytes into the index as
they appear — useful while an out-of-band sync tool is merging ledgers from
other machines. Runs until interrupted.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	st, cfg, err := openStorage()
	if err != nil {
		return err
	}
	defer st.Close()

	watcher, err := storage.NewLedgerWatcher(st, logger.Logger)
	if err != nil {
		return err
	}
	defer watcher.Stop()
	watcher.Start()

	fmt.Printf("Watching ledgers under %s (Ctrl-C to stop)\n", cfg.DataDir)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	fmt.Println("\nStopping")
	return nil
}
