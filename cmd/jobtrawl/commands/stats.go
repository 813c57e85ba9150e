package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// StatsCmd shows index statistics
var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Long: `Display per-source discovery totals, unscraped counts, and the
number of stored detail files. Scraped status is reconciled from detail
files before counting.`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	st, cfg, err := openStorage()
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.GetStats()
	if err != nil {
		return err
	}

	pterm.DefaultSection.Println("jobtrawl index")
	fmt.Printf("Data dir: %s\n\n", cfg.DataDir)

	table := pterm.TableData{
		{"Source", "Discovered", "Unscraped"},
		{"search", fmt.Sprint(stats.SearchJobIDs), fmt.Sprint(stats.UnscrapedSearch)},
		{"recommended", fmt.Sprint(stats.RecommendedJobIDs), fmt.Sprint(stats.UnscrapedRecommended)},
		{"manual", fmt.Sprint(stats.ManualJobIDs), fmt.Sprint(stats.UnscrapedManual)},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(table).Render(); err != nil {
		return err
	}

	fmt.Printf("\nJob details on disk: %d\n", stats.JobDetails)
	return nil
}
