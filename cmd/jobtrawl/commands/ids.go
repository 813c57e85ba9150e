package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobtrawl/jobtrawl/job"
)

// IdsCmd groups job-id operations
var IdsCmd = &cobra.Command{
	Use:   "ids",
	Short: "Manage discovered job ids",
	Long: `ids — Manage discovered job ids

Examples:
  jobtrawl ids add 4012345678 4012345679     # Record manually discovered ids
  jobtrawl ids ls                            # List all known ids
  jobtrawl ids ls --source search --unscraped`,
}

var idsAddCmd = &cobra.Command{
	Use:   "add <job_id>...",
	Short: "Record manually discovered job ids",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIdsAdd,
}

var idsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List job ids from the index",
	RunE:  runIdsLs,
}

var (
	idsAddSourceFlag  string
	idsAddKeywordFlag string
	idsAddCountryFlag string
	idsLsSourceFlag   string
	idsLsUnscraped    bool
)

func init() {
	IdsCmd.AddCommand(idsAddCmd)
	IdsCmd.AddCommand(idsLsCmd)

	idsAddCmd.Flags().StringVar(&idsAddSourceFlag, "source", string(job.SourceManual), "Discovery source (search|recommended|manual)")
	idsAddCmd.Flags().StringVar(&idsAddKeywordFlag, "keyword", "", "Search keyword that produced these ids")
	idsAddCmd.Flags().StringVar(&idsAddCountryFlag, "country", "", "Search country filter")

	idsLsCmd.Flags().StringVar(&idsLsSourceFlag, "source", "", "Filter by source (search|recommended|manual)")
	idsLsCmd.Flags().BoolVar(&idsLsUnscraped, "unscraped", false, "Only ids not yet scraped")
}

func runIdsAdd(cmd *cobra.Command, args []string) error {
	source, err := job.ParseSource(idsAddSourceFlag)
	if err != nil {
		return err
	}

	records := make([]job.ID, 0, len(args))
	now := time.Now().UTC()
	for _, id := range args {
		records = append(records, job.ID{
			JobID:         id,
			Source:        source,
			DiscoveredAt:  now,
			SearchKeyword: idsAddKeywordFlag,
			SearchCountry: idsAddCountryFlag,
		})
	}

	st, _, err := openStorage()
	if err != nil {
		return err
	}
	defer st.Close()

	saved, err := st.SaveJobIDs(records)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %d new job id(s) (%d given)\n", saved, len(args))
	return nil
}

func runIdsLs(cmd *cobra.Command, args []string) error {
	var source job.Source
	if idsLsSourceFlag != "" {
		parsed, err := job.ParseSource(idsLsSourceFlag)
		if err != nil {
			return err
		}
		source = parsed
	}

	st, _, err := openStorage()
	if err != nil {
		return err
	}
	defer st.Close()

	jobs, err := st.GetJobIDs(source, idsLsUnscraped)
	if err != nil {
		return err
	}

	for _, j := range jobs {
		scraped := " "
		if j.Scraped {
			scraped = "x"
		}
		fmt.Printf("[%s] %-12s %-11s %s\n",
			scraped, j.JobID, j.Source, j.DiscoveredAt.Format(time.RFC3339))
	}
	fmt.Printf("%d job id(s)\n", len(jobs))
	return nil
}
