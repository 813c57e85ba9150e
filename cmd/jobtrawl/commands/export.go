package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jobtrawl/jobtrawl/storage"
)

// ExportCmd exports detail files as a JSONL dataset
var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export job details as a JSONL dataset with a manifest",
	Long: `Stream all stored job details into one newline-delimited JSON
dataset plus a manifest recording the dataset's SHA-256. The export is
all-or-nothing: a malformed detail file aborts it.`,
	RunE: runExport,
}

var (
	exportOutFlag        string
	exportManifestFlag   string
	exportRedactPIIFlag  bool
	exportIncludeRawFlag bool
	exportLimitFlag      int
)

func init() {
	ExportCmd.Flags().StringVar(&exportOutFlag, "out", "", "Dataset output path (default <data_dir>/exports/job_details.jsonl)")
	ExportCmd.Flags().StringVar(&exportManifestFlag, "manifest", "", "Manifest output path (default sibling of --out)")
	ExportCmd.Flags().BoolVar(&exportRedactPIIFlag, "redact-pii", false, "Redact email/phone-like substrings")
	ExportCmd.Flags().BoolVar(&exportIncludeRawFlag, "include-raw", false, "Keep the debug-only raw_sections field")
	ExportCmd.Flags().IntVar(&exportLimitFlag, "limit", 0, "Cap the number of exported records (0 = all)")
}

func runExport(cmd *cobra.Command, args []string) error {
	st, cfg, err := openStorage()
	if err != nil {
		return err
	}
	defer st.Close()

	out := exportOutFlag
	if out == "" {
		out = filepath.Join(cfg.ExportsDir(), "job_details.jsonl")
	}

	manifest, err := st.ExportJobDetails(storage.ExportOptions{
		OutputPath:         out,
		ManifestPath:       exportManifestFlag,
		RedactPII:          exportRedactPIIFlag,
		IncludeRawSections: exportIncludeRawFlag,
		Limit:              exportLimitFlag,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d record(s)\n", manifest.RecordCount)
	fmt.Printf("Dataset:  %s\n", manifest.DatasetFile)
	fmt.Printf("Manifest: %s\n", manifest.ManifestFile)
	fmt.Printf("SHA-256:  %s\n", manifest.SHA256)
	return nil
}
