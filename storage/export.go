package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jobtrawl/jobtrawl/errors"
	"github.com/jobtrawl/jobtrawl/job"
	"github.com/jobtrawl/jobtrawl/version"
)

// ExportOptions configures a dataset export.
type ExportOptions struct {
	// OutputPath is the JSONL dataset file to write.
	OutputPath string
	// ManifestPath overrides the default sibling <dataset>.manifest.json.
	ManifestPath string
	// RedactPII replaces email/phone-like substrings in description and text.
	RedactPII bool
	// IncludeRawSections keeps the debug-only raw_sections field.
	IncludeRawSections bool
	// Limit caps the number of records exported; 0 means no cap.
	Limit int
}

// ExportManifest describes one completed export.
type ExportManifest struct {
	SchemaVersion      string    `json:"schema_version"`
	Format             string    `json:"format"`
	GeneratedAt        time.Time `json:"generated_at"`
	RecordCount        int       `json:"record_count"`
	DatasetFile        string    `json:"dataset_file"`
	ManifestFile       string    `json:"manifest_file"`
	SHA256             string    `json:"sha256"`
	PIIRedacted        bool      `json:"pii_redacted"`
	IncludeRawSections bool      `json:"include_raw_sections"`
	Fields             []string  `json:"fields"`
	ScraperVersion     string    `json:"scraper_version"`
}

// ExportJobDetails streams detail files (already path-sorted by the caller)
// into one JSONL dataset plus a manifest carrying the dataset's SHA-256.
//
// Unlike ledger ingestion, export is all-or-nothing: one malformed detail
// file aborts the whole export, because a dataset silently missing records
// is worse than a failed export. Records are serialized with sorted keys, so
// exporting the same inputs with the same flags is byte-identical.
func ExportJobDetails(detailFiles []string, opts ExportOptions) (*ExportManifest, error) {
	if opts.OutputPath == "" {
		return nil, errors.AssertionFailedf("export requires an output path")
	}
	manifestPath := opts.ManifestPath
	if manifestPath == "" {
		ext := filepath.Ext(opts.OutputPath)
		manifestPath = strings.TrimSuffix(opts.OutputPath, ext) + ".manifest.json"
	}
	for _, p := range []string{opts.OutputPath, manifestPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, errors.Wrapf(err, "create export directory for %s", p)
		}
	}

	if opts.Limit > 0 && len(detailFiles) > opts.Limit {
		detailFiles = detailFiles[:opts.Limit]
	}

	out, err := os.Create(opts.OutputPath)
	if err != nil {
		return nil, errors.Wrapf(err, "create dataset %s", opts.OutputPath)
	}
	defer out.Close()

	hasher := sha256.New()
	recordCount := 0
	var fields []string

	for _, detailPath := range detailFiles {
		record, err := buildExportRecord(detailPath, opts)
		if err != nil {
			return nil, err
		}

		// Go marshals map keys sorted, which keeps repeat exports
		// byte-identical.
		line, err := json.Marshal(record)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal export record from %s", detailPath)
		}
		line = append(line, '\n')

		if _, err := out.Write(line); err != nil {
			return nil, errors.Wrapf(err, "write dataset %s", opts.OutputPath)
		}
		hasher.Write(line)

		recordCount++
		if fields == nil {
			for k := range record {
				fields = append(fields, k)
			}
			sort.Strings(fields)
		}
	}

	if err := out.Close(); err != nil {
		return nil, errors.Wrapf(err, "close dataset %s", opts.OutputPath)
	}

	if fields == nil {
		fields = []string{}
	}
	manifest := &ExportManifest{
		SchemaVersion:      DatasetSchemaVersion,
		Format:             "jsonl",
		GeneratedAt:        time.Now().UTC(),
		RecordCount:        recordCount,
		DatasetFile:        opts.OutputPath,
		ManifestFile:       manifestPath,
		SHA256:             hex.EncodeToString(hasher.Sum(nil)),
		PIIRedacted:        opts.RedactPII,
		IncludeRawSections: opts.IncludeRawSections,
		Fields:             fields,
		ScraperVersion:     version.Version,
	}

	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal manifest")
	}
	if err := WriteFileAtomic(manifestPath, append(manifestData, '\n')); err != nil {
		return nil, err
	}
	return manifest, nil
}

func buildExportRecord(detailPath string, opts ExportOptions) (map[string]interface{}, error) {
	content, err := os.ReadFile(detailPath)
	if err != nil {
		return nil, errors.Wrapf(err, "read detail %s", detailPath)
	}

	var detail job.Detail
	if err := json.Unmarshal(content, &detail); err != nil {
		return nil, errors.Wrapf(err, "invalid job detail JSON in %s", detailPath)
	}
	if err := detail.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid job detail in %s", detailPath)
	}

	// Round-trip through the struct so only known, validated fields reach
	// the dataset.
	normalized, err := json.Marshal(&detail)
	if err != nil {
		return nil, errors.Wrapf(err, "normalize detail %s", detailPath)
	}
	var record map[string]interface{}
	if err := json.Unmarshal(normalized, &record); err != nil {
		return nil, errors.Wrapf(err, "normalize detail %s", detailPath)
	}

	if !opts.IncludeRawSections {
		delete(record, "raw_sections")
	}

	description := strPtrValue(detail.Description)
	if opts.RedactPII && description != "" {
		description = RedactPII(description)
		record["description"] = description
	}

	record["source_url"] = fmt.Sprintf("https://www.linkedin.com/jobs/view/%s/", detail.JobID)
	record["schema_version"] = DatasetSchemaVersion
	record["scraper_version"] = version.Version

	text := BuildText(
		strPtrValue(detail.Title),
		strPtrValue(detail.CompanyName),
		strPtrValue(detail.Location),
		description,
	)
	if opts.RedactPII {
		text = RedactPII(text)
	}
	record["text"] = NormalizeWhitespace(text)

	return record, nil
}

func strPtrValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
