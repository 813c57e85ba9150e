// Package storage implements the jobtrawl persistence core: append-only
// JSONL ledgers as the durable, merge-friendly source of truth, a local
// SQLite index derived from them, byte-offset ingestion, and self-healing
// reconciliation against on-disk detail files.
package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/jobtrawl/jobtrawl/errors"
	"github.com/jobtrawl/jobtrawl/job"
)

// Kind names a ledger record kind. Each kind lives in its own directory.
type Kind string

const (
	// KindJobIDs is the discovery ledger: one line per (job_id, source) discovery
	KindJobIDs Kind = "job_ids"
	// KindJobScrapes is the completion ledger: one line per scrape
	KindJobScrapes Kind = "job_scrapes"
)

// Valid reports whether k is a known ledger kind.
func (k Kind) Valid() bool {
	return k == KindJobIDs || k == KindJobScrapes
}

// discoveryLine is the wire form of a discovery event. The mutable scraped
// flag is intentionally absent: the ledger records only the immutable
// discovery fact, so two machines can never produce conflicting lines for
// the same discovery.
type discoveryLine struct {
	JobID         string     `json:"job_id"`
	Source        job.Source `json:"source"`
	DiscoveredAt  time.Time  `json:"discovered_at"`
	SearchKeyword string     `json:"search_keyword,omitempty"`
	SearchCountry string     `json:"search_country,omitempty"`
	ParentJobID   string     `json:"parent_job_id,omitempty"`
}

// LedgerWriter appends discovery and scrape-completion events to this run's
// JSONL ledger files. Each writer is bound to one file per kind for the
// lifetime of the process; fresh runs get fresh, uniquely named files so
// concurrent processes never contend on a file handle.
type LedgerWriter struct {
	jobIDsPath     string
	jobScrapesPath string
	logger         *zap.SugaredLogger
}

// NewLedgerWriter creates a ledger writer bound to the given file paths,
// creating their parent directories.
func NewLedgerWriter(jobIDsPath, jobScrapesPath string, logger *zap.SugaredLogger) (*LedgerWriter, error) {
	for _, p := range []string{jobIDsPath, jobScrapesPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, errors.Wrapf(err, "create ledger directory for %s", p)
		}
	}
	return &LedgerWriter{
		jobIDsPath:     jobIDsPath,
		jobScrapesPath: jobScrapesPath,
		logger:         logger,
	}, nil
}

// JobIDsPath returns the discovery ledger file path.
func (w *LedgerWriter) JobIDsPath() string { return w.jobIDsPath }

// JobScrapesPath returns the completion ledger file path.
func (w *LedgerWriter) JobScrapesPath() string { return w.jobScrapesPath }

// AppendDiscoveries appends one line per record to the discovery ledger.
// No-op on empty input. Duplicates are allowed here; idempotence is the
// index's job, not the ledger's.
func (w *LedgerWriter) AppendDiscoveries(records []job.ID) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, rec := range records {
		line := discoveryLine{
			JobID:         rec.JobID,
			Source:        rec.Source,
			DiscoveredAt:  rec.DiscoveredAt,
			SearchKeyword: rec.SearchKeyword,
			SearchCountry: rec.SearchCountry,
			ParentJobID:   rec.ParentJobID,
		}
		data, err := json.Marshal(line)
		if err != nil {
			return errors.Wrapf(err, "marshal discovery %s", rec.JobID)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	return w.appendTo(w.jobIDsPath, buf.Bytes())
}

// AppendScrapeCompletion appends a scrape-completion event for jobID.
func (w *LedgerWriter) AppendScrapeCompletion(jobID string) error {
	event := job.ScrapeCompletion{
		JobID:     jobID,
		ScrapedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "marshal scrape completion %s", jobID)
	}
	return w.appendTo(w.jobScrapesPath, append(data, '\n'))
}

func (w *LedgerWriter) appendTo(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open ledger %s", path)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrapf(err, "append to ledger %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close ledger %s", path)
	}
	return nil
}
