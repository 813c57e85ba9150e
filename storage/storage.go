package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jobtrawl/jobtrawl/config"
	"github.com/jobtrawl/jobtrawl/db"
	"github.com/jobtrawl/jobtrawl/errors"
	"github.com/jobtrawl/jobtrawl/job"
)

// Stats summarizes index and detail-file state.
type Stats struct {
	SearchJobIDs         int `json:"search_job_ids"`
	RecommendedJobIDs    int `json:"recommended_job_ids"`
	ManualJobIDs         int `json:"manual_job_ids"`
	UnscrapedSearch      int `json:"unscraped_search"`
	UnscrapedRecommended int `json:"unscraped_recommended"`
	UnscrapedManual      int `json:"unscraped_manual"`
	JobDetails           int `json:"job_details"`
}

// Storage is the single entry point collaborators use for job persistence.
//
// Writes go through to both the ledger (durable, append-only, merged across
// machines out-of-band) and the index (fast local queries, read-your-writes
// within a process). The index is always re-derivable by replaying ledgers,
// so ledger-write failures never fail the caller's logical operation.
type Storage struct {
	cfg    *config.Config
	logger *zap.SugaredLogger

	conn   *closableDB
	index  *Index
	ledger *LedgerWriter
	engine *Engine
}

// closableDB wraps the handle so Close stays idempotent and panic-free.
type closableDB struct {
	db   interface{ Close() error }
	once sync.Once
	err  error
}

func (c *closableDB) close() error {
	c.once.Do(func() {
		c.err = c.db.Close()
	})
	return c.err
}

// New opens the index (creating and migrating it as needed), binds a ledger
// writer to this run's file pair, and ingests all known ledger directories
// so the process starts from a fully consistent view, including facts
// written by other processes or machines since the last run.
func New(cfg *config.Config, logger *zap.SugaredLogger) (*Storage, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, errors.Wrap(err, "ensure data directories")
	}

	conn, err := db.Open(cfg.IndexDBPath(), logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(conn, logger); err != nil {
		conn.Close()
		return nil, err
	}

	ledger, err := NewLedgerWriter(cfg.LedgerJobIDsPath(), cfg.LedgerJobScrapesPath(), logger)
	if err != nil {
		conn.Close()
		return nil, err
	}

	index := NewIndex(conn, logger)
	s := &Storage{
		cfg:    cfg,
		logger: logger,
		conn:   &closableDB{db: conn},
		index:  index,
		ledger: ledger,
		engine: NewEngine(index, logger),
	}

	if logger != nil {
		logger.Debugw("Storage initialized",
			"run_id", cfg.RunID,
			"index_db", cfg.IndexDBPath(),
			"ledger_job_ids", ledger.JobIDsPath(),
			"ledger_job_scrapes", ledger.JobScrapesPath(),
		)
	}

	if err := s.IngestLedgers(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the index's underlying connection. Safe to call multiple
// times; never panics.
func (s *Storage) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.close()
}

// Index exposes the underlying index for read-only inspection.
func (s *Storage) Index() *Index { return s.index }

// IngestLedgers applies any new ledger bytes into the index (idempotent).
// Per-file failures are logged by the engine, never returned.
func (s *Storage) IngestLedgers() error {
	if err := s.engine.IngestDir(s.cfg.LedgerJobIDsDir(), KindJobIDs); err != nil {
		return err
	}
	return s.engine.IngestDir(s.cfg.LedgerJobScrapesDir(), KindJobScrapes)
}

// SaveJobID records a single discovered job id; returns true when it was new.
func (s *Storage) SaveJobID(rec job.ID) (bool, error) {
	n, err := s.SaveJobIDs([]job.ID{rec})
	return n > 0, err
}

// SaveJobIDs records discovered job ids. The input batch is de-duplicated
// in order by (source, job_id) so one call never writes redundant ledger
// lines; the index decides which records are genuinely new and only those
// reach the ledger. Returns the count of new ids.
//
// Every record is validated before anything is written: an invalid record
// fails the whole batch, so the ledger never carries a line a rebuild
// would skip.
//
// Ledger append failures are logged and swallowed: the index already holds
// the fact for this process, the only cost is delayed cross-machine
// propagation.
func (s *Storage) SaveJobIDs(records []job.ID) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	deduped := dedupeBySourceAndID(records)
	for _, rec := range deduped {
		if err := rec.Validate(); err != nil {
			return 0, errors.Wrapf(err, "reject job id %q (%s)", rec.JobID, rec.Source)
		}
	}

	inserted, err := s.index.InsertJobIDs(deduped)
	if err != nil {
		return 0, err
	}
	if len(inserted) == 0 {
		return 0, nil
	}

	if err := s.ledger.AppendDiscoveries(inserted); err != nil {
		if s.logger != nil {
			s.logger.Errorw("Ledger append failed; index still holds the discoveries",
				"count", len(inserted),
				"error", err,
			)
		}
	}
	if s.logger != nil {
		s.logger.Infow("Saved job ids", "saved", len(inserted), "input", len(records))
	}
	return len(inserted), nil
}

// GetJobIDs returns job ids from the index, ordered by discovery time.
// An empty source means all sources. With unscrapedOnly set, rows whose
// detail file already exists on disk (synced from another machine, bypassing
// this machine's ledger) are marked scraped on the spot and excluded, making
// unscraped queries self-correcting before any ledger merge happens.
func (s *Storage) GetJobIDs(source job.Source, unscrapedOnly bool) ([]job.ID, error) {
	jobs, err := s.index.ListJobIDs(source, unscrapedOnly)
	if err != nil {
		return nil, err
	}
	if !unscrapedOnly {
		return jobs, nil
	}

	remaining := jobs[:0]
	for _, j := range jobs {
		if s.JobDetailExists(j.JobID) {
			if _, err := s.index.MarkJobScraped(j.JobID); err != nil {
				return nil, err
			}
			continue
		}
		remaining = append(remaining, j)
	}
	return remaining, nil
}

// MarkJobScraped emits a scrape-completion ledger event (best-effort) and
// marks the id scraped in the index for every source.
func (s *Storage) MarkJobScraped(jobID string) error {
	if err := s.ledger.AppendScrapeCompletion(jobID); err != nil {
		if s.logger != nil {
			s.logger.Errorw("Scrape-completion ledger append failed",
				"job_id", jobID,
				"error", err,
			)
		}
	}
	_, err := s.index.MarkJobScraped(jobID)
	return err
}

// SaveJobDetail writes the full detail record for one job atomically.
func (s *Storage) SaveJobDetail(detail *job.Detail) error {
	if err := detail.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(detail, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "marshal detail %s", detail.JobID)
	}
	path := s.detailPath(detail.JobID)
	if err := WriteFileAtomic(path, append(data, '\n')); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Debugw("Saved job detail", "job_id", detail.JobID, "path", path)
	}
	return nil
}

// GetJobDetail loads the detail record for one job. Returns (nil, nil) when
// no detail file exists.
func (s *Storage) GetJobDetail(jobID string) (*job.Detail, error) {
	data, err := os.ReadFile(s.detailPath(jobID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read detail %s", jobID)
	}
	var detail job.Detail
	if err := json.Unmarshal(data, &detail); err != nil {
		return nil, errors.Wrapf(err, "parse detail %s", jobID)
	}
	return &detail, nil
}

// JobDetailExists reports whether a detail file exists for jobID. Presence
// is a trust signal: an existing detail means the job was scraped somewhere,
// even if that machine's ledger has not been merged yet.
func (s *Storage) JobDetailExists(jobID string) bool {
	_, err := os.Stat(s.detailPath(jobID))
	return err == nil
}

// DetailFiles returns all detail file paths, sorted for reproducibility.
func (s *Storage) DetailFiles() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.cfg.JobDetailsDir(), "*.json"))
	if err != nil {
		return nil, errors.Wrap(err, "glob detail files")
	}
	sort.Strings(paths)
	return paths, nil
}

// GetStats reconciles scraped status from detail files (every id with a
// detail file is batch-marked scraped), then returns per-source totals.
func (s *Storage) GetStats() (*Stats, error) {
	paths, err := s.DetailFiles()
	if err != nil {
		return nil, err
	}
	if len(paths) > 0 {
		ids := make([]string, 0, len(paths))
		for _, p := range paths {
			ids = append(ids, strings.TrimSuffix(filepath.Base(p), ".json"))
		}
		if _, err := s.index.MarkJobsScraped(ids); err != nil {
			return nil, err
		}
	}

	stats := &Stats{JobDetails: len(paths)}
	counts := []struct {
		source    job.Source
		total     *int
		unscraped *int
	}{
		{job.SourceSearch, &stats.SearchJobIDs, &stats.UnscrapedSearch},
		{job.SourceRecommended, &stats.RecommendedJobIDs, &stats.UnscrapedRecommended},
		{job.SourceManual, &stats.ManualJobIDs, &stats.UnscrapedManual},
	}
	for _, c := range counts {
		if *c.total, err = s.index.CountJobIDs(c.source); err != nil {
			return nil, err
		}
		if *c.unscraped, err = s.index.CountUnscraped(c.source); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

// ExportJobDetails streams all detail files into a JSONL dataset plus a
// manifest. See ExportOptions.
func (s *Storage) ExportJobDetails(opts ExportOptions) (*ExportManifest, error) {
	paths, err := s.DetailFiles()
	if err != nil {
		return nil, err
	}
	return ExportJobDetails(paths, opts)
}

func (s *Storage) detailPath(jobID string) string {
	return filepath.Join(s.cfg.JobDetailsDir(), jobID+".json")
}

// dedupeBySourceAndID removes duplicates from a batch while preserving first
// occurrence order.
func dedupeBySourceAndID(records []job.ID) []job.ID {
	seen := make(map[string]bool, len(records))
	deduped := make([]job.ID, 0, len(records))
	for _, rec := range records {
		key := string(rec.Source) + "\x00" + rec.JobID
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, rec)
	}
	return deduped
}
