package storage

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jobtrawl/jobtrawl/errors"
	"github.com/jobtrawl/jobtrawl/job"
)

// Batch flush thresholds bound memory and index lock-hold time when
// ingesting very large ledgers.
const (
	discoveryFlushThreshold = 1000
	scrapeFlushThreshold    = 2000
)

// Engine applies ledger files into the index at-most-once per byte range and
// at-least-once overall. Progress is a per-file byte cursor that always sits
// on a complete-line boundary, so a crash between applying a batch and
// persisting the cursor just re-applies the same lines next run; index
// application is idempotent per record.
type Engine struct {
	index  *Index
	logger *zap.SugaredLogger
}

// NewEngine creates an ingestion engine over the given index.
func NewEngine(index *Index, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		index:  index,
		logger: logger,
	}
}

// IngestDir applies every *.jsonl ledger in dir, in stable sorted order.
// A failure ingesting one file is logged and never aborts the remaining
// files; partial progress is expected in a multi-producer environment.
// A missing directory is a no-op. An unknown kind is a programming error.
func (e *Engine) IngestDir(dir string, kind Kind) error {
	if !kind.Valid() {
		return errors.AssertionFailedf("unknown ledger kind: %s", kind)
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return errors.Wrapf(err, "glob ledger dir %s", dir)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := e.IngestFile(path, kind); err != nil {
			if e.logger != nil {
				e.logger.Errorw("Failed ingesting ledger",
					"path", path,
					"kind", string(kind),
					"error", err,
				)
			}
		}
	}
	return nil
}

// IngestFile applies any new complete lines of one ledger file into the
// index and advances the stored cursor.
func (e *Engine) IngestFile(path string, kind Kind) error {
	if !kind.Valid() {
		return errors.AssertionFailedf("unknown ledger kind: %s", kind)
	}

	offset, err := e.index.GetLedgerOffset(path, kind)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "stat ledger %s", path)
	}
	size := info.Size()

	// A cursor past the current size means the file was rewritten or
	// truncated externally; start over from 0.
	if offset < 0 || offset > size {
		if e.logger != nil {
			e.logger.Warnw("Ledger cursor inconsistent with file size, resetting",
				"path", path,
				"cursor", offset,
				"size", size,
			)
		}
		offset = 0
	}

	if size == offset {
		return nil
	}

	data, err := readRange(path, offset, size)
	if err != nil {
		return err
	}

	// Only the portion up to the last newline is complete. A writer's
	// trailing partial line is left for a later pass, so a half-written
	// line is never parsed.
	lastNL := bytes.LastIndexByte(data, '\n')
	if lastNL == -1 {
		return nil
	}
	chunk := data[:lastNL+1]
	newOffset := offset + int64(len(chunk))

	lines := bytes.Split(chunk, []byte("\n"))
	switch kind {
	case KindJobIDs:
		err = e.ingestDiscoveryLines(lines, path)
	case KindJobScrapes:
		err = e.ingestScrapeLines(lines, path)
	}
	if err != nil {
		return err
	}

	// Advance the cursor only after the batches above are applied.
	return e.index.SetLedgerOffset(path, kind, newOffset)
}

func (e *Engine) ingestDiscoveryLines(lines [][]byte, path string) error {
	var batch []job.ID
	for _, raw := range lines {
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		var rec job.ID
		if err := json.Unmarshal(raw, &rec); err != nil {
			if e.logger != nil {
				e.logger.Warnw("Skipping invalid JSON in ledger",
					"path", path,
					"error", err,
				)
			}
			continue
		}
		// Ledger schema tolerance: older lines may omit discovered_at.
		if rec.DiscoveredAt.IsZero() {
			rec.DiscoveredAt = time.Now().UTC()
		}
		if err := rec.Validate(); err != nil {
			if e.logger != nil {
				e.logger.Warnw("Skipping invalid discovery record in ledger",
					"path", path,
					"error", err,
				)
			}
			continue
		}

		batch = append(batch, rec)
		if len(batch) >= discoveryFlushThreshold {
			if _, err := e.index.InsertJobIDs(batch); err != nil {
				return err
			}
			batch = nil
		}
	}

	if len(batch) > 0 {
		if _, err := e.index.InsertJobIDs(batch); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) ingestScrapeLines(lines [][]byte, path string) error {
	var batch []string
	for _, raw := range lines {
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		// Only job_id matters for the index; the event timestamp stays in
		// the ledger.
		var event struct {
			JobID string `json:"job_id"`
		}
		if err := json.Unmarshal(raw, &event); err != nil {
			if e.logger != nil {
				e.logger.Warnw("Skipping invalid JSON in ledger",
					"path", path,
					"error", err,
				)
			}
			continue
		}
		if event.JobID == "" {
			continue
		}

		batch = append(batch, event.JobID)
		if len(batch) >= scrapeFlushThreshold {
			if _, err := e.index.MarkJobsScraped(batch); err != nil {
				return err
			}
			batch = nil
		}
	}

	if len(batch) > 0 {
		if _, err := e.index.MarkJobsScraped(batch); err != nil {
			return err
		}
	}
	return nil
}

func readRange(path string, from, to int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open ledger %s", path)
	}
	defer f.Close()

	if _, err := f.Seek(from, io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "seek ledger %s to %d", path, from)
	}

	buf := make([]byte, to-from)
	n, err := io.ReadFull(f, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		// The file shrank between stat and read; ingest what is there.
		return buf[:n], nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read ledger %s", path)
	}
	return buf, nil
}
