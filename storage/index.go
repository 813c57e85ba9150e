package storage

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/jobtrawl/jobtrawl/errors"
	"github.com/jobtrawl/jobtrawl/job"
)

// Query constants
const (
	jobIDInsertQuery = `
		INSERT OR IGNORE INTO job_ids (
		  job_id, source, discovered_at, search_keyword, search_country, parent_job_id, scraped
		) VALUES (?, ?, ?, ?, ?, ?, ?)`

	jobIDSelectColumns = `
		SELECT job_id, source, discovered_at, search_keyword, search_country, parent_job_id, scraped
		FROM job_ids`

	jobIDMarkScrapedQuery = `
		UPDATE job_ids SET scraped = 1 WHERE job_id = ? AND scraped = 0`

	ledgerOffsetSelectQuery = `
		SELECT bytes_processed FROM ledger_state WHERE path = ? AND kind = ?`

	ledgerOffsetUpsertQuery = `
		INSERT INTO ledger_state (path, kind, bytes_processed, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
		  kind = excluded.kind,
		  bytes_processed = excluded.bytes_processed,
		  updated_at = excluded.updated_at`
)

// Index is the local, disposable query cache over the ledgers. It holds the
// current state of every discovered (job_id, source) pair plus per-ledger
// ingestion cursors. Deleting the database file and re-ingesting all ledgers
// from offset 0 reproduces equivalent state.
type Index struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewIndex creates an index over an opened, migrated database handle.
func NewIndex(db *sql.DB, logger *zap.SugaredLogger) *Index {
	return &Index{
		db:     db,
		logger: logger,
	}
}

// InsertJobIDs conditionally inserts records, ignoring existing
// (job_id, source) pairs, and returns exactly the records that were newly
// inserted. Callers use the inserted subset to decide what to append to the
// discovery ledger.
func (ix *Index) InsertJobIDs(records []job.ID) ([]job.ID, error) {
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := ix.db.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "begin insert tx")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(jobIDInsertQuery)
	if err != nil {
		return nil, errors.Wrap(err, "prepare job_ids insert")
	}
	defer stmt.Close()

	var inserted []job.ID
	for _, rec := range records {
		res, err := stmt.Exec(
			rec.JobID,
			string(rec.Source),
			rec.DiscoveredAt.UTC().Format(time.RFC3339Nano),
			nullableString(rec.SearchKeyword),
			nullableString(rec.SearchCountry),
			nullableString(rec.ParentJobID),
			boolToInt(rec.Scraped),
		)
		if err != nil {
			return nil, errors.Wrapf(err, "insert job id %s (%s)", rec.JobID, rec.Source)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, errors.Wrap(err, "rows affected")
		}
		if affected == 1 {
			inserted = append(inserted, rec)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit insert tx")
	}
	return inserted, nil
}

// ListJobIDs returns job ids ordered by discovery time ascending, so
// repeated queries over the same data are deterministic. An empty source
// means all sources.
func (ix *Index) ListJobIDs(source job.Source, unscrapedOnly bool) ([]job.ID, error) {
	query := jobIDSelectColumns
	var where []string
	var params []interface{}
	if source != "" {
		where = append(where, "source = ?")
		params = append(params, string(source))
	}
	if unscrapedOnly {
		where = append(where, "scraped = 0")
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY discovered_at ASC"

	rows, err := ix.db.Query(query, params...)
	if err != nil {
		return nil, errors.Wrap(err, "query job ids")
	}
	defer rows.Close()

	var result []job.ID
	for rows.Next() {
		rec, err := scanJobID(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate job ids")
	}
	return result, nil
}

// MarkJobScraped sets scraped=1 for every (job_id, *) row currently
// unscraped and returns the number of rows changed. Unknown ids are a no-op,
// never an error.
func (ix *Index) MarkJobScraped(jobID string) (int64, error) {
	res, err := ix.db.Exec(jobIDMarkScrapedQuery, jobID)
	if err != nil {
		return 0, errors.Wrapf(err, "mark job %s scraped", jobID)
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return changed, nil
}

// MarkJobsScraped is the batched form of MarkJobScraped; returns total rows
// changed across the batch.
func (ix *Index) MarkJobsScraped(jobIDs []string) (int64, error) {
	if len(jobIDs) == 0 {
		return 0, nil
	}

	tx, err := ix.db.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "begin mark tx")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(jobIDMarkScrapedQuery)
	if err != nil {
		return 0, errors.Wrap(err, "prepare mark scraped")
	}
	defer stmt.Close()

	var changed int64
	for _, id := range jobIDs {
		res, err := stmt.Exec(id)
		if err != nil {
			return 0, errors.Wrapf(err, "mark job %s scraped", id)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, errors.Wrap(err, "rows affected")
		}
		changed += n
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit mark tx")
	}
	return changed, nil
}

// CountJobIDs counts rows, optionally filtered by source ("" = all).
func (ix *Index) CountJobIDs(source job.Source) (int, error) {
	var count int
	var err error
	if source == "" {
		err = ix.db.QueryRow("SELECT COUNT(*) FROM job_ids").Scan(&count)
	} else {
		err = ix.db.QueryRow("SELECT COUNT(*) FROM job_ids WHERE source = ?", string(source)).Scan(&count)
	}
	if err != nil {
		return 0, errors.Wrap(err, "count job ids")
	}
	return count, nil
}

// CountUnscraped counts unscraped rows for one source.
func (ix *Index) CountUnscraped(source job.Source) (int, error) {
	var count int
	err := ix.db.QueryRow(
		"SELECT COUNT(*) FROM job_ids WHERE source = ? AND scraped = 0",
		string(source),
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "count unscraped")
	}
	return count, nil
}

// GetLedgerOffset returns the stored ingestion cursor for a ledger file,
// or 0 when the file has never been ingested.
func (ix *Index) GetLedgerOffset(path string, kind Kind) (int64, error) {
	var offset int64
	err := ix.db.QueryRow(ledgerOffsetSelectQuery, path, string(kind)).Scan(&offset)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "get ledger offset for %s", path)
	}
	return offset, nil
}

// SetLedgerOffset upserts the ingestion cursor for a ledger file.
func (ix *Index) SetLedgerOffset(path string, kind Kind, bytesProcessed int64) error {
	_, err := ix.db.Exec(
		ledgerOffsetUpsertQuery,
		path,
		string(kind),
		bytesProcessed,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrapf(err, "set ledger offset for %s", path)
	}
	return nil
}

// SchemaVersion reads the stored schema version; absent means v1.
func (ix *Index) SchemaVersion() (int, error) {
	var value string
	err := ix.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&value)
	if err == sql.ErrNoRows {
		return 1, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "read schema version")
	}
	var version int
	for _, c := range value {
		if c < '0' || c > '9' {
			return 0, errors.Newf("malformed schema version %q", value)
		}
		version = version*10 + int(c-'0')
	}
	return version, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJobID(row rowScanner) (job.ID, error) {
	var rec job.ID
	var source, discoveredAt string
	var keyword, country, parent sql.NullString
	var scraped int

	if err := row.Scan(&rec.JobID, &source, &discoveredAt, &keyword, &country, &parent, &scraped); err != nil {
		return job.ID{}, errors.Wrap(err, "scan job id row")
	}

	rec.Source = job.Source(source)
	ts, err := time.Parse(time.RFC3339Nano, discoveredAt)
	if err != nil {
		return job.ID{}, errors.Wrapf(err, "parse discovered_at %q", discoveredAt)
	}
	rec.DiscoveredAt = ts
	rec.SearchKeyword = keyword.String
	rec.SearchCountry = country.String
	rec.ParentJobID = parent.String
	rec.Scraped = scraped != 0
	return rec, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
