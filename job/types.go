// Package job defines the core job-posting records: discovered ids, scrape
// completions, and full scraped details.
package job

import (
	"time"

	"github.com/jobtrawl/jobtrawl/errors"
)

// Source identifies how a job id was discovered.
type Source string

const (
	// SourceSearch marks ids found via keyword search
	SourceSearch Source = "search"
	// SourceRecommended marks ids found on another job's recommendation rail
	SourceRecommended Source = "recommended"
	// SourceManual marks ids entered by hand
	SourceManual Source = "manual"
)

// Sources lists all valid sources in a stable order.
func Sources() []Source {
	return []Source{SourceSearch, SourceRecommended, SourceManual}
}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceSearch, SourceRecommended, SourceManual:
		return true
	}
	return false
}

// ParseSource converts a string into a Source.
func ParseSource(s string) (Source, error) {
	src := Source(s)
	if !src.Valid() {
		return "", errors.Wrapf(errors.ErrInvalidRecord, "unknown source %q", s)
	}
	return src, nil
}

// ID is a discovered job reference with its provenance.
//
// Identity is the pair (JobID, Source): the same job may legitimately be
// discovered via multiple sources and each source's provenance is retained
// as its own row. Scraped is the only mutable field and transitions
// false -> true exactly once; it is never part of ledger identity.
type ID struct {
	JobID         string    `json:"job_id"`
	Source        Source    `json:"source"`
	DiscoveredAt  time.Time `json:"discovered_at"`
	SearchKeyword string    `json:"search_keyword,omitempty"`
	SearchCountry string    `json:"search_country,omitempty"`
	ParentJobID   string    `json:"parent_job_id,omitempty"`
	Scraped       bool      `json:"scraped"`
}

// Validate checks the fields required of every discovery record.
func (j *ID) Validate() error {
	if j.JobID == "" {
		return errors.Wrap(errors.ErrInvalidRecord, "missing job_id")
	}
	if !j.Source.Valid() {
		return errors.Wrapf(errors.ErrInvalidRecord, "unknown source %q", string(j.Source))
	}
	return nil
}

// ScrapeCompletion is the immutable fact that a job was scraped at a point
// in time. Append-only; re-scrapes produce additional completions.
type ScrapeCompletion struct {
	JobID     string    `json:"job_id"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Detail is the full scraped record for one job posting.
// Stored as one JSON document per job id; the file's existence doubles as a
// scrape-completion signal during reconciliation.
type Detail struct {
	JobID     string    `json:"job_id"`
	ScrapedAt time.Time `json:"scraped_at"`

	// Basic info
	Title         *string `json:"title"`
	CompanyName   *string `json:"company_name"`
	Location      *string `json:"location"`
	WorkplaceType *string `json:"workplace_type"`

	// Job details
	EmploymentType *string `json:"employment_type"`
	SeniorityLevel *string `json:"seniority_level"`
	Industry       *string `json:"industry"`
	JobFunction    *string `json:"job_function"`

	Description *string `json:"description"`

	// Metadata
	PostedDate     *string `json:"posted_date"`
	ApplicantCount *string `json:"applicant_count"`
	SalaryRange    *string `json:"salary_range"`

	Skills []string `json:"skills"`

	// Raw extraction output kept for debugging; stripped from exports
	// unless explicitly requested.
	RawSections map[string]interface{} `json:"raw_sections"`
}

// Validate checks the fields required of every detail record.
func (d *Detail) Validate() error {
	if d.JobID == "" {
		return errors.Wrap(errors.ErrInvalidRecord, "missing job_id")
	}
	return nil
}
