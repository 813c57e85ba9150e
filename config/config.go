// Package config holds the jobtrawl runtime configuration.
//
// There is deliberately no cached global: Load returns a fresh Config the
// caller owns and passes into each component constructor.
package config

import (
	"os"
	"path/filepath"
)

// DefaultDirPermissions for created data directories
const DefaultDirPermissions = 0o755

// Config represents the jobtrawl configuration
type Config struct {
	// DataDir is the root directory for ledgers, the index, and detail files
	DataDir string `mapstructure:"data_dir"`

	// LogJSON switches log output from console to JSON
	LogJSON bool `mapstructure:"log_json"`

	// RunID uniquely names this process's ledger files. Generated at Load
	// time; not read from config files.
	RunID string `mapstructure:"-"`
}

// LedgerJobIDsDir is the directory holding discovery ledgers.
func (c *Config) LedgerJobIDsDir() string {
	return filepath.Join(c.DataDir, "ledger", "job_ids")
}

// LedgerJobScrapesDir is the directory holding scrape-completion ledgers.
func (c *Config) LedgerJobScrapesDir() string {
	return filepath.Join(c.DataDir, "ledger", "job_scrapes")
}

// IndexDBPath is the path of the local SQLite index.
// The index is derived from the ledgers and safe to delete.
func (c *Config) IndexDBPath() string {
	return filepath.Join(c.DataDir, "index", "jobs.db")
}

// JobDetailsDir is the directory holding one detail file per scraped job.
func (c *Config) JobDetailsDir() string {
	return filepath.Join(c.DataDir, "job_details")
}

// ExportsDir is the default output directory for dataset exports.
func (c *Config) ExportsDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// LedgerJobIDsPath is this run's discovery ledger file.
func (c *Config) LedgerJobIDsPath() string {
	return filepath.Join(c.LedgerJobIDsDir(), c.RunID+".jsonl")
}

// LedgerJobScrapesPath is this run's scrape-completion ledger file.
func (c *Config) LedgerJobScrapesPath() string {
	return filepath.Join(c.LedgerJobScrapesDir(), c.RunID+".jsonl")
}

// EnsureDirectories creates all required data directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.LedgerJobIDsDir(),
		c.LedgerJobScrapesDir(),
		filepath.Dir(c.IndexDBPath()),
		c.JobDetailsDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			return err
		}
	}
	return nil
}
