package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathHelpers(t *testing.T) {
	cfg := &Config{DataDir: "/srv/jobs", RunID: "run-1"}

	assert.Equal(t, filepath.Join("/srv/jobs", "ledger", "job_ids"), cfg.LedgerJobIDsDir())
	assert.Equal(t, filepath.Join("/srv/jobs", "ledger", "job_scrapes"), cfg.LedgerJobScrapesDir())
	assert.Equal(t, filepath.Join("/srv/jobs", "index", "jobs.db"), cfg.IndexDBPath())
	assert.Equal(t, filepath.Join("/srv/jobs", "job_details"), cfg.JobDetailsDir())
	assert.Equal(t, filepath.Join("/srv/jobs", "exports"), cfg.ExportsDir())
	assert.Equal(t, filepath.Join("/srv/jobs", "ledger", "job_ids", "run-1.jsonl"), cfg.LedgerJobIDsPath())
	assert.Equal(t, filepath.Join("/srv/jobs", "ledger", "job_scrapes", "run-1.jsonl"), cfg.LedgerJobScrapesPath())
}

func TestEnsureDirectories(t *testing.T) {
	cfg := &Config{DataDir: filepath.Join(t.TempDir(), "data"), RunID: "run-1"}

	require.NoError(t, cfg.EnsureDirectories())

	for _, dir := range []string{
		cfg.LedgerJobIDsDir(),
		cfg.LedgerJobScrapesDir(),
		filepath.Dir(cfg.IndexDBPath()),
		cfg.JobDetailsDir(),
	} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}

	// Re-running against existing directories is a no-op.
	require.NoError(t, cfg.EnsureDirectories())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobtrawl.toml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir = \"/srv/jobs\"\nlog_json = true\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/jobs", cfg.DataDir)
	assert.True(t, cfg.LogJSON)
	assert.NotEmpty(t, cfg.RunID)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestNewRunID(t *testing.T) {
	a := NewRunID()
	b := NewRunID()

	assert.NotEqual(t, a, b, "run ids must be unique")
	require.True(t, strings.Contains(a, "-"), "run id %q must carry a timestamp prefix", a)
	prefix := a[:strings.LastIndex(a, "-")]
	assert.Len(t, prefix, len("20060102T150405Z"))
	assert.Len(t, a[strings.LastIndex(a, "-")+1:], 8)
}
