package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jobtrawl/jobtrawl/job"
)

func startTestWatcher(t *testing.T, st *Storage) *LedgerWatcher {
	t.Helper()
	watcher, err := NewLedgerWatcher(st, nil)
	require.NoError(t, err)
	watcher.debouncePeriod = 50 * time.Millisecond
	watcher.Start()
	t.Cleanup(func() { watcher.Stop() })
	return watcher
}

// TestLedgerWatcher_IngestsDroppedLedger simulates an out-of-band sync tool
// placing another machine's ledger file into the watched directory.
func TestLedgerWatcher_IngestsDroppedLedger(t *testing.T) {
	dataDir := t.TempDir()
	st := openTestStorage(t, dataDir, "run-local")
	startTestWatcher(t, st)

	cfg := testConfig(t, dataDir, "run-local")
	remote := filepath.Join(cfg.LedgerJobIDsDir(), "run-remote.jsonl")
	line := `{"job_id":"r1","source":"search","discovered_at":"2026-01-01T00:00:00Z"}` + "\n"
	require.NoError(t, os.WriteFile(remote, []byte(line), 0o644))

	require.Eventually(t, func() bool {
		count, err := st.Index().CountJobIDs(job.SourceSearch)
		return err == nil && count == 1
	}, 5*time.Second, 25*time.Millisecond, "dropped ledger never ingested")
}

// TestLedgerWatcher_DebouncesBursts drops several files in quick succession;
// the debounced ingestion pass must still pick up every one of them.
func TestLedgerWatcher_DebouncesBursts(t *testing.T) {
	dataDir := t.TempDir()
	st := openTestStorage(t, dataDir, "run-local")
	startTestWatcher(t, st)

	cfg := testConfig(t, dataDir, "run-local")
	lines := map[string]string{
		"run-a.jsonl": `{"job_id":"a1","source":"search","discovered_at":"2026-01-01T00:00:00Z"}` + "\n",
		"run-b.jsonl": `{"job_id":"b1","source":"search","discovered_at":"2026-01-01T00:00:00Z"}` + "\n",
		"run-c.jsonl": `{"job_id":"c1","source":"search","discovered_at":"2026-01-01T00:00:00Z"}` + "\n",
	}
	for name, line := range lines {
		path := filepath.Join(cfg.LedgerJobIDsDir(), name)
		require.NoError(t, os.WriteFile(path, []byte(line), 0o644))
	}

	require.Eventually(t, func() bool {
		count, err := st.Index().CountJobIDs(job.SourceSearch)
		return err == nil && count == 3
	}, 5*time.Second, 25*time.Millisecond, "burst of ledgers never fully ingested")
}

func TestLedgerWatcher_Stop(t *testing.T) {
	st := openTestStorage(t, t.TempDir(), "run-local")

	watcher, err := NewLedgerWatcher(st, nil)
	require.NoError(t, err)
	watcher.Start()
	require.NoError(t, watcher.Stop())
}
