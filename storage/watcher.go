package storage

import (
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jobtrawl/jobtrawl/errors"
)

// LedgerWatcher watches the ledger directories and re-runs ingestion when
// new ledger bytes appear, typically dropped by an out-of-band sync tool
// merging another machine's ledgers.
type LedgerWatcher struct {
	storage *Storage
	watcher *fsnotify.Watcher
	logger  *zap.SugaredLogger

	mu             sync.Mutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
}

// NewLedgerWatcher creates a watcher over the storage's ledger directories.
func NewLedgerWatcher(s *Storage, logger *zap.SugaredLogger) (*LedgerWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}

	for _, dir := range []string{s.cfg.LedgerJobIDsDir(), s.cfg.LedgerJobScrapesDir()} {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, errors.Wrapf(err, "watch ledger directory %s", dir)
		}
	}

	return &LedgerWatcher{
		storage:        s,
		watcher:        watcher,
		logger:         logger,
		debouncePeriod: 500 * time.Millisecond, // Debounce bursts from sync tools
	}, nil
}

// Start begins watching for ledger changes.
func (lw *LedgerWatcher) Start() {
	go lw.watchLoop()
}

// Stop stops watching for ledger changes.
func (lw *LedgerWatcher) Stop() error {
	return lw.watcher.Close()
}

// watchLoop monitors file system events
func (lw *LedgerWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-lw.watcher.Events:
			if !ok {
				return
			}

			// Only ingest on Write or Create of ledger files
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".jsonl") {
				continue
			}

			if lw.logger != nil {
				lw.logger.Debugw("Ledger watcher detected change",
					"file", event.Name,
					"op", event.Op.String(),
				)
			}
			lw.scheduleIngest()

		case err, ok := <-lw.watcher.Errors:
			if !ok {
				return
			}
			if lw.logger != nil {
				lw.logger.Warnw("Ledger watcher error", "error", err)
			}
		}
	}
}

// scheduleIngest debounces rapid file changes and triggers one ingestion pass
func (lw *LedgerWatcher) scheduleIngest() {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if lw.debounceTimer != nil {
		lw.debounceTimer.Stop()
	}

	lw.debounceTimer = time.AfterFunc(lw.debouncePeriod, func() {
		if err := lw.storage.IngestLedgers(); err != nil {
			if lw.logger != nil {
				lw.logger.Errorw("Watcher-triggered ingestion failed", "error", err)
			}
		}
	})
}
