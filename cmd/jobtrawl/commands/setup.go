package commands

import (
	"github.com/jobtrawl/jobtrawl/config"
	"github.com/jobtrawl/jobtrawl/errors"
	"github.com/jobtrawl/jobtrawl/logger"
	"github.com/jobtrawl/jobtrawl/storage"
)

// openStorage loads configuration and constructs the storage facade.
// Construction already ingests any new ledger bytes, so every command starts
// from a consistent view.
func openStorage() (*storage.Storage, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, errors.Wrap(err, "load configuration")
	}

	st, err := storage.New(cfg, logger.Logger)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open storage")
	}
	return st, cfg, nil
}
