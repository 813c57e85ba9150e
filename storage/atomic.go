package storage

import (
	"os"
	"path/filepath"

	"github.com/jobtrawl/jobtrawl/errors"
)

// WriteFileAtomic writes data to path via a temp file in the same directory
// followed by a rename, so no reader ever observes a partially written file.
// Parent directories are created as needed.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "create temp file in %s", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "write temp file %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "close temp file %s", tmpName)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "rename %s to %s", tmpName, path)
	}
	return nil
}
