package storage

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// OpenBadger opens the database of the local backend.
func OpenBadger(path string) (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
}

// OpenBadgerReadOnly opens a database for inspection while the widget may be running.
// A database needing a log truncate is repaired first.
func OpenBadgerReadOnly(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err == nil {
		return db, nil
	}
	if !strings.Contains(err.Error(), "Log truncate required") {
		return nil, err
	}

	repairOpts := badger.DefaultOptions(path).WithLogger(nil).WithBypassLockGuard(true)
	db, err = badger.Open(repairOpts)
	if err != nil {
		return nil, fmt.Errorf("repair failed: %w", err)
	}
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("repair failed: %w", err)
	}
	return badger.Open(opts)
}
