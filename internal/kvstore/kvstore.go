// Package kvstore provides the durable ordered key-value store backing the
// crawl metadata. Two backends are available: an embedded Badger database
// (the default) and SQLite.
package kvstore

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kvstore: key not found")

// Put is a single pending write.
type Put struct {
	Key   []byte
	Value []byte
}

// Store is an ordered byte-string map. WriteBatch is atomic per batch: a
// crash either persists the whole batch or none of it, never a torn record.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key []byte) ([]byte, error)

	// WriteBatch applies all puts atomically.
	WriteBatch(puts []Put) error

	// Close flushes and releases the store.
	Close() error
}

// Backend selects a Store implementation.
type Backend string

const (
	BackendBadger Backend = "badger" // embedded LSM store (default)
	BackendSQLite Backend = "sqlite" // single-file SQLite database
)

// Open opens the store at path with the given backend, creating it if
// missing. An open failure is fatal to construction and returned as-is.
func Open(backend Backend, path string) (Store, error) {
	switch backend {
	case BackendBadger, "":
		return OpenBadger(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("kvstore: unknown backend %q", backend)
	}
}
