package kvstore

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStore is the embedded Badger-backed Store.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a Badger database at path.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	// The persistence worker is the only writer and logs its own errors;
	// Badger's internal chatter adds nothing here.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store at %s: %w", path, err)
	}

	return &BadgerStore{db: db}, nil
}

// Get returns the value for key, or ErrNotFound.
func (s *BadgerStore) Get(key []byte) ([]byte, error) {
	var value []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return value, nil
}

// WriteBatch applies all puts in one atomic write batch.
func (s *BadgerStore) WriteBatch(puts []Put) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, p := range puts {
		if err := wb.Set(p.Key, p.Value); err != nil {
			return err
		}
	}

	return wb.Flush()
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
