package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v3"

	"github.com/scigolib/nczarr/internal/logging"
)

// BadgerStore keeps chunks in an embedded badger database.
type BadgerStore struct {
	directory string
	bdp       *badger.DB
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore opens (creating if needed) a badger database at path.
// An empty path opens a purely in-memory database.
func NewBadgerStore(path string) (*BadgerStore, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			logging.Infof("Database not already at path (%s). Creating directory...", path)
			if err := os.MkdirAll(path, 0o744); err != nil {
				return nil, fmt.Errorf("can't make directory at %s: %w", path, err)
			}
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)
	opts.NumVersionsToKeep = 1
	opts.SyncWrites = false

	bdp, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger @ %q: %w", path, err)
	}
	logging.Debugf("Opened badger store @ %q", path)
	return &BadgerStore{directory: path, bdp: bdp}, nil
}

// Type implements Store.
func (db *BadgerStore) Type() string { return BadgerEngine }

// Get implements Store.
func (db *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var value []byte
	err := db.bdp.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put implements Store.
func (db *BadgerStore) Put(ctx context.Context, key string, val []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.bdp.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), append([]byte(nil), val...))
	})
}

// Delete implements Store.
func (db *BadgerStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.bdp.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close implements Store.
func (db *BadgerStore) Close() error {
	if db.bdp == nil {
		return nil
	}
	err := db.bdp.Close()
	db.bdp = nil
	return err
}
