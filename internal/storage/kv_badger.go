// ABOUTME: Badger engine for the KV backend: a local embedded LSM key-value store.
// ABOUTME: Supports an on-disk directory or a purely in-memory instance for tests.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
)

// BadgerEngine adapts a badger database to KVEngine.
type BadgerEngine struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a badger directory.
func OpenBadger(dir string) (*BadgerEngine, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerEngine{db: db}, nil
}

// OpenBadgerInMemory opens a badger instance that never touches disk.
func OpenBadgerInMemory() (*BadgerEngine, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerEngine{db: db}, nil
}

// DefaultKVPath returns the default badger directory under the data dir.
func DefaultKVPath() string {
	return filepath.Join(DataDir(), "kv")
}

// OpenKV opens the KV backend on a badger directory.
func OpenKV(dir string) (*KVStore, error) {
	engine, err := OpenBadger(dir)
	if err != nil {
		return nil, err
	}
	return NewKVStore(engine), nil
}

func (b *BadgerEngine) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return val, err
}

func (b *BadgerEngine) Set(key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (b *BadgerEngine) Delete(key []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (b *BadgerEngine) Keys() ([][]byte, error) {
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

func (b *BadgerEngine) Close() error {
	return b.db.Close()
}
