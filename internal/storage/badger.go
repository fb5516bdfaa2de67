package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/bakkerme/atomsplit/internal/core"
)

const runPrefix = "run/"

// ErrNotFound is returned when no run matches.
var ErrNotFound = errors.New("run not found")

// BadgerDB keeps the history of runs, keyed by run ID. Run IDs embed their
// start time, so key order is start order.
type BadgerDB struct {
	db *badger.DB
}

// NewBadgerDB opens the database at path. An empty path keeps everything in
// memory.
func NewBadgerDB(path string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	} else if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerDB{db: db}, nil
}

func (b *BadgerDB) Close() error {
	return b.db.Close()
}

func (b *BadgerDB) SaveRun(run *core.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(runPrefix+run.ID), data)
	})
}

func (b *BadgerDB) GetRun(id string) (*core.Run, error) {
	var run core.Run
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &run)
		})
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns up to limit runs, newest first. A limit of 0 returns all.
func (b *BadgerDB) ListRuns(limit int) ([]*core.Run, error) {
	runs := []*core.Run{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(runPrefix + "\xff")); it.Valid() && (limit == 0 || len(runs) < limit); it.Next() {
			var run core.Run
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			}); err != nil {
				return err
			}
			runs = append(runs, &run)
		}
		return nil
	})
	return runs, err
}

// LatestRun returns the most recently started run.
func (b *BadgerDB) LatestRun() (*core.Run, error) {
	runs, err := b.ListRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return runs[0], nil
}
