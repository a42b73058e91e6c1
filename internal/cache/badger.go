package cache

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// BadgerStore implements Store on top of BadgerDB
type BadgerStore struct {
	db     *badger.DB
	logger *log.Logger
}

// badgerLogger adapts a charmbracelet logger to badger.Logger
type badgerLogger struct {
	logger *log.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, args ...any)   { l.logger.Errorf(msg, args...) }
func (l *badgerLogger) Warningf(msg string, args ...any) { l.logger.Warnf(msg, args...) }

// badger is chatty at info level
func (l *badgerLogger) Infof(msg string, args ...any)  { l.logger.Debugf(msg, args...) }
func (l *badgerLogger) Debugf(msg string, args ...any) { l.logger.Debugf(msg, args...) }

// NewBadgerStore opens (creating if needed) a BadgerDB directory. An empty dir
// opens an in-memory database.
func NewBadgerStore(dir string, logger *log.Logger) (*BadgerStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}
	logger.Debug("Opened badger cache", "dir", dir)
	return &BadgerStore{db: db, logger: logger}, nil
}

func (s *BadgerStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	return value, true, nil
}

func (s *BadgerStore) Put(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
