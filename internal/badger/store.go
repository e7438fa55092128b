package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/perforate-org/arche/internal/kv"
)

// separator ends the bucket prefix of every key. Bucket names may not contain it.
const separator = 0x00

// Store implements kv.Store on one BadgerDB. Each bucket is the key range
// sharing the prefix bucket+separator.
type Store struct {
	db       *badger.DB
	gc       *gcRunner
	inMemory bool
	closed   atomic.Bool
}

// Open opens a Store and starts value log GC when configured.
func Open(cfg Config) (*Store, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, inMemory: cfg.InMemory}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		logger := cfg.Logger
		if logger == nil {
			logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		s.gc, err = startGC(db, cfg.GCInterval, cfg.GCDiscardRatio, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func prefix(bucket string) ([]byte, error) {
	if bucket == "" {
		return nil, kv.ErrEmptyBucket
	}
	if strings.IndexByte(bucket, separator) >= 0 {
		return nil, fmt.Errorf("badger: bucket name %q contains a NUL byte", bucket)
	}
	p := make([]byte, 0, len(bucket)+1)
	p = append(p, bucket...)
	return append(p, separator), nil
}

func fullKey(bucket string, key []byte) ([]byte, error) {
	p, err := prefix(bucket)
	if err != nil {
		return nil, err
	}
	return append(p, key...), nil
}

func (s *Store) check(ctx context.Context) error {
	if s.closed.Load() {
		return kv.ErrClosed
	}
	return ctx.Err()
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(ctx context.Context, bucket string, key []byte) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	k, err := fullKey(bucket, key)
	if err != nil {
		return nil, err
	}
	var value []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, kv.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s key: %w", bucket, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Has reports whether key is present.
func (s *Store) Has(ctx context.Context, bucket string, key []byte) (bool, error) {
	_, err := s.Get(ctx, bucket, key)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Apply commits b in a single transaction.
func (s *Store) Apply(ctx context.Context, b *kv.Batch) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, op := range b.Ops() {
			k, err := fullKey(op.Bucket, op.Key)
			if err != nil {
				return err
			}
			if op.Delete {
				err = txn.Delete(k)
			} else {
				err = txn.Set(k, op.Value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply batch: %w", err)
	}
	return nil
}

// Ascend visits the bucket in key order inside one read transaction.
func (s *Store) Ascend(ctx context.Context, bucket string, fn func(key, value []byte) bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	p, err := prefix(bucket)
	if err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			key := bytes.Clone(item.Key()[len(p):])
			if !fn(key, value) {
				return nil
			}
		}
		return nil
	})
}

// Last returns the greatest key of bucket.
func (s *Store) Last(ctx context.Context, bucket string) ([]byte, []byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, nil, err
	}
	p, err := prefix(bucket)
	if err != nil {
		return nil, nil, err
	}
	// Every key of the bucket sorts before the prefix with its separator bumped.
	upper := bytes.Clone(p)
	upper[len(upper)-1] = separator + 1

	var key, value []byte
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(upper)
		if !it.ValidForPrefix(p) {
			return kv.ErrKeyNotFound
		}
		item := it.Item()
		key = bytes.Clone(item.Key()[len(p):])
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return key, value, nil
}

// Sync flushes pending writes to disk.
func (s *Store) Sync() error {
	if s.closed.Load() {
		return kv.ErrClosed
	}
	if s.inMemory {
		return nil
	}
	return s.db.Sync()
}

// Close stops GC and closes the database. Later calls return nil.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}
