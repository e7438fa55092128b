package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/perforate-org/arche/internal/kv"
)

const ascendPageSize = 256

// KVStore implements kv.Store on the kv table.
type KVStore struct {
	db *DB
}

// NewKVStore creates a new KVStore
func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db}
}

// Get retrieves the value stored under key
func (s *KVStore) Get(ctx context.Context, bucket string, key []byte) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE bucket = ? AND key = ?`,
		bucket, key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s key: %w", bucket, err)
	}
	return value, nil
}

// Has reports whether key is present
func (s *KVStore) Has(ctx context.Context, bucket string, key []byte) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM kv WHERE bucket = ? AND key = ?`,
		bucket, key,
	).Scan(&one)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s key: %w", bucket, err)
	}
	return true, nil
}

// Apply writes the batch in a single transaction
func (s *KVStore) Apply(ctx context.Context, b *kv.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.Len() == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, op := range b.Ops() {
		if op.Delete {
			_, err = tx.ExecContext(ctx, `DELETE FROM kv WHERE bucket = ? AND key = ?`, op.Bucket, op.Key)
		} else {
			value := op.Value
			if value == nil {
				value = []byte{}
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO kv (bucket, key, value) VALUES (?, ?, ?)
				ON CONFLICT(bucket, key) DO UPDATE SET value = excluded.value
			`, op.Bucket, op.Key, value)
		}
		if err != nil {
			return fmt.Errorf("failed to apply %s op: %w", op.Bucket, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

type kvRow struct {
	key   []byte
	value []byte
}

// Ascend walks the bucket in key order. Rows are read a page at a time and
// the cursor is closed before fn runs, so fn may use the store.
func (s *KVStore) Ascend(ctx context.Context, bucket string, fn func(key, value []byte) bool) error {
	var after []byte
	for {
		page, err := s.page(ctx, bucket, after)
		if err != nil {
			return err
		}
		for _, row := range page {
			if !fn(row.key, row.value) {
				return nil
			}
		}
		if len(page) < ascendPageSize {
			return nil
		}
		after = page[len(page)-1].key
	}
}

func (s *KVStore) page(ctx context.Context, bucket string, after []byte) ([]kvRow, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if after == nil {
		rows, err = s.db.QueryContext(ctx,
			`SELECT key, value FROM kv WHERE bucket = ? ORDER BY key LIMIT ?`,
			bucket, ascendPageSize)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT key, value FROM kv WHERE bucket = ? AND key > ? ORDER BY key LIMIT ?`,
			bucket, after, ascendPageSize)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", bucket, err)
	}
	defer rows.Close()

	var page []kvRow
	for rows.Next() {
		var row kvRow
		if err := rows.Scan(&row.key, &row.value); err != nil {
			return nil, fmt.Errorf("failed to read %s row: %w", bucket, err)
		}
		page = append(page, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", bucket, err)
	}
	return page, nil
}

// Last returns the greatest key in the bucket
func (s *KVStore) Last(ctx context.Context, bucket string) ([]byte, []byte, error) {
	var key, value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT key, value FROM kv WHERE bucket = ? ORDER BY key DESC LIMIT 1`,
		bucket,
	).Scan(&key, &value)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, kv.ErrKeyNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read last %s key: %w", bucket, err)
	}
	return key, value, nil
}

// Close closes the underlying database
func (s *KVStore) Close() error {
	return s.db.Close()
}
