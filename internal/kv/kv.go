// Package kv defines the sorted, bucketed key-value abstraction that the
// durable tables are stored in, plus typed table helpers on top of it.
//
// Keys within a bucket iterate in ascending byte order. Backends must apply a
// Batch atomically: either every operation lands or none does.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is returned when a key (or any key, for Last) is absent.
	ErrKeyNotFound = errors.New("kv: key not found")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("kv: store closed")
	// ErrEmptyBucket is returned for operations naming no bucket.
	ErrEmptyBucket = errors.New("kv: empty bucket name")
)

// Store is a sorted key-value store partitioned into named buckets.
type Store interface {
	// Get returns a copy of the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, bucket string, key []byte) ([]byte, error)
	// Has reports whether key is present.
	Has(ctx context.Context, bucket string, key []byte) (bool, error)
	// Apply commits every operation of b atomically.
	Apply(ctx context.Context, b *Batch) error
	// Ascend visits entries in ascending key order until fn returns false.
	Ascend(ctx context.Context, bucket string, fn func(key, value []byte) bool) error
	// Last returns the greatest key in bucket, or ErrKeyNotFound if it is empty.
	Last(ctx context.Context, bucket string) (key, value []byte, err error)
	Close() error
}

// Op is one mutation inside a Batch.
type Op struct {
	Bucket string
	Key    []byte
	Value  []byte
	Delete bool
}

// Batch collects mutations to apply atomically.
type Batch struct {
	ops []Op
}

// NewBatch returns an empty batch.
func NewBatch() *Batch { return &Batch{} }

// Put schedules key=value in bucket.
func (b *Batch) Put(bucket string, key, value []byte) {
	b.ops = append(b.ops, Op{Bucket: bucket, Key: clone(key), Value: clone(value)})
}

// Delete schedules removal of key from bucket. Deleting a missing key is not an error.
func (b *Batch) Delete(bucket string, key []byte) {
	b.ops = append(b.ops, Op{Bucket: bucket, Key: clone(key), Delete: true})
}

// Ops returns the scheduled operations in order.
func (b *Batch) Ops() []Op { return b.ops }

// Len returns the number of scheduled operations.
func (b *Batch) Len() int { return len(b.ops) }

// Validate rejects operations without a bucket name.
func (b *Batch) Validate() error {
	for _, op := range b.ops {
		if op.Bucket == "" {
			return ErrEmptyBucket
		}
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
