package kv

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/google/btree"
)

const memoryDegree = 32

type memoryItem struct {
	key   []byte
	value []byte
}

func lessItem(a, b memoryItem) bool { return bytes.Compare(a.key, b.key) < 0 }

// Memory is an in-process Store backed by one B-tree per bucket. It is the
// backend for tests and for running without persistence.
type Memory struct {
	mu      sync.RWMutex
	buckets map[string]*btree.BTreeG[memoryItem]
	closed  bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]*btree.BTreeG[memoryItem])}
}

func (m *Memory) tree(bucket string, create bool) *btree.BTreeG[memoryItem] {
	t, ok := m.buckets[bucket]
	if !ok && create {
		t = btree.NewG(memoryDegree, lessItem)
		m.buckets[bucket] = t
	}
	return t
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, bucket string, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	t := m.tree(bucket, false)
	if t == nil {
		return nil, ErrKeyNotFound
	}
	item, ok := t.Get(memoryItem{key: key})
	if !ok {
		return nil, ErrKeyNotFound
	}
	return clone(item.value), nil
}

// Has implements Store.
func (m *Memory) Has(ctx context.Context, bucket string, key []byte) (bool, error) {
	_, err := m.Get(ctx, bucket, key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Apply implements Store. All operations are applied under one write lock.
func (m *Memory) Apply(ctx context.Context, b *Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, op := range b.ops {
		t := m.tree(op.Bucket, !op.Delete)
		if op.Delete {
			if t != nil {
				t.Delete(memoryItem{key: op.Key})
			}
			continue
		}
		t.ReplaceOrInsert(memoryItem{key: clone(op.Key), value: clone(op.Value)})
	}
	return nil
}

// Ascend implements Store. The bucket is cloned first so fn may call back
// into the store.
func (m *Memory) Ascend(ctx context.Context, bucket string, fn func(key, value []byte) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	t := m.tree(bucket, false)
	var snapshot *btree.BTreeG[memoryItem]
	if t != nil {
		snapshot = t.Clone()
	}
	m.mu.RUnlock()

	if snapshot == nil {
		return nil
	}
	snapshot.Ascend(func(item memoryItem) bool {
		return fn(clone(item.key), clone(item.value))
	})
	return ctx.Err()
}

// Last implements Store.
func (m *Memory) Last(ctx context.Context, bucket string) ([]byte, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, nil, ErrClosed
	}
	t := m.tree(bucket, false)
	if t == nil {
		return nil, nil, ErrKeyNotFound
	}
	item, ok := t.Max()
	if !ok {
		return nil, nil, ErrKeyNotFound
	}
	return clone(item.key), clone(item.value), nil
}

// Close implements Store.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
