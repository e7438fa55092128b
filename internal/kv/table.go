package kv

import (
	"context"
	"fmt"
)

// Table is a typed view of one bucket.
type Table[K, V any] struct {
	store  Store
	bucket string
	keys   Codec[K]
	values Codec[V]
}

// NewTable binds bucket in store to the given key and value codecs.
func NewTable[K, V any](store Store, bucket string, keys Codec[K], values Codec[V]) *Table[K, V] {
	return &Table[K, V]{store: store, bucket: bucket, keys: keys, values: values}
}

// Bucket returns the bucket name.
func (t *Table[K, V]) Bucket() string { return t.bucket }

// Get returns the value under k, or ErrKeyNotFound.
func (t *Table[K, V]) Get(ctx context.Context, k K) (V, error) {
	var zero V
	key, err := t.keys.Encode(k)
	if err != nil {
		return zero, fmt.Errorf("%s: encode key: %w", t.bucket, err)
	}
	raw, err := t.store.Get(ctx, t.bucket, key)
	if err != nil {
		return zero, err
	}
	v, err := t.values.Decode(raw)
	if err != nil {
		return zero, fmt.Errorf("%s: decode value: %w", t.bucket, err)
	}
	return v, nil
}

// Has reports whether k is present.
func (t *Table[K, V]) Has(ctx context.Context, k K) (bool, error) {
	key, err := t.keys.Encode(k)
	if err != nil {
		return false, fmt.Errorf("%s: encode key: %w", t.bucket, err)
	}
	return t.store.Has(ctx, t.bucket, key)
}

// Put writes k=v in its own batch.
func (t *Table[K, V]) Put(ctx context.Context, k K, v V) error {
	b := NewBatch()
	if err := t.PutOp(b, k, v); err != nil {
		return err
	}
	return t.store.Apply(ctx, b)
}

// Delete removes k in its own batch.
func (t *Table[K, V]) Delete(ctx context.Context, k K) error {
	b := NewBatch()
	if err := t.DeleteOp(b, k); err != nil {
		return err
	}
	return t.store.Apply(ctx, b)
}

// PutOp schedules k=v on b.
func (t *Table[K, V]) PutOp(b *Batch, k K, v V) error {
	key, err := t.keys.Encode(k)
	if err != nil {
		return fmt.Errorf("%s: encode key: %w", t.bucket, err)
	}
	val, err := t.values.Encode(v)
	if err != nil {
		return fmt.Errorf("%s: encode value: %w", t.bucket, err)
	}
	b.Put(t.bucket, key, val)
	return nil
}

// DeleteOp schedules removal of k on b.
func (t *Table[K, V]) DeleteOp(b *Batch, k K) error {
	key, err := t.keys.Encode(k)
	if err != nil {
		return fmt.Errorf("%s: encode key: %w", t.bucket, err)
	}
	b.Delete(t.bucket, key)
	return nil
}

// Ascend visits decoded entries in key order. A decode failure stops the
// scan and is returned.
func (t *Table[K, V]) Ascend(ctx context.Context, fn func(k K, v V) bool) error {
	var decodeErr error
	err := t.store.Ascend(ctx, t.bucket, func(rawKey, rawValue []byte) bool {
		k, err := t.keys.Decode(rawKey)
		if err != nil {
			decodeErr = fmt.Errorf("%s: decode key: %w", t.bucket, err)
			return false
		}
		v, err := t.values.Decode(rawValue)
		if err != nil {
			decodeErr = fmt.Errorf("%s: decode value %x: %w", t.bucket, rawKey, err)
			return false
		}
		return fn(k, v)
	})
	if err != nil {
		return err
	}
	return decodeErr
}

// LastKey returns the greatest key, or ErrKeyNotFound when the table is empty.
func (t *Table[K, V]) LastKey(ctx context.Context) (K, error) {
	var zero K
	raw, _, err := t.store.Last(ctx, t.bucket)
	if err != nil {
		return zero, err
	}
	k, err := t.keys.Decode(raw)
	if err != nil {
		return zero, fmt.Errorf("%s: decode key: %w", t.bucket, err)
	}
	return k, nil
}
