package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrNoBlob is returned by BlobStore.LoadBlob when nothing was saved under the name.
var ErrNoBlob = errors.New("kv: no blob saved")

// BlobStore saves and loads opaque named blobs, such as index snapshots.
type BlobStore interface {
	SaveBlob(ctx context.Context, name string, data []byte) error
	LoadBlob(ctx context.Context, name string) ([]byte, error)
	// DeleteBlob removes the blob. Deleting a missing blob is not an error.
	DeleteBlob(ctx context.Context, name string) error
}

// BucketBlobs keeps blobs in a bucket of a Store, so they share the
// backend's durability.
type BucketBlobs struct {
	store  Store
	bucket string
}

// NewBucketBlobs returns a BlobStore writing to bucket in store.
func NewBucketBlobs(store Store, bucket string) *BucketBlobs {
	return &BucketBlobs{store: store, bucket: bucket}
}

// SaveBlob implements BlobStore.
func (b *BucketBlobs) SaveBlob(ctx context.Context, name string, data []byte) error {
	batch := NewBatch()
	batch.Put(b.bucket, []byte(name), data)
	return b.store.Apply(ctx, batch)
}

// LoadBlob implements BlobStore.
func (b *BucketBlobs) LoadBlob(ctx context.Context, name string) ([]byte, error) {
	data, err := b.store.Get(ctx, b.bucket, []byte(name))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, ErrNoBlob
	}
	return data, err
}

// DeleteBlob implements BlobStore.
func (b *BucketBlobs) DeleteBlob(ctx context.Context, name string) error {
	batch := NewBatch()
	batch.Delete(b.bucket, []byte(name))
	return b.store.Apply(ctx, batch)
}

const lockRetryDelay = 100 * time.Millisecond

// FileBlobs keeps each blob in its own file under a directory. Writers and
// readers take a lock file so several processes can share the directory.
type FileBlobs struct {
	dir string
}

// NewFileBlobs returns a BlobStore rooted at dir, creating it if needed.
func NewFileBlobs(dir string) (*FileBlobs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FileBlobs{dir: dir}, nil
}

func (f *FileBlobs) path(name string) string {
	return filepath.Join(f.dir, filepath.Base(name)+".blob")
}

// SaveBlob implements BlobStore. The file is replaced atomically via rename.
func (f *FileBlobs) SaveBlob(ctx context.Context, name string, data []byte) error {
	target := f.path(name)
	lock := flock.New(target + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", target, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", target)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(f.dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp blob: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename blob: %w", err)
	}
	return nil
}

// LoadBlob implements BlobStore.
func (f *FileBlobs) LoadBlob(ctx context.Context, name string) ([]byte, error) {
	target := f.path(name)
	lock := flock.New(target + ".lock")
	locked, err := lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", target, err)
	}
	if !locked {
		return nil, fmt.Errorf("lock %s: not acquired", target)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoBlob
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// DeleteBlob implements BlobStore.
func (f *FileBlobs) DeleteBlob(ctx context.Context, name string) error {
	target := f.path(name)
	lock := flock.New(target + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", target, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", target)
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}
