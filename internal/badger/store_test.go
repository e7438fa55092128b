package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perforate-org/arche/internal/kv"
	"github.com/perforate-org/arche/internal/kv/kvtest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Conformance(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		return newTestStore(t)
	})
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.GCInterval = 0

	s, err := Open(cfg)
	require.NoError(t, err)
	b := kv.NewBatch()
	b.Put("papers", []byte{0x01}, []byte("persisted"))
	require.NoError(t, s.Apply(ctx, b))
	require.NoError(t, s.Sync())
	require.NoError(t, s.Close())

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, "papers", []byte{0x01})
	require.NoError(t, err)
	require.Equal(t, []byte("persisted"), got)
}

func TestStore_GCRunnerStartsAndStops(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	s, err := Open(cfg)
	require.NoError(t, err)
	require.NotNil(t, s.gc)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestStore_Closed(t *testing.T) {
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Get(context.Background(), "b", []byte("k"))
	require.ErrorIs(t, err, kv.ErrClosed)
	require.ErrorIs(t, s.Apply(context.Background(), kv.NewBatch()), kv.ErrClosed)
}

func TestStore_RejectsNULInBucket(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "a\x00b", []byte("k"))
	require.Error(t, err)
}

func TestStore_LastIgnoresNeighbourBuckets(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	b := kv.NewBatch()
	b.Put("a", []byte{0x05}, []byte("a5"))
	b.Put("a\x01", []byte{0x00}, []byte("next bucket"))
	b.Put("b", []byte{0xff, 0xff}, []byte("b"))
	require.NoError(t, s.Apply(ctx, b))

	k, v, err := s.Last(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, []byte{0x05}, k)
	require.Equal(t, []byte("a5"), v)
}

func TestStore_InvalidConfig(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)

	cfg := DefaultConfig(t.TempDir())
	cfg.GCDiscardRatio = 2
	_, err = Open(cfg)
	require.Error(t, err)
}
