// Package kvtest holds a conformance suite that every kv.Store backend runs.
package kvtest

import (
	"context"
	"testing"

	"github.com/perforate-org/arche/internal/kv"
	"github.com/stretchr/testify/require"
)

// Run exercises the kv.Store contract against stores produced by open. Each
// subtest gets a fresh store.
func Run(t *testing.T, open func(t *testing.T) kv.Store) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(context.Background(), "b", []byte("nope"))
		require.ErrorIs(t, err, kv.ErrKeyNotFound)

		ok, err := s.Has(context.Background(), "b", []byte("nope"))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("PutGetDelete", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)

		b := kv.NewBatch()
		b.Put("b", []byte("k"), []byte("v1"))
		require.NoError(t, s.Apply(ctx, b))

		got, err := s.Get(ctx, "b", []byte("k"))
		require.NoError(t, err)
		require.Equal(t, []byte("v1"), got)

		b = kv.NewBatch()
		b.Put("b", []byte("k"), []byte("v2"))
		require.NoError(t, s.Apply(ctx, b))
		got, err = s.Get(ctx, "b", []byte("k"))
		require.NoError(t, err)
		require.Equal(t, []byte("v2"), got)

		b = kv.NewBatch()
		b.Delete("b", []byte("k"))
		b.Delete("b", []byte("never-existed"))
		require.NoError(t, s.Apply(ctx, b))
		_, err = s.Get(ctx, "b", []byte("k"))
		require.ErrorIs(t, err, kv.ErrKeyNotFound)
	})

	t.Run("BucketsAreIsolated", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)

		b := kv.NewBatch()
		b.Put("a", []byte("k"), []byte("in-a"))
		b.Put("ab", []byte("k"), []byte("in-ab"))
		require.NoError(t, s.Apply(ctx, b))

		got, err := s.Get(ctx, "a", []byte("k"))
		require.NoError(t, err)
		require.Equal(t, []byte("in-a"), got)

		var keys int
		require.NoError(t, s.Ascend(ctx, "a", func(_, _ []byte) bool {
			keys++
			return true
		}))
		require.Equal(t, 1, keys)
	})

	t.Run("AscendOrderedAndStoppable", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)

		b := kv.NewBatch()
		for _, k := range [][]byte{{0x02, 0x00}, {0x00, 0xff}, {0x01}, {0x00, 0x01}} {
			b.Put("ord", k, k)
		}
		require.NoError(t, s.Apply(ctx, b))

		var seen [][]byte
		require.NoError(t, s.Ascend(ctx, "ord", func(k, _ []byte) bool {
			seen = append(seen, k)
			return true
		}))
		require.Equal(t, [][]byte{{0x00, 0x01}, {0x00, 0xff}, {0x01}, {0x02, 0x00}}, seen)

		var first [][]byte
		require.NoError(t, s.Ascend(ctx, "ord", func(k, _ []byte) bool {
			first = append(first, k)
			return len(first) < 2
		}))
		require.Len(t, first, 2)
	})

	t.Run("Last", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)

		_, _, err := s.Last(ctx, "empty")
		require.ErrorIs(t, err, kv.ErrKeyNotFound)

		b := kv.NewBatch()
		b.Put("l", []byte{0x01}, []byte("one"))
		b.Put("l", []byte{0x03}, []byte("three"))
		b.Put("l", []byte{0x02}, []byte("two"))
		b.Put("m", []byte{0xff}, []byte("other bucket"))
		require.NoError(t, s.Apply(ctx, b))

		k, v, err := s.Last(ctx, "l")
		require.NoError(t, err)
		require.Equal(t, []byte{0x03}, k)
		require.Equal(t, []byte("three"), v)
	})

	t.Run("BatchOrderWithinBatch", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)

		b := kv.NewBatch()
		b.Put("o", []byte("k"), []byte("first"))
		b.Delete("o", []byte("k"))
		b.Put("o", []byte("j"), []byte("kept"))
		require.NoError(t, s.Apply(ctx, b))

		ok, err := s.Has(ctx, "o", []byte("k"))
		require.NoError(t, err)
		require.False(t, ok)
		ok, err = s.Has(ctx, "o", []byte("j"))
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("RejectsEmptyBucket", func(t *testing.T) {
		s := open(t)
		b := kv.NewBatch()
		b.Put("ok", []byte("k"), []byte("v"))
		b.Put("", []byte("k"), []byte("v"))
		require.ErrorIs(t, s.Apply(context.Background(), b), kv.ErrEmptyBucket)

		ok, err := s.Has(context.Background(), "ok", []byte("k"))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("ReturnedValuesAreCopies", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		b := kv.NewBatch()
		b.Put("c", []byte("k"), []byte("abc"))
		require.NoError(t, s.Apply(ctx, b))

		got, err := s.Get(ctx, "c", []byte("k"))
		require.NoError(t, err)
		got[0] = 'z'

		again, err := s.Get(ctx, "c", []byte("k"))
		require.NoError(t, err)
		require.Equal(t, []byte("abc"), again)
	})
}
