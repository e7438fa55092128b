package kv_test

import (
	"context"
	"testing"

	"github.com/perforate-org/arche/internal/kv"
	"github.com/perforate-org/arche/internal/kv/kvtest"
	"github.com/stretchr/testify/require"
)

func TestMemory_Conformance(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		s := kv.NewMemory()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMemory_ClosedStore(t *testing.T) {
	s := kv.NewMemory()
	require.NoError(t, s.Close())

	_, err := s.Get(context.Background(), "b", []byte("k"))
	require.ErrorIs(t, err, kv.ErrClosed)
	require.ErrorIs(t, s.Apply(context.Background(), kv.NewBatch()), kv.ErrClosed)
}

func TestMemory_AscendCallbackMayWrite(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()

	b := kv.NewBatch()
	b.Put("b", []byte("a"), []byte("1"))
	b.Put("b", []byte("b"), []byte("2"))
	require.NoError(t, s.Apply(ctx, b))

	require.NoError(t, s.Ascend(ctx, "b", func(k, _ []byte) bool {
		del := kv.NewBatch()
		del.Delete("b", k)
		require.NoError(t, s.Apply(ctx, del))
		return true
	}))

	_, _, err := s.Last(ctx, "b")
	require.ErrorIs(t, err, kv.ErrKeyNotFound)
}

func TestTable_TypedAccess(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()
	type row struct {
		Name string `json:"name"`
	}
	tbl := kv.NewTable[string, row](s, "rows", kv.StringCodec[string]{}, kv.JSONCodec[row]{})

	_, err := tbl.LastKey(ctx)
	require.ErrorIs(t, err, kv.ErrKeyNotFound)

	require.NoError(t, tbl.Put(ctx, "b", row{Name: "bee"}))
	require.NoError(t, tbl.Put(ctx, "a", row{Name: "ay"}))

	got, err := tbl.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "ay", got.Name)

	last, err := tbl.LastKey(ctx)
	require.NoError(t, err)
	require.Equal(t, "b", last)

	var names []string
	require.NoError(t, tbl.Ascend(ctx, func(_ string, v row) bool {
		names = append(names, v.Name)
		return true
	}))
	require.Equal(t, []string{"ay", "bee"}, names)

	require.NoError(t, tbl.Delete(ctx, "a"))
	ok, err := tbl.Has(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTable_DecodeErrorStopsScan(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()
	b := kv.NewBatch()
	b.Put("rows", []byte("a"), []byte("{not json"))
	require.NoError(t, s.Apply(ctx, b))

	tbl := kv.NewTable[string, map[string]string](s, "rows", kv.StringCodec[string]{}, kv.JSONCodec[map[string]string]{})
	err := tbl.Ascend(ctx, func(string, map[string]string) bool { return true })
	require.Error(t, err)
}
