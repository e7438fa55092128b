package integration_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/perforate-org/arche/internal/app"
	"github.com/perforate-org/arche/internal/badger"
	"github.com/perforate-org/arche/internal/domain/article"
	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/paper"
	"github.com/perforate-org/arche/internal/domain/post"
	"github.com/perforate-org/arche/internal/domain/user"
	"github.com/perforate-org/arche/internal/kv"
	"github.com/perforate-org/arche/internal/sqlite"
	"github.com/perforate-org/arche/internal/store"
)

var may2025 = time.Date(2025, time.May, 20, 8, 0, 0, 0, time.UTC)

// backend opens the same durable store on every call, as a restarted process would.
type backend struct {
	name string
	open func(t *testing.T) kv.Store
}

func backends(t *testing.T) []backend {
	t.Helper()
	sqlitePath := filepath.Join(t.TempDir(), "arche.db")
	badgerPath := filepath.Join(t.TempDir(), "badger")
	return []backend{
		{
			name: "sqlite",
			open: func(t *testing.T) kv.Store {
				db, err := sqlite.New(sqlitePath)
				require.NoError(t, err)
				require.NoError(t, db.RunMigrations())
				return sqlite.NewKVStore(db)
			},
		},
		{
			name: "badger",
			open: func(t *testing.T) kv.Store {
				cfg := badger.DefaultConfig(badgerPath)
				cfg.GCInterval = 0
				s, err := badger.Open(cfg)
				require.NoError(t, err)
				return s
			},
		},
	}
}

func start(t *testing.T, db kv.Store, blobs kv.BlobStore) (*app.App, store.ResumeReport) {
	t.Helper()
	a, err := app.New(db, app.Options{
		Clock: entityid.ClockFunc(func() time.Time { return may2025 }),
		Blobs: blobs,
	})
	require.NoError(t, err)
	report, err := a.Manager.Resume(context.Background())
	require.NoError(t, err)
	return a, report
}

func TestIntegration_RestartRestoresIndices(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			db := b.open(t)
			a, report := start(t, db, nil)
			require.True(t, report.Rebuilt)
			require.Equal(t, "snapshot missing", report.Reason)

			alice := user.NewPrimaryKey()
			aliceID := "alice"
			_, err := a.Users.Register(ctx, alice, user.RegisterRequest{ID: &aliceID, Name: "Alice"})
			require.NoError(t, err)
			p, err := a.Papers.CreateDraft(ctx, alice, paper.NewDraft("Sorted Keys", "", paper.Content{
				Format: paper.FormatText,
				Source: paper.Source{Kind: paper.SourceHTTP, Location: "https://example.org/p.txt"},
			}, post.Metadata{}))
			require.NoError(t, err)
			_, err = a.Articles.CreateDraft(ctx, alice, article.NewDraft("Notes", "", "", post.Metadata{}))
			require.NoError(t, err)
			before := a.State.Capture()

			a.Manager.Terminate(ctx)
			require.NoError(t, db.Close())

			db = b.open(t)
			t.Cleanup(func() { _ = db.Close() })
			restarted, report := start(t, db, nil)
			require.True(t, report.Restored)
			require.False(t, report.Rebuilt)
			require.Equal(t, before, restarted.State.Capture())

			key, err := restarted.Users.Resolve("alice")
			require.NoError(t, err)
			require.Equal(t, alice, key)

			next, err := restarted.Papers.CreateDraft(ctx, alice, paper.NewDraft("Second", "", paper.Content{
				Format: paper.FormatText,
				Source: paper.Source{Kind: paper.SourceRaw},
			}, post.Metadata{}))
			require.NoError(t, err)
			require.Equal(t, "2025-05-0001", p.ID.String())
			require.Equal(t, "2025-05-0002", next.ID.String())
		})
	}
}

func TestIntegration_RebuildMatchesSnapshot(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			db := b.open(t)
			t.Cleanup(func() { _ = db.Close() })
			a, _ := start(t, db, nil)

			for _, name := range []string{"carol", "dave"} {
				key := user.NewPrimaryKey()
				id := name
				_, err := a.Users.Register(ctx, key, user.RegisterRequest{ID: &id, Name: name})
				require.NoError(t, err)
				_, err = a.Articles.CreateDraft(ctx, key, article.NewDraft("By "+name, "", "", post.Metadata{}))
				require.NoError(t, err)
			}
			want := a.State.Capture()

			require.NoError(t, a.Manager.Rebuild(ctx))
			require.Equal(t, want, a.State.Capture())
		})
	}
}

func TestIntegration_FileSnapshotSharedAcrossBackendRestart(t *testing.T) {
	ctx := context.Background()
	blobs, err := kv.NewFileBlobs(filepath.Join(t.TempDir(), "snapshots"))
	require.NoError(t, err)

	b := backends(t)[0]
	db := b.open(t)
	a, _ := start(t, db, blobs)
	key := user.NewPrimaryKey()
	_, err = a.Users.Register(ctx, key, user.RegisterRequest{Name: "Erin"})
	require.NoError(t, err)
	a.Manager.Suspend(ctx)
	require.NoError(t, db.Close())

	data, err := blobs.LoadBlob(ctx, store.SnapshotName)
	require.NoError(t, err)
	snap, err := store.DecodeSnapshot(data)
	require.NoError(t, err)
	require.Contains(t, snap.Users.Existence, key)

	db = b.open(t)
	t.Cleanup(func() { _ = db.Close() })
	restarted, report := start(t, db, blobs)
	require.True(t, report.Restored)
	require.True(t, restarted.Users.IsRegistered(key))
}
