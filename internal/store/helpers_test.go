package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/paper"
	"github.com/perforate-org/arche/internal/domain/user"
	"github.com/perforate-org/arche/internal/kv"
)

var april2025 = time.Date(2025, time.April, 15, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) entityid.Clock {
	return entityid.ClockFunc(func() time.Time { return t })
}

type testEnv struct {
	db     *kv.Memory
	state  *State
	users  *Users
	papers *Entities[*paper.Paper]
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := kv.NewMemory()
	t.Cleanup(func() { _ = db.Close() })
	return openTestEnv(t, db)
}

// openTestEnv builds a fresh State over an existing store, as a restarted
// process would.
func openTestEnv(t *testing.T, db *kv.Memory) *testEnv {
	t.Helper()
	state := New(db, Options{Clock: fixedClock(april2025)})
	papers, err := NewEntities(state, Kind[*paper.Paper]{
		Name:   paper.Kind,
		Encode: paper.Encode,
		Decode: paper.Decode,
	})
	require.NoError(t, err)
	return &testEnv{db: db, state: state, users: state.Users(), papers: papers}
}

func userID(t *testing.T, s string) *user.ID {
	t.Helper()
	id, err := user.NewID(s)
	require.NoError(t, err)
	return &id
}

func rawContent() paper.Content {
	return paper.Content{
		Format: paper.FormatMarkdown,
		Source: paper.Source{Kind: paper.SourceRaw, Raw: []byte("# body")},
	}
}
