package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/paper"
	"github.com/perforate-org/arche/internal/domain/post"
	"github.com/perforate-org/arche/internal/domain/user"
	"github.com/perforate-org/arche/internal/repository"
)

func insertPaper(t *testing.T, env *testEnv, lead user.PrimaryKey, title string) *paper.Paper {
	t.Helper()
	ctx := context.Background()
	id, err := env.papers.GenerateID(ctx)
	require.NoError(t, err)
	p := paper.NewDraft(title, "abstract", rawContent(), post.Metadata{})
	p.ID = id
	p.LeadAuthor = lead
	p.Status = post.StatusDraft
	p.CreatedAt = april2025
	p.UpdatedAt = april2025
	_, existed, err := env.papers.Insert(ctx, p)
	require.NoError(t, err)
	require.False(t, existed)
	return p
}

func TestEntities_GenerateIDSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.papers.GenerateID(ctx)
	require.NoError(t, err)
	second, err := env.papers.GenerateID(ctx)
	require.NoError(t, err)

	assert.Equal(t, "2025-04-0001", first.String())
	assert.Equal(t, "2025-04-0002", second.String())
}

func TestEntities_GenerateIDSkipsTakenIDs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Written behind the counter's back, as an import would.
	taken := entityid.MustParse("2025-04-0001")
	raw, err := paper.Encode(&paper.Paper{
		Header:  post.Header{ID: taken, Title: "imported", Status: post.StatusDraft},
		Content: rawContent(),
	})
	require.NoError(t, err)
	require.NoError(t, env.papers.idx.table.Put(ctx, taken, raw))

	id, err := env.papers.GenerateID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-04-0002", id.String())
}

func TestEntities_InsertAndIndices(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := user.NewPrimaryKey()

	p := insertPaper(t, env, alice, "Graph Rewriting")

	got, err := env.papers.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, post.Title("Graph Rewriting"), got.Title)
	assert.Equal(t, alice, got.LeadAuthor)

	sum, ok := env.papers.Summary(p.ID)
	require.True(t, ok)
	assert.Equal(t, post.Summary{ID: p.ID, LeadAuthor: alice}, sum)
	title, ok := env.papers.Title(p.ID)
	require.True(t, ok)
	assert.Equal(t, post.Title("Graph Rewriting"), title)

	contains, err := env.papers.Contains(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, contains)
}

func TestEntities_InsertReplaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := user.NewPrimaryKey()
	p := insertPaper(t, env, alice, "Before")

	p.Title = "After"
	p.UpdatedAt = april2025.Add(time.Hour)
	prev, existed, err := env.papers.Insert(ctx, p)
	require.NoError(t, err)
	require.True(t, existed)
	assert.Equal(t, post.Title("Before"), prev.Title)

	title, _ := env.papers.Title(p.ID)
	assert.Equal(t, post.Title("After"), title)
	assert.Equal(t, 1, env.papers.Len())
}

func TestEntities_SummariesOrdered(t *testing.T) {
	env := newTestEnv(t)
	alice := user.NewPrimaryKey()
	bob := user.NewPrimaryKey()

	a := insertPaper(t, env, alice, "one")
	b := insertPaper(t, env, bob, "two")
	c := insertPaper(t, env, alice, "three")

	assert.Equal(t, []post.Summary{
		{ID: a.ID, LeadAuthor: alice},
		{ID: b.ID, LeadAuthor: bob},
		{ID: c.ID, LeadAuthor: alice},
	}, env.papers.Summaries())
}

func TestEntities_Remove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := insertPaper(t, env, user.NewPrimaryKey(), "gone")

	removed, err := env.papers.Remove(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, removed.ID)

	_, ok := env.papers.Summary(p.ID)
	assert.False(t, ok)
	_, ok = env.papers.Title(p.ID)
	assert.False(t, ok)
	_, err = env.papers.Get(ctx, p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = env.papers.Remove(ctx, p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEntities_RejectsDuplicateKind(t *testing.T) {
	env := newTestEnv(t)
	_, err := NewEntities(env.state, Kind[*paper.Paper]{Name: paper.Kind, Encode: paper.Encode, Decode: paper.Decode})
	assert.ErrorIs(t, err, ErrKindRegistered)

	_, err = NewEntities(env.state, Kind[*paper.Paper]{Name: BucketUsers, Encode: paper.Encode, Decode: paper.Decode})
	assert.Error(t, err)
}
