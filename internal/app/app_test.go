package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perforate-org/arche/internal/domain/article"
	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/paper"
	"github.com/perforate-org/arche/internal/domain/post"
	"github.com/perforate-org/arche/internal/domain/user"
	"github.com/perforate-org/arche/internal/kv"
)

func TestApp_SuspendAndResumeRestoresIndices(t *testing.T) {
	ctx := context.Background()
	db := kv.NewMemory()
	clock := entityid.ClockFunc(func() time.Time {
		return time.Date(2025, time.April, 2, 12, 0, 0, 0, time.UTC)
	})

	first, err := New(db, Options{Clock: clock})
	require.NoError(t, err)
	_, err = first.Manager.Resume(ctx)
	require.NoError(t, err)

	lead := user.NewPrimaryKey()
	id := "writer"
	_, err = first.Users.Register(ctx, lead, user.RegisterRequest{ID: &id, Name: "Writer"})
	require.NoError(t, err)
	a, err := first.Articles.CreateDraft(ctx, lead, article.NewDraft("Ordered keys", "", "body", post.Metadata{}))
	require.NoError(t, err)
	assert.Equal(t, "2025-04-0001", a.ID.String())
	first.Manager.Suspend(ctx)

	second, err := New(db, Options{Clock: clock})
	require.NoError(t, err)
	report, err := second.Manager.Resume(ctx)
	require.NoError(t, err)
	assert.True(t, report.Restored)

	listings, err := second.Articles.List(ctx, post.ListOptions{})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, a.ID, listings[0].ID)
	assert.Equal(t, lead, listings[0].LeadAuthor)

	// The counter was restored, not reset.
	next, err := second.Articles.CreateDraft(ctx, lead, article.NewDraft("Second", "", "", post.Metadata{}))
	require.NoError(t, err)
	assert.Equal(t, "2025-04-0002", next.ID.String())
	assert.Equal(t, 2, second.State.Stats().Titles[article.Kind])
}

// slowStore widens the window between loading and storing a profile.
type slowStore struct {
	kv.Store
}

func (s slowStore) Get(ctx context.Context, bucket string, key []byte) ([]byte, error) {
	time.Sleep(time.Millisecond)
	return s.Store.Get(ctx, bucket, key)
}

func TestApp_ConcurrentAuthorshipKeepsEveryLink(t *testing.T) {
	ctx := context.Background()
	db := kv.NewMemory()
	t.Cleanup(func() { _ = db.Close() })
	a, err := New(slowStore{Store: db}, Options{})
	require.NoError(t, err)
	_, err = a.Manager.Resume(ctx)
	require.NoError(t, err)

	lead := user.NewPrimaryKey()
	_, err = a.Users.Register(ctx, lead, user.RegisterRequest{Name: "Lead"})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := a.Articles.CreateDraft(ctx, lead, article.NewDraft(fmt.Sprintf("Article %d", i), "", "", post.Metadata{}))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := a.Papers.CreateDraft(ctx, lead, paper.NewDraft(fmt.Sprintf("Paper %d", i), "", paper.Content{
				Format: paper.FormatText,
				Source: paper.Source{Kind: paper.SourceRaw},
			}, post.Metadata{}))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	u, err := a.Users.Get(ctx, lead)
	require.NoError(t, err)
	assert.Len(t, u.LeadAuthored(article.Kind), n)
	assert.Len(t, u.LeadAuthored(paper.Kind), n)

	target, err := a.Articles.CreateDraft(ctx, lead, article.NewDraft("Shared", "", "", post.Metadata{}))
	require.NoError(t, err)
	coAuthors := make([]user.PrimaryKey, n)
	for i := range coAuthors {
		coAuthors[i] = user.NewPrimaryKey()
		_, err := a.Users.Register(ctx, coAuthors[i], user.RegisterRequest{Name: fmt.Sprintf("Co %d", i)})
		require.NoError(t, err)
	}
	for _, co := range coAuthors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Articles.AddCoAuthor(ctx, lead, target.ID, co)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := a.Articles.Get(ctx, lead, target.ID)
	require.NoError(t, err)
	assert.Len(t, got.CoAuthors, n)
	for _, co := range coAuthors {
		u, err := a.Users.Get(ctx, co)
		require.NoError(t, err)
		assert.Equal(t, []entityid.ID{target.ID}, u.CoAuthored(article.Kind))
	}
}
