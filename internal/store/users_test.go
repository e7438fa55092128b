package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perforate-org/arche/internal/domain/user"
	"github.com/perforate-org/arche/internal/repository"
)

// assertBidirectional checks that the two id maps mirror each other.
func assertBidirectional(t *testing.T, s *State) {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()
	require.Len(t, s.userIdx.ids, len(s.userIdx.principals))
	for id, key := range s.userIdx.principals {
		assert.Equal(t, id, s.userIdx.ids[key])
	}
}

func TestUsers_Add(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := user.NewPrimaryKey()

	require.NoError(t, env.users.Add(ctx, alice, user.New("Alice", userID(t, "alice"))))

	assert.True(t, env.users.Contains(alice))
	key, ok := env.users.KeyByID("alice")
	require.True(t, ok)
	assert.Equal(t, alice, key)
	name, ok := env.users.Name(alice)
	require.True(t, ok)
	assert.Equal(t, user.Name("Alice"), name)

	got, err := env.users.Get(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, got.ID)
	assert.Equal(t, user.ID("alice"), *got.ID)
	assertBidirectional(t, env.state)
}

func TestUsers_AddConflicts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := user.NewPrimaryKey()
	require.NoError(t, env.users.Add(ctx, alice, user.New("Alice", userID(t, "alice"))))

	err := env.users.Add(ctx, alice, user.New("Again", nil))
	assert.ErrorIs(t, err, repository.ErrPrimaryKeyAlreadyExists)

	bob := user.NewPrimaryKey()
	err = env.users.Add(ctx, bob, user.New("Bob", userID(t, "alice")))
	assert.ErrorIs(t, err, repository.ErrIDAlreadyExists)
	assert.False(t, env.users.Contains(bob))

	_, err = env.users.Get(ctx, bob)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUsers_UpdateID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := user.NewPrimaryKey()
	require.NoError(t, env.users.Add(ctx, alice, user.New("Alice", userID(t, "alice"))))

	require.NoError(t, env.users.UpdateID(ctx, alice, userID(t, "alice2")))

	_, ok := env.users.KeyByID("alice")
	assert.False(t, ok)
	key, ok := env.users.KeyByID("alice2")
	require.True(t, ok)
	assert.Equal(t, alice, key)
	id, ok := env.users.IDByKey(alice)
	require.True(t, ok)
	assert.Equal(t, user.ID("alice2"), id)

	got, err := env.users.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, user.ID("alice2"), *got.ID)
	assertBidirectional(t, env.state)

	// idempotent
	require.NoError(t, env.users.UpdateID(ctx, alice, userID(t, "alice2")))
	assertBidirectional(t, env.state)

	require.NoError(t, env.users.UpdateID(ctx, alice, nil))
	_, ok = env.users.IDByKey(alice)
	assert.False(t, ok)
	_, ok = env.users.KeyByID("alice2")
	assert.False(t, ok)
	assertBidirectional(t, env.state)
}

func TestUsers_UpdateIDTakenChangesNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := user.NewPrimaryKey()
	bob := user.NewPrimaryKey()
	require.NoError(t, env.users.Add(ctx, alice, user.New("Alice", userID(t, "alice"))))
	require.NoError(t, env.users.Add(ctx, bob, user.New("Bob", userID(t, "bob"))))

	before := env.state.Capture()
	err := env.users.UpdateID(ctx, bob, userID(t, "alice"))
	require.ErrorIs(t, err, repository.ErrIDAlreadyExists)
	assert.Equal(t, before, env.state.Capture())

	got, err := env.users.Get(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, user.ID("bob"), *got.ID)
}

func TestUsers_UpdateIDWithoutStoredProfile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := user.NewPrimaryKey()
	require.NoError(t, env.users.Add(ctx, alice, user.New("Alice", userID(t, "alice"))))
	require.NoError(t, env.state.users.Delete(ctx, alice))

	err := env.users.UpdateID(ctx, alice, userID(t, "alice2"))
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, err, repository.ErrInconsistent)

	key, ok := env.users.KeyByID("alice")
	require.True(t, ok)
	assert.Equal(t, alice, key)
	_, ok = env.users.KeyByID("alice2")
	assert.False(t, ok)
}

func TestUsers_SaveKeepsIndexedID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := user.NewPrimaryKey()
	require.NoError(t, env.users.Add(ctx, alice, user.New("Alice", userID(t, "alice"))))

	u, err := env.users.Get(ctx, alice)
	require.NoError(t, err)
	u.Name = "Alice B."
	u.ID = userID(t, "mallory")
	require.NoError(t, env.users.Save(ctx, alice, u))
	assert.Equal(t, user.ID("mallory"), *u.ID, "caller's profile is left alone")

	got, err := env.users.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, user.Name("Alice B."), got.Name)
	assert.Equal(t, user.ID("alice"), *got.ID)
	name, _ := env.users.Name(alice)
	assert.Equal(t, user.Name("Alice B."), name)

	err = env.users.Save(ctx, user.NewPrimaryKey(), u)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUsers_Remove(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := user.NewPrimaryKey()
	require.NoError(t, env.users.Add(ctx, alice, user.New("Alice", userID(t, "alice"))))

	removed, err := env.users.Remove(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, user.Name("Alice"), removed.Name)
	assert.False(t, env.users.Contains(alice))
	_, ok := env.users.KeyByID("alice")
	assert.False(t, ok)
	_, ok = env.users.Name(alice)
	assert.False(t, ok)

	_, err = env.users.Remove(ctx, alice)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUsers_RemoveReportsDesync(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := user.NewPrimaryKey()
	require.NoError(t, env.users.Add(ctx, alice, user.New("Alice", userID(t, "alice"))))

	env.state.mu.Lock()
	delete(env.state.userIdx.names, alice)
	env.state.mu.Unlock()

	removed, err := env.users.Remove(ctx, alice)
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, err, repository.ErrInconsistent)
	require.NotNil(t, removed)

	// teardown still completed
	assert.False(t, env.users.Contains(alice))
	_, ok := env.users.KeyByID("alice")
	assert.False(t, ok)
	_, err = env.users.Get(ctx, alice)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
