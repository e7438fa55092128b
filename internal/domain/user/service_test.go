package user_test

import (
	"context"
	"strings"
	"testing"

	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/user"
	"github.com/perforate-org/arche/internal/repository"
	"github.com/perforate-org/arche/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()
	key := user.NewPrimaryKey()

	repo := &mocks.UserRepository{}
	repo.On("Add", ctx, key, mock.MatchedBy(func(u *user.User) bool {
		return u.Name == "Alice" && u.ID != nil && *u.ID == "alice"
	})).Return(nil)

	svc := user.NewService(repo, nil)
	u, err := svc.Register(ctx, key, user.RegisterRequest{ID: strPtr("alice"), Name: "Alice"})
	require.NoError(t, err)
	require.Equal(t, user.Name("Alice"), u.Name)
	repo.AssertExpectations(t)
}

func TestUserService_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	key := user.NewPrimaryKey()
	svc := user.NewService(&mocks.UserRepository{}, nil)

	tests := []struct {
		name string
		req  user.RegisterRequest
		want error
	}{
		{name: "empty name", req: user.RegisterRequest{Name: ""}, want: user.ErrInvalidName},
		{name: "long name", req: user.RegisterRequest{Name: strings.Repeat("n", 51)}, want: user.ErrInvalidName},
		{name: "uppercase id", req: user.RegisterRequest{ID: strPtr("Alice"), Name: "Alice"}, want: user.ErrInvalidID},
		{name: "leading dash", req: user.RegisterRequest{ID: strPtr("-alice"), Name: "Alice"}, want: user.ErrInvalidID},
		{name: "long id", req: user.RegisterRequest{ID: strPtr(strings.Repeat("a", 22)), Name: "Alice"}, want: user.ErrInvalidID},
		{name: "empty id", req: user.RegisterRequest{ID: strPtr(""), Name: "Alice"}, want: user.ErrInvalidID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, key, tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := svc.Register(ctx, user.PrimaryKey{}, user.RegisterRequest{Name: "Alice"})
	require.ErrorIs(t, err, user.ErrInvalidInput)
}

func TestUserService_RegisterConflicts(t *testing.T) {
	ctx := context.Background()
	key := user.NewPrimaryKey()

	repo := &mocks.UserRepository{}
	repo.On("Add", ctx, key, mock.Anything).Return(repository.ErrPrimaryKeyAlreadyExists).Once()
	repo.On("Add", ctx, key, mock.Anything).Return(repository.ErrIDAlreadyExists).Once()

	svc := user.NewService(repo, nil)
	_, err := svc.Register(ctx, key, user.RegisterRequest{Name: "Alice"})
	require.ErrorIs(t, err, user.ErrAlreadyRegistered)
	_, err = svc.Register(ctx, key, user.RegisterRequest{ID: strPtr("taken"), Name: "Alice"})
	require.ErrorIs(t, err, user.ErrIDAlreadyExists)
}

func TestUserService_Resolve(t *testing.T) {
	key := user.NewPrimaryKey()
	repo := &mocks.UserRepository{}
	repo.On("KeyByID", user.ID("alice")).Return(key, true)
	repo.On("KeyByID", user.ID("ghost")).Return(user.PrimaryKey{}, false)
	repo.On("Contains", key).Return(true)

	svc := user.NewService(repo, nil)

	got, err := svc.Resolve("alice")
	require.NoError(t, err)
	require.Equal(t, key, got)

	got, err = svc.Resolve(key.Reference())
	require.NoError(t, err)
	require.Equal(t, key, got)

	_, err = svc.Resolve("ghost")
	require.ErrorIs(t, err, user.ErrUserNotFound)

	_, err = svc.Resolve("p_not-a-uuid")
	require.ErrorIs(t, err, user.ErrInvalidPrimaryKey)
}

func TestUserService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	key := user.NewPrimaryKey()
	newID := user.ID("alice2")
	stored := user.New("Alice", &newID)

	repo := &mocks.UserRepository{}
	repo.On("UpdateID", ctx, key, &newID).Return(nil)
	repo.On("Get", ctx, key).Return(stored, nil)
	repo.On("Save", ctx, key, mock.MatchedBy(func(u *user.User) bool { return u.Name == "Alice B." })).Return(nil)

	svc := user.NewService(repo, nil)
	u, err := svc.UpdateProfile(ctx, key, user.UpdateRequest{Name: strPtr("Alice B."), ID: strPtr("alice2")})
	require.NoError(t, err)
	require.Equal(t, user.Name("Alice B."), u.Name)
	repo.AssertExpectations(t)
}

func TestUserService_UpdateProfileIDTaken(t *testing.T) {
	ctx := context.Background()
	key := user.NewPrimaryKey()
	id := user.ID("bob")

	repo := &mocks.UserRepository{}
	repo.On("UpdateID", ctx, key, &id).Return(repository.ErrIDAlreadyExists)

	svc := user.NewService(repo, nil)
	_, err := svc.UpdateProfile(ctx, key, user.UpdateRequest{ID: strPtr("bob")})
	require.ErrorIs(t, err, user.ErrIDAlreadyExists)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)

	_, err = svc.UpdateProfile(ctx, key, user.UpdateRequest{ID: strPtr("bob"), ClearID: true})
	require.ErrorIs(t, err, user.ErrInvalidInput)
}

func TestUserService_LinkAuthored(t *testing.T) {
	ctx := context.Background()
	key := user.NewPrimaryKey()
	id := entityid.MustParse("2025-04-0001")
	stored := user.New("Alice", nil)

	repo := &mocks.UserRepository{}
	repo.On("Get", ctx, key).Return(stored, nil)
	repo.On("Save", ctx, key, stored).Return(nil).Once()

	svc := user.NewService(repo, nil)
	require.NoError(t, svc.LinkAuthored(ctx, key, "papers", id, true))
	// already linked: no second save
	require.NoError(t, svc.LinkAuthored(ctx, key, "papers", id, true))
	require.Equal(t, []entityid.ID{id}, stored.LeadAuthored("papers"))
	repo.AssertNumberOfCalls(t, "Save", 1)
}

func TestUserService_UnregisterInconsistent(t *testing.T) {
	ctx := context.Background()
	key := user.NewPrimaryKey()

	repo := &mocks.UserRepository{}
	repo.On("Remove", ctx, key).Return(user.New("Alice", nil), repository.ErrInconsistent)

	svc := user.NewService(repo, nil)
	err := svc.Unregister(ctx, key)
	require.ErrorIs(t, err, repository.ErrInconsistent)
}

func TestUserService_SeedAnonymous(t *testing.T) {
	ctx := context.Background()

	repo := &mocks.UserRepository{}
	repo.On("Contains", user.AnonymousKey).Return(false).Once()
	repo.On("Add", ctx, user.AnonymousKey, mock.MatchedBy(func(u *user.User) bool {
		return u.Name == user.AnonymousName && *u.ID == user.AnonymousID
	})).Return(nil).Once()
	repo.On("Contains", user.AnonymousKey).Return(true)

	svc := user.NewService(repo, nil)
	require.NoError(t, svc.SeedAnonymous(ctx))
	require.NoError(t, svc.SeedAnonymous(ctx))
	repo.AssertNumberOfCalls(t, "Add", 1)
}

func TestUserService_IDExists(t *testing.T) {
	repo := &mocks.UserRepository{}
	repo.On("KeyByID", user.ID("alice")).Return(user.NewPrimaryKey(), true)

	svc := user.NewService(repo, nil)
	require.True(t, svc.IDExists("alice"))
	require.False(t, svc.IDExists("NOT VALID"))
}
