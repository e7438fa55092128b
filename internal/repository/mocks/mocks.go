package mocks

import (
	"context"

	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/post"
	"github.com/perforate-org/arche/internal/domain/user"
	"github.com/stretchr/testify/mock"
)

// UserRepository is a mock for user.Repository.
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Get(ctx context.Context, key user.PrimaryKey) (*user.User, error) {
	args := m.Called(ctx, key)
	if u, ok := args.Get(0).(*user.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) Contains(key user.PrimaryKey) bool {
	args := m.Called(key)
	return args.Bool(0)
}

func (m *UserRepository) Add(ctx context.Context, key user.PrimaryKey, u *user.User) error {
	args := m.Called(ctx, key, u)
	return args.Error(0)
}

func (m *UserRepository) Save(ctx context.Context, key user.PrimaryKey, u *user.User) error {
	args := m.Called(ctx, key, u)
	return args.Error(0)
}

func (m *UserRepository) UpdateID(ctx context.Context, key user.PrimaryKey, id *user.ID) error {
	args := m.Called(ctx, key, id)
	return args.Error(0)
}

func (m *UserRepository) Remove(ctx context.Context, key user.PrimaryKey) (*user.User, error) {
	args := m.Called(ctx, key)
	if u, ok := args.Get(0).(*user.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) KeyByID(id user.ID) (user.PrimaryKey, bool) {
	args := m.Called(id)
	return args.Get(0).(user.PrimaryKey), args.Bool(1)
}

func (m *UserRepository) IDByKey(key user.PrimaryKey) (user.ID, bool) {
	args := m.Called(key)
	return args.Get(0).(user.ID), args.Bool(1)
}

func (m *UserRepository) Name(key user.PrimaryKey) (user.Name, bool) {
	args := m.Called(key)
	return args.Get(0).(user.Name), args.Bool(1)
}

// PostRepository is a mock for post.Repository of any entity kind.
type PostRepository[E post.Document] struct {
	mock.Mock
}

func (m *PostRepository[E]) Get(ctx context.Context, id entityid.ID) (E, error) {
	args := m.Called(ctx, id)
	if e, ok := args.Get(0).(E); ok {
		return e, args.Error(1)
	}
	var zero E
	return zero, args.Error(1)
}

func (m *PostRepository[E]) Contains(ctx context.Context, id entityid.ID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *PostRepository[E]) Insert(ctx context.Context, e E) (E, bool, error) {
	args := m.Called(ctx, e)
	prev, _ := args.Get(0).(E)
	return prev, args.Bool(1), args.Error(2)
}

func (m *PostRepository[E]) Remove(ctx context.Context, id entityid.ID) (E, error) {
	args := m.Called(ctx, id)
	if e, ok := args.Get(0).(E); ok {
		return e, args.Error(1)
	}
	var zero E
	return zero, args.Error(1)
}

func (m *PostRepository[E]) GenerateID(ctx context.Context) (entityid.ID, error) {
	args := m.Called(ctx)
	return args.Get(0).(entityid.ID), args.Error(1)
}

func (m *PostRepository[E]) Summary(id entityid.ID) (post.Summary, bool) {
	args := m.Called(id)
	return args.Get(0).(post.Summary), args.Bool(1)
}

func (m *PostRepository[E]) Title(id entityid.ID) (post.Title, bool) {
	args := m.Called(id)
	return args.Get(0).(post.Title), args.Bool(1)
}

func (m *PostRepository[E]) Summaries() []post.Summary {
	args := m.Called()
	if list, ok := args.Get(0).([]post.Summary); ok {
		return list
	}
	return nil
}

// AuthorDirectory is a mock for post.AuthorDirectory.
type AuthorDirectory struct {
	mock.Mock
}

func (m *AuthorDirectory) IsRegistered(key user.PrimaryKey) bool {
	args := m.Called(key)
	return args.Bool(0)
}

func (m *AuthorDirectory) DisplayName(key user.PrimaryKey) (user.Name, bool) {
	args := m.Called(key)
	return args.Get(0).(user.Name), args.Bool(1)
}

func (m *AuthorDirectory) ExternalID(key user.PrimaryKey) (user.ID, bool) {
	args := m.Called(key)
	return args.Get(0).(user.ID), args.Bool(1)
}

func (m *AuthorDirectory) LinkAuthored(ctx context.Context, key user.PrimaryKey, kind string, id entityid.ID, lead bool) error {
	args := m.Called(ctx, key, kind, id, lead)
	return args.Error(0)
}

func (m *AuthorDirectory) UnlinkAuthored(ctx context.Context, key user.PrimaryKey, kind string, id entityid.ID) error {
	args := m.Called(ctx, key, kind, id)
	return args.Error(0)
}
