package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/repository"
)

// Anonymous profile seeded on first start.
const (
	AnonymousID   ID   = "anonymous"
	AnonymousName Name = "Anonymous User"
)

// Service handles user profile business logic. Profile rewrites are
// serialized so concurrent links never drop each other's entries.
type Service struct {
	mu     sync.Mutex
	users  Repository
	logger *slog.Logger
}

// NewService creates a new user service.
func NewService(users Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{users: users, logger: logger}
}

// RegisterRequest describes a registration.
type RegisterRequest struct {
	ID   *string
	Name string
}

// UpdateRequest describes a profile update. A nil field is left unchanged.
type UpdateRequest struct {
	Name    *string
	ID      *string
	ClearID bool
}

// Register creates the profile of key.
func (s *Service) Register(ctx context.Context, key PrimaryKey, req RegisterRequest) (*User, error) {
	if key.IsZero() {
		return nil, ErrInvalidInput
	}
	name, err := NewName(req.Name)
	if err != nil {
		return nil, err
	}
	var id *ID
	if req.ID != nil {
		v, err := NewID(*req.ID)
		if err != nil {
			return nil, err
		}
		id = &v
	}

	u := New(name, id)
	if err := s.users.Add(ctx, key, u); err != nil {
		return nil, mapRepoError(err)
	}
	s.logger.Info("user registered", "key", key, "id", id)
	return u, nil
}

// Get returns the profile of key.
func (s *Service) Get(ctx context.Context, key PrimaryKey) (*User, error) {
	u, err := s.users.Get(ctx, key)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return u, nil
}

// Resolve turns a user reference into an owner key. A reference is either
// an external id or "p_" followed by the owner key.
func (s *Service) Resolve(ref string) (PrimaryKey, error) {
	if rest, ok := strings.CutPrefix(ref, PrimaryKeyPrefix); ok {
		key, err := ParsePrimaryKey(rest)
		if err != nil {
			return PrimaryKey{}, err
		}
		if !s.users.Contains(key) {
			return PrimaryKey{}, ErrUserNotFound
		}
		return key, nil
	}
	id, err := NewID(ref)
	if err != nil {
		return PrimaryKey{}, err
	}
	key, ok := s.users.KeyByID(id)
	if !ok {
		return PrimaryKey{}, ErrUserNotFound
	}
	return key, nil
}

// Lookup resolves ref and loads the profile.
func (s *Service) Lookup(ctx context.Context, ref string) (PrimaryKey, *User, error) {
	key, err := s.Resolve(ref)
	if err != nil {
		return PrimaryKey{}, nil, err
	}
	u, err := s.Get(ctx, key)
	if err != nil {
		return PrimaryKey{}, nil, err
	}
	return key, u, nil
}

// UpdateProfile changes the display name and/or external id of key.
func (s *Service) UpdateProfile(ctx context.Context, key PrimaryKey, req UpdateRequest) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ClearID && req.ID != nil {
		return nil, ErrInvalidInput
	}
	var name *Name
	if req.Name != nil {
		n, err := NewName(*req.Name)
		if err != nil {
			return nil, err
		}
		name = &n
	}

	switch {
	case req.ClearID:
		if err := s.users.UpdateID(ctx, key, nil); err != nil {
			return nil, mapRepoError(err)
		}
	case req.ID != nil:
		id, err := NewID(*req.ID)
		if err != nil {
			return nil, err
		}
		if err := s.users.UpdateID(ctx, key, &id); err != nil {
			return nil, mapRepoError(err)
		}
	}

	u, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if name != nil && *name != u.Name {
		u.Name = *name
		if err := s.users.Save(ctx, key, u); err != nil {
			return nil, mapRepoError(err)
		}
	}
	return u, nil
}

// Unregister removes the profile of key and all of its index entries.
func (s *Service) Unregister(ctx context.Context, key PrimaryKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.users.Remove(ctx, key)
	if errors.Is(err, repository.ErrInconsistent) {
		s.logger.Error("user indices were out of sync on removal", "key", key, "error", err)
	}
	if err != nil {
		return mapRepoError(err)
	}
	return nil
}

// IsRegistered reports whether key has a profile.
func (s *Service) IsRegistered(key PrimaryKey) bool { return s.users.Contains(key) }

// IDExists reports whether an external id is taken. Malformed ids are never taken.
func (s *Service) IDExists(id string) bool {
	v, err := NewID(id)
	if err != nil {
		return false
	}
	_, ok := s.users.KeyByID(v)
	return ok
}

// DisplayName returns the cached display name of key.
func (s *Service) DisplayName(key PrimaryKey) (Name, bool) { return s.users.Name(key) }

// ExternalID returns the external id of key, if it has one.
func (s *Service) ExternalID(key PrimaryKey) (ID, bool) { return s.users.IDByKey(key) }

// LinkAuthored adds id of kind to the lead- or co-authored list of key.
func (s *Service) LinkAuthored(ctx context.Context, key PrimaryKey, kind string, id entityid.ID, lead bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if !u.Link(kind, id, lead) {
		return nil
	}
	if err := s.users.Save(ctx, key, u); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// UnlinkAuthored drops id of kind from both authored lists of key.
func (s *Service) UnlinkAuthored(ctx context.Context, key PrimaryKey, kind string, id entityid.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if !u.Unlink(kind, id) {
		return nil
	}
	if err := s.users.Save(ctx, key, u); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// SeedAnonymous registers the anonymous profile unless it already exists.
func (s *Service) SeedAnonymous(ctx context.Context) error {
	if s.users.Contains(AnonymousKey) {
		return nil
	}
	id := string(AnonymousID)
	_, err := s.Register(ctx, AnonymousKey, RegisterRequest{ID: &id, Name: string(AnonymousName)})
	if err != nil {
		return fmt.Errorf("seed anonymous user: %w", err)
	}
	return nil
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrUserNotFound, err)
	case errors.Is(err, repository.ErrPrimaryKeyAlreadyExists):
		return fmt.Errorf("%w: %w", ErrAlreadyRegistered, err)
	case errors.Is(err, repository.ErrIDAlreadyExists):
		return fmt.Errorf("%w: %w", ErrIDAlreadyExists, err)
	default:
		return err
	}
}
