package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/perforate-org/arche/internal/domain/user"
	"github.com/perforate-org/arche/internal/kv"
	"github.com/perforate-org/arche/internal/repository"
)

// Users implements user.Repository on a State.
type Users struct {
	s *State
}

// Users returns the user repository view of s.
func (s *State) Users() *Users { return &Users{s: s} }

// Get loads the stored profile of key from the primary table.
func (r *Users) Get(ctx context.Context, key user.PrimaryKey) (*user.User, error) {
	u, err := r.s.users.Get(ctx, key)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// Contains reports whether key is in the existence set.
func (r *Users) Contains(key user.PrimaryKey) bool {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.userIdx.existence[key]
	return ok
}

// Add registers key. It fails without side effects if key is registered or
// the user's external id is taken.
func (r *Users) Add(ctx context.Context, key user.PrimaryKey, u *user.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := &s.userIdx
	if _, ok := idx.existence[key]; ok {
		return repository.ErrPrimaryKeyAlreadyExists
	}
	if u.ID != nil {
		if _, taken := idx.principals[*u.ID]; taken {
			return repository.ErrIDAlreadyExists
		}
	}

	b := kv.NewBatch()
	if err := s.users.PutOp(b, key, u); err != nil {
		return err
	}
	if u.ID != nil {
		if err := s.principals.PutOp(b, *u.ID, key); err != nil {
			return err
		}
		if err := s.userIDs.PutOp(b, key, *u.ID); err != nil {
			return err
		}
	}
	if err := s.db.Apply(ctx, b); err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}

	idx.existence[key] = struct{}{}
	idx.names[key] = u.Name
	if u.ID != nil {
		idx.principals[*u.ID] = key
		idx.ids[key] = *u.ID
	}
	s.publishSizes()
	return nil
}

// Save overwrites the profile of a registered key. The stored external id
// always reflects the id index, whatever u.ID says.
func (r *Users) Save(ctx context.Context, key user.PrimaryKey, u *user.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := &s.userIdx
	if _, ok := idx.existence[key]; !ok {
		return repository.ErrNotFound
	}
	u = u.Clone()
	u.ID = nil
	if id, ok := idx.ids[key]; ok {
		u.ID = &id
	}

	b := kv.NewBatch()
	if err := s.users.PutOp(b, key, u); err != nil {
		return err
	}
	if err := s.db.Apply(ctx, b); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	idx.names[key] = u.Name
	return nil
}

// UpdateID points key at a new external id, or clears it when id is nil.
// Setting the current id again is a no-op. If id belongs to another owner
// the call fails with repository.ErrIDAlreadyExists and changes nothing.
// The backup tables and the profile are written in one batch before the
// in-memory maps change.
func (r *Users) UpdateID(ctx context.Context, key user.PrimaryKey, id *user.ID) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := &s.userIdx
	if _, ok := idx.existence[key]; !ok {
		return repository.ErrNotFound
	}
	current, hasCurrent := idx.ids[key]
	switch {
	case id == nil && !hasCurrent:
		return nil
	case id != nil && hasCurrent && current == *id:
		return nil
	}
	if id != nil {
		if owner, taken := idx.principals[*id]; taken && owner != key {
			return repository.ErrIDAlreadyExists
		}
	}

	u, err := s.users.Get(ctx, key)
	if errors.Is(err, kv.ErrKeyNotFound) {
		indexDesync.WithLabelValues("users").Inc()
		s.logger.Error("user indices out of sync", "key", key, "missing", []string{"users"})
		return fmt.Errorf("update id of user %s: profile missing: %w: %w", key, repository.ErrNotFound, repository.ErrInconsistent)
	}
	if err != nil {
		return fmt.Errorf("failed to load user for id update: %w", err)
	}
	u.ID = id

	b := kv.NewBatch()
	if err := s.users.PutOp(b, key, u); err != nil {
		return err
	}
	if hasCurrent {
		if err := s.principals.DeleteOp(b, current); err != nil {
			return err
		}
	}
	if id != nil {
		if err := s.principals.PutOp(b, *id, key); err != nil {
			return err
		}
		if err := s.userIDs.PutOp(b, key, *id); err != nil {
			return err
		}
	} else if err := s.userIDs.DeleteOp(b, key); err != nil {
		return err
	}
	if err := s.db.Apply(ctx, b); err != nil {
		return fmt.Errorf("failed to update user id: %w", err)
	}

	if hasCurrent {
		delete(idx.principals, current)
	}
	if id != nil {
		idx.principals[*id] = key
		idx.ids[key] = *id
	} else {
		delete(idx.ids, key)
	}
	s.publishSizes()
	return nil
}

// Remove deletes key from the primary table, both backups and all four
// in-memory indices. The teardown always runs to completion; if any entry
// it expected was already missing, the removed profile is returned together
// with an error matching both repository.ErrNotFound and
// repository.ErrInconsistent.
func (r *Users) Remove(ctx context.Context, key user.PrimaryKey) (*user.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := &s.userIdx
	_, inExistence := idx.existence[key]

	u, err := s.users.Get(ctx, key)
	switch {
	case errors.Is(err, kv.ErrKeyNotFound):
		if !inExistence {
			return nil, repository.ErrNotFound
		}
		u = nil
	case err != nil:
		return nil, fmt.Errorf("failed to load user for removal: %w", err)
	}

	id, hasID := idx.ids[key]
	var missing []string
	if !inExistence {
		missing = append(missing, "existence")
	}
	if u == nil {
		missing = append(missing, "users")
	}
	if _, ok := idx.names[key]; !ok {
		missing = append(missing, "names")
	}
	if u != nil && u.ID != nil {
		if !hasID {
			missing = append(missing, "ids")
			id, hasID = *u.ID, true
		}
		if owner, ok := idx.principals[id]; !ok || owner != key {
			missing = append(missing, "principals")
		}
	}

	b := kv.NewBatch()
	if err := s.users.DeleteOp(b, key); err != nil {
		return nil, err
	}
	if err := s.userIDs.DeleteOp(b, key); err != nil {
		return nil, err
	}
	if hasID {
		if owner, ok := idx.principals[id]; !ok || owner == key {
			if err := s.principals.DeleteOp(b, id); err != nil {
				return nil, err
			}
		}
	}
	if err := s.db.Apply(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to remove user: %w", err)
	}

	delete(idx.existence, key)
	delete(idx.names, key)
	delete(idx.ids, key)
	if hasID {
		if owner, ok := idx.principals[id]; ok && owner == key {
			delete(idx.principals, id)
		}
	}
	s.publishSizes()

	if len(missing) > 0 {
		for _, name := range missing {
			indexDesync.WithLabelValues(name).Inc()
		}
		s.logger.Error("user indices out of sync", "key", key, "missing", missing)
		return u, fmt.Errorf("remove user %s: missing %v: %w: %w", key, missing, repository.ErrNotFound, repository.ErrInconsistent)
	}
	return u, nil
}

// KeyByID resolves an external id.
func (r *Users) KeyByID(id user.ID) (user.PrimaryKey, bool) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	key, ok := r.s.userIdx.principals[id]
	return key, ok
}

// IDByKey returns the external id of key.
func (r *Users) IDByKey(key user.PrimaryKey) (user.ID, bool) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.userIdx.ids[key]
	return id, ok
}

// Name returns the cached display name of key.
func (r *Users) Name(key user.PrimaryKey) (user.Name, bool) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	name, ok := r.s.userIdx.names[key]
	return name, ok
}
