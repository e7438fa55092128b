package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/post"
	"github.com/perforate-org/arche/internal/kv"
	"github.com/perforate-org/arche/internal/repository"
)

// Kind describes how one entity kind is stored.
type Kind[E post.Document] struct {
	// Name is the bucket of the primary table and the authorship key in user profiles.
	Name   string
	Encode func(E) ([]byte, error)
	Decode func(id entityid.ID, data []byte) (E, error)
}

// Entities implements post.Repository for one kind.
type Entities[E post.Document] struct {
	s    *State
	kind Kind[E]
	idx  *kindIndex
}

// NewEntities registers kind on s and returns its repository.
func NewEntities[E post.Document](s *State, kind Kind[E]) (*Entities[E], error) {
	idx, err := s.register(kind.Name, func(id entityid.ID, raw []byte) (*post.Header, error) {
		e, err := kind.Decode(id, raw)
		if err != nil {
			return nil, err
		}
		return e.Meta(), nil
	})
	if err != nil {
		return nil, err
	}
	return &Entities[E]{s: s, kind: kind, idx: idx}, nil
}

// Kind returns the kind name.
func (r *Entities[E]) Kind() string { return r.kind.Name }

// Get loads an entity from the primary table.
func (r *Entities[E]) Get(ctx context.Context, id entityid.ID) (E, error) {
	var zero E
	raw, err := r.idx.table.Get(ctx, id)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return zero, repository.ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("failed to get %s: %w", r.kind.Name, err)
	}
	return r.kind.Decode(id, raw)
}

// Contains reports whether id is in the primary table.
func (r *Entities[E]) Contains(ctx context.Context, id entityid.ID) (bool, error) {
	return r.idx.table.Has(ctx, id)
}

// Insert writes e and then updates the title cache and lead-author index.
// The counter observes the id so that generated ids never reuse it.
func (r *Entities[E]) Insert(ctx context.Context, e E) (E, bool, error) {
	var zero E
	h := e.Meta()
	if h.ID.IsZero() {
		return zero, false, fmt.Errorf("%w: entity has no id", repository.ErrInvalidInput)
	}
	data, err := r.kind.Encode(e)
	if err != nil {
		return zero, false, fmt.Errorf("failed to encode %s: %w", r.kind.Name, err)
	}

	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed, err := r.lookup(ctx, h.ID)
	if err != nil {
		return zero, false, err
	}

	b := kv.NewBatch()
	if err := r.idx.table.PutOp(b, h.ID, data); err != nil {
		return zero, false, err
	}
	if err := s.db.Apply(ctx, b); err != nil {
		return zero, false, fmt.Errorf("failed to insert %s: %w", r.kind.Name, err)
	}

	r.idx.titles[h.ID] = h.Title
	r.idx.leads.ReplaceOrInsert(post.Summary{ID: h.ID, LeadAuthor: h.LeadAuthor})
	r.idx.counter.Observe(h.ID)
	s.publishSizes()
	return prev, existed, nil
}

// Remove deletes id from the primary table and both side indices.
func (r *Entities[E]) Remove(ctx context.Context, id entityid.ID) (E, error) {
	var zero E
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed, err := r.lookup(ctx, id)
	if err != nil {
		return zero, err
	}
	if !existed {
		return zero, repository.ErrNotFound
	}

	b := kv.NewBatch()
	if err := r.idx.table.DeleteOp(b, id); err != nil {
		return zero, err
	}
	if err := s.db.Apply(ctx, b); err != nil {
		return zero, fmt.Errorf("failed to remove %s: %w", r.kind.Name, err)
	}

	if _, ok := r.idx.titles[id]; !ok {
		indexDesync.WithLabelValues(r.kind.Name + "_titles").Inc()
		s.logger.Warn("title cache missing entry on removal", "kind", r.kind.Name, "id", id)
	}
	delete(r.idx.titles, id)
	if _, ok := r.idx.leads.Delete(post.Summary{ID: id}); !ok {
		indexDesync.WithLabelValues(r.kind.Name + "_lead_authors").Inc()
		s.logger.Warn("lead-author index missing entry on removal", "kind", r.kind.Name, "id", id)
	}
	s.publishSizes()
	return prev, nil
}

// lookup reads the current value of id. Callers hold s.mu.
func (r *Entities[E]) lookup(ctx context.Context, id entityid.ID) (E, bool, error) {
	var zero E
	raw, err := r.idx.table.Get(ctx, id)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("failed to get %s: %w", r.kind.Name, err)
	}
	e, err := r.kind.Decode(id, raw)
	if err != nil {
		return zero, false, err
	}
	return e, true, nil
}

// GenerateID draws ids from the counter until one is absent from the
// primary table.
func (r *Entities[E]) GenerateID(ctx context.Context) (entityid.ID, error) {
	for {
		id, err := r.idx.counter.Next(r.s.clock.Now())
		if err != nil {
			return entityid.ID{}, err
		}
		taken, err := r.idx.table.Has(ctx, id)
		if err != nil {
			return entityid.ID{}, fmt.Errorf("failed to check %s id: %w", r.kind.Name, err)
		}
		if !taken {
			return id, nil
		}
		r.s.logger.Warn("generated id already in use", "kind", r.kind.Name, "id", id)
	}
}

// Summary returns the indexed lead author of id.
func (r *Entities[E]) Summary(id entityid.ID) (post.Summary, bool) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.idx.leads.Get(post.Summary{ID: id})
}

// Title returns the cached title of id.
func (r *Entities[E]) Title(id entityid.ID) (post.Title, bool) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.idx.titles[id]
	return t, ok
}

// Summaries returns a fresh slice of all summaries in ascending id order.
func (r *Entities[E]) Summaries() []post.Summary {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]post.Summary, 0, r.idx.leads.Len())
	r.idx.leads.Ascend(func(sum post.Summary) bool {
		out = append(out, sum)
		return true
	})
	return out
}

// Len returns the number of indexed entities.
func (r *Entities[E]) Len() int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.idx.leads.Len()
}
