package post

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/user"
	"github.com/perforate-org/arche/internal/repository"
)

// Service implements the use-cases shared by every entity kind.
// Mutations load, change and store whole entities, so they run one at a time.
type Service[E Document] struct {
	mu      sync.Mutex
	kind    string
	repo    Repository[E]
	authors AuthorDirectory
	clock   entityid.Clock
	logger  *slog.Logger
}

// NewService creates a service for one kind. kind is the name authored
// entities are filed under in user profiles.
func NewService[E Document](kind string, repo Repository[E], authors AuthorDirectory, clock entityid.Clock, logger *slog.Logger) *Service[E] {
	if clock == nil {
		clock = entityid.SystemClock
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service[E]{
		kind:    kind,
		repo:    repo,
		authors: authors,
		clock:   clock,
		logger:  logger.With("kind", kind),
	}
}

// Kind returns the kind name.
func (s *Service[E]) Kind() string { return s.kind }

func (s *Service[E]) now() time.Time { return s.clock.Now().UTC() }

// CreateDraft stores draft as a new Draft led by caller. The header of
// draft is overwritten apart from its title.
func (s *Service[E]) CreateDraft(ctx context.Context, caller user.PrimaryKey, draft E) (E, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero E
	if !s.authors.IsRegistered(caller) {
		return zero, fmt.Errorf("%w: caller is not registered", ErrUnauthorized)
	}
	h := draft.Meta()
	title, err := NewTitle(string(h.Title))
	if err != nil {
		return zero, err
	}
	if err := validateContent(draft); err != nil {
		return zero, err
	}

	id, err := s.repo.GenerateID(ctx)
	if err != nil {
		return zero, fmt.Errorf("generating id: %w", err)
	}
	now := s.now()
	*h = Header{
		ID:         id,
		LeadAuthor: caller,
		Title:      title,
		Status:     StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, _, err := s.repo.Insert(ctx, draft); err != nil {
		return zero, fmt.Errorf("inserting draft: %w", err)
	}
	if err := s.authors.LinkAuthored(ctx, caller, s.kind, id, true); err != nil {
		if _, rmErr := s.repo.Remove(ctx, id); rmErr != nil {
			s.logger.Error("failed to roll back draft", "id", id, "error", rmErr)
		}
		return zero, fmt.Errorf("linking draft to author: %w", err)
	}

	s.logger.Info("draft created", "id", id, "lead_author", caller)
	return draft, nil
}

// Get returns a published entity, or any entity the caller authors.
func (s *Service[E]) Get(ctx context.Context, caller user.PrimaryKey, id entityid.ID) (E, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return e, err
	}
	h := e.Meta()
	if h.Status != StatusPublished && !h.IsAuthor(caller) {
		var zero E
		return zero, ErrNotFound
	}
	return e, nil
}

// GetAsAuthor returns the entity for editing.
func (s *Service[E]) GetAsAuthor(ctx context.Context, caller user.PrimaryKey, id entityid.ID) (E, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return e, err
	}
	if err := e.Meta().RequireAuthor(caller); err != nil {
		var zero E
		return zero, err
	}
	return e, nil
}

// Update lets any author change content fields through apply. Identity,
// authorship, status and creation time cannot be changed this way.
func (s *Service[E]) Update(ctx context.Context, caller user.PrimaryKey, id entityid.ID, apply func(E) error) (E, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero E
	e, err := s.GetAsAuthor(ctx, caller, id)
	if err != nil {
		return zero, err
	}
	before := cloneHeader(*e.Meta())
	if err := apply(e); err != nil {
		return zero, err
	}

	h := e.Meta()
	title, err := NewTitle(string(h.Title))
	if err != nil {
		return zero, err
	}
	if err := validateContent(e); err != nil {
		return zero, err
	}
	*h = before
	h.Title = title
	h.UpdatedAt = s.now()

	if _, _, err := s.repo.Insert(ctx, e); err != nil {
		return zero, fmt.Errorf("saving update: %w", err)
	}
	return e, nil
}

// Publish moves a draft to Published. Only the lead author may publish.
func (s *Service[E]) Publish(ctx context.Context, caller user.PrimaryKey, id entityid.ID) (E, error) {
	return s.transition(ctx, caller, id, (*Header).Publish)
}

// Unpublish moves a published entity back to Draft. Only the lead author may unpublish.
func (s *Service[E]) Unpublish(ctx context.Context, caller user.PrimaryKey, id entityid.ID) (E, error) {
	return s.transition(ctx, caller, id, (*Header).Unpublish)
}

func (s *Service[E]) transition(ctx context.Context, caller user.PrimaryKey, id entityid.ID, step func(*Header, time.Time) error) (E, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero E
	e, err := s.load(ctx, id)
	if err != nil {
		return zero, err
	}
	h := e.Meta()
	if err := h.RequireLeadAuthor(caller); err != nil {
		return zero, err
	}
	if err := step(h, s.now()); err != nil {
		return zero, err
	}
	if _, _, err := s.repo.Insert(ctx, e); err != nil {
		return zero, fmt.Errorf("saving status: %w", err)
	}
	s.logger.Info("status changed", "id", id, "status", h.Status)
	return e, nil
}

// AddCoAuthor adds coAuthor to the entity. Only the lead author may do so.
func (s *Service[E]) AddCoAuthor(ctx context.Context, caller user.PrimaryKey, id entityid.ID, coAuthor user.PrimaryKey) (E, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero E
	e, err := s.load(ctx, id)
	if err != nil {
		return zero, err
	}
	h := e.Meta()
	if err := h.RequireLeadAuthor(caller); err != nil {
		return zero, err
	}
	if !s.authors.IsRegistered(coAuthor) {
		return zero, fmt.Errorf("co-author: %w", user.ErrUserNotFound)
	}
	if !h.AddCoAuthor(coAuthor) {
		return e, nil
	}
	h.UpdatedAt = s.now()

	if _, _, err := s.repo.Insert(ctx, e); err != nil {
		return zero, fmt.Errorf("saving co-author: %w", err)
	}
	if err := s.authors.LinkAuthored(ctx, coAuthor, s.kind, id, false); err != nil {
		return zero, fmt.Errorf("linking co-author: %w", err)
	}
	return e, nil
}

// Delete removes the entity and unlinks it from every author's profile.
func (s *Service[E]) Delete(ctx context.Context, caller user.PrimaryKey, id entityid.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	h := e.Meta()
	if err := h.RequireLeadAuthor(caller); err != nil {
		return err
	}
	if _, err := s.repo.Remove(ctx, id); err != nil {
		return mapRepoError(err)
	}
	for _, author := range h.Authors() {
		if err := s.authors.UnlinkAuthored(ctx, author, s.kind, id); err != nil {
			s.logger.Warn("failed to unlink deleted entity", "id", id, "author", author, "error", err)
		}
	}
	s.logger.Info("deleted", "id", id)
	return nil
}

// List returns summaries from the secondary indices, decorated with titles
// and lead author profiles.
func (s *Service[E]) List(ctx context.Context, opts ListOptions) ([]Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	summaries := s.repo.Summaries()
	if opts.LeadAuthor != nil {
		summaries = slices.DeleteFunc(summaries, func(sum Summary) bool {
			return sum.LeadAuthor != *opts.LeadAuthor
		})
	}
	if opts.NewestFirst {
		slices.Reverse(summaries)
	}
	return s.decorate(page(summaries, opts.Offset, opts.Limit)), nil
}

// Search returns entities whose title contains query, ignoring case, in id order.
func (s *Service[E]) Search(ctx context.Context, query string, opts SearchOptions) ([]Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var hits []Summary
	for _, sum := range s.repo.Summaries() {
		if title, ok := s.repo.Title(sum.ID); ok && title.Matches(query) {
			hits = append(hits, sum)
		}
	}
	return s.decorate(page(hits, opts.Offset, opts.Limit)), nil
}

func (s *Service[E]) decorate(summaries []Summary) []Listing {
	out := make([]Listing, 0, len(summaries))
	for _, sum := range summaries {
		l := Listing{ID: sum.ID, LeadAuthor: sum.LeadAuthor}
		l.Title, _ = s.repo.Title(sum.ID)
		if name, ok := s.authors.DisplayName(sum.LeadAuthor); ok {
			l.LeadAuthorName = name.String()
		}
		if extID, ok := s.authors.ExternalID(sum.LeadAuthor); ok {
			l.LeadAuthorID = extID.String()
		}
		out = append(out, l)
	}
	return out
}

func (s *Service[E]) load(ctx context.Context, id entityid.ID) (E, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		var zero E
		return zero, mapRepoError(err)
	}
	return e, nil
}

// validateContent runs the kind's own checks when it has any.
func validateContent(doc Document) error {
	if v, ok := doc.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

func mapRepoError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
