package post

import (
	"slices"
	"time"

	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/user"
)

// Status is the publication state of an entity.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusPublished   Status = "published"
	StatusUnderReview Status = "under_review"
	StatusArchived    Status = "archived"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusUnderReview, StatusArchived:
		return true
	}
	return false
}

// Header holds the fields every entity kind shares. Kinds embed it.
type Header struct {
	ID         entityid.ID       `json:"id"`
	LeadAuthor user.PrimaryKey   `json:"lead_author"`
	CoAuthors  []user.PrimaryKey `json:"co_authors,omitempty"`
	Title      Title             `json:"title"`
	Status     Status            `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Meta returns h itself, so that any type embedding Header is a Document.
func (h *Header) Meta() *Header { return h }

// Document is implemented by every entity kind.
type Document interface {
	Meta() *Header
}

// Authors returns the lead author followed by the co-authors.
func (h *Header) Authors() []user.PrimaryKey {
	return append([]user.PrimaryKey{h.LeadAuthor}, h.CoAuthors...)
}

// Publish moves a draft to Published.
func (h *Header) Publish(now time.Time) error {
	if h.Status != StatusDraft {
		return ErrInvalidTransition
	}
	h.Status = StatusPublished
	h.UpdatedAt = now
	return nil
}

// Unpublish moves a published entity back to Draft.
func (h *Header) Unpublish(now time.Time) error {
	if h.Status != StatusPublished {
		return ErrInvalidTransition
	}
	h.Status = StatusDraft
	h.UpdatedAt = now
	return nil
}

// AddCoAuthor appends key. It reports false if key is already an author.
func (h *Header) AddCoAuthor(key user.PrimaryKey) bool {
	if h.IsAuthor(key) {
		return false
	}
	h.CoAuthors = append(h.CoAuthors, key)
	return true
}

// Summary is the index-only view of an entity.
type Summary struct {
	ID         entityid.ID     `json:"id"`
	LeadAuthor user.PrimaryKey `json:"lead_author"`
}

// Listing is a Summary decorated with the cached title and author profile.
type Listing struct {
	ID             entityid.ID     `json:"id"`
	Title          Title           `json:"title"`
	LeadAuthor     user.PrimaryKey `json:"lead_author"`
	LeadAuthorID   string          `json:"lead_author_id,omitempty"`
	LeadAuthorName string          `json:"lead_author_name,omitempty"`
}

func cloneHeader(h Header) Header {
	h.CoAuthors = slices.Clone(h.CoAuthors)
	return h
}
