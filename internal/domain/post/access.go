package post

import (
	"slices"

	"github.com/perforate-org/arche/internal/domain/user"
)

// IsLeadAuthor reports whether key leads the entity.
func (h *Header) IsLeadAuthor(key user.PrimaryKey) bool {
	return h.LeadAuthor == key
}

// IsAuthor reports whether key is the lead author or a co-author.
func (h *Header) IsAuthor(key user.PrimaryKey) bool {
	return h.LeadAuthor == key || slices.Contains(h.CoAuthors, key)
}

// RequireAuthor gates field updates.
func (h *Header) RequireAuthor(key user.PrimaryKey) error {
	if !h.IsAuthor(key) {
		return ErrNotAuthor
	}
	return nil
}

// RequireLeadAuthor gates publish, unpublish, co-author management and deletion.
func (h *Header) RequireLeadAuthor(key user.PrimaryKey) error {
	if !h.IsLeadAuthor(key) {
		return ErrNotLeadAuthor
	}
	return nil
}
