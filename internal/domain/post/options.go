package post

import "github.com/perforate-org/arche/internal/domain/user"

// ListOptions provides filtering and slicing options for listing summaries.
type ListOptions struct {
	LeadAuthor  *user.PrimaryKey
	NewestFirst bool
	Limit       int
	Offset      int
}

// SearchOptions provides slicing options for title search.
type SearchOptions struct {
	Limit  int
	Offset int
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
