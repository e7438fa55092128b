package post

import (
	"context"

	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/user"
)

// Repository stores one entity kind and its title and lead-author indices.
// Summary, Title and Summaries never read the primary table.
type Repository[E Document] interface {
	Get(ctx context.Context, id entityid.ID) (E, error)
	Contains(ctx context.Context, id entityid.ID) (bool, error)
	// Insert writes e under e.Meta().ID and returns the previous value, if any.
	Insert(ctx context.Context, e E) (prev E, existed bool, err error)
	Remove(ctx context.Context, id entityid.ID) (E, error)
	// GenerateID returns an id that is unused at call time.
	GenerateID(ctx context.Context) (entityid.ID, error)
	Summary(id entityid.ID) (Summary, bool)
	Title(id entityid.ID) (Title, bool)
	// Summaries returns every summary in ascending id order.
	Summaries() []Summary
}

// AuthorDirectory is the user-side collaborator of the post service.
type AuthorDirectory interface {
	IsRegistered(key user.PrimaryKey) bool
	DisplayName(key user.PrimaryKey) (user.Name, bool)
	ExternalID(key user.PrimaryKey) (user.ID, bool)
	LinkAuthored(ctx context.Context, key user.PrimaryKey, kind string, id entityid.ID, lead bool) error
	UnlinkAuthored(ctx context.Context, key user.PrimaryKey, kind string, id entityid.ID) error
}
