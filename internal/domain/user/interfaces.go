package user

import "context"

// Repository stores users and maintains the owner-key and external-id indices.
// Lookups that only touch in-memory indices take no context.
type Repository interface {
	Get(ctx context.Context, key PrimaryKey) (*User, error)
	Contains(key PrimaryKey) bool
	// Add registers a new user, including its external id mapping if set.
	Add(ctx context.Context, key PrimaryKey, u *User) error
	// Save overwrites the stored profile. The external id is owned by UpdateID.
	Save(ctx context.Context, key PrimaryKey, u *User) error
	// UpdateID renames (or, with nil, clears) the external id of key.
	UpdateID(ctx context.Context, key PrimaryKey, id *ID) error
	Remove(ctx context.Context, key PrimaryKey) (*User, error)
	KeyByID(id ID) (PrimaryKey, bool)
	IDByKey(key PrimaryKey) (ID, bool)
	Name(key PrimaryKey) (Name, bool)
}
