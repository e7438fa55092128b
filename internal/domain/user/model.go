package user

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/perforate-org/arche/internal/domain/entityid"
)

// PrimaryKey is the system-assigned owner key of a user. It never changes,
// even when the user renames their external ID.
type PrimaryKey uuid.UUID

// PrimaryKeyPrefix marks a PrimaryKey written as a user reference ("p_<key>").
const PrimaryKeyPrefix = "p_"

// AnonymousKey is the owner key of the seeded anonymous user.
var AnonymousKey = PrimaryKey(uuid.NewSHA1(uuid.NameSpaceURL, []byte("arche:user:anonymous")))

// NewPrimaryKey returns a random owner key.
func NewPrimaryKey() PrimaryKey { return PrimaryKey(uuid.New()) }

// ParsePrimaryKey reads the canonical UUID form.
func ParsePrimaryKey(s string) (PrimaryKey, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PrimaryKey{}, fmt.Errorf("%w: %v", ErrInvalidPrimaryKey, err)
	}
	return PrimaryKey(u), nil
}

func (k PrimaryKey) String() string { return uuid.UUID(k).String() }

// IsZero reports whether k is the zero key.
func (k PrimaryKey) IsZero() bool { return k == PrimaryKey{} }

// Reference returns the "p_<key>" form accepted by lookups.
func (k PrimaryKey) Reference() string { return PrimaryKeyPrefix + k.String() }

func (k PrimaryKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *PrimaryKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePrimaryKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k PrimaryKey) MarshalBinary() ([]byte, error) {
	out := make([]byte, len(k))
	copy(out, k[:])
	return out, nil
}

func (k *PrimaryKey) UnmarshalBinary(b []byte) error {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPrimaryKey, err)
	}
	*k = PrimaryKey(u)
	return nil
}

// ID is the user-chosen external identifier, e.g. a handle.
type ID string

func (id ID) String() string { return string(id) }

// Name is the display name of a user.
type Name string

func (n Name) String() string { return string(n) }

// Authorship lists the entity ids of one kind a user is linked to.
type Authorship struct {
	Lead []entityid.ID `json:"lead,omitempty"`
	Co   []entityid.ID `json:"co,omitempty"`
}

// User is the profile stored under a PrimaryKey.
type User struct {
	Name     Name                   `json:"name"`
	ID       *ID                    `json:"id,omitempty"`
	Authored map[string]*Authorship `json:"authored,omitempty"`
}

// New returns a user with no authored entities.
func New(name Name, id *ID) *User {
	return &User{Name: name, ID: id}
}

// LeadAuthored returns the ids of kind the user leads.
func (u *User) LeadAuthored(kind string) []entityid.ID {
	if a := u.Authored[kind]; a != nil {
		return a.Lead
	}
	return nil
}

// CoAuthored returns the ids of kind the user co-authors.
func (u *User) CoAuthored(kind string) []entityid.ID {
	if a := u.Authored[kind]; a != nil {
		return a.Co
	}
	return nil
}

// Link records id under kind. It reports false if the link already existed.
func (u *User) Link(kind string, id entityid.ID, lead bool) bool {
	if u.Authored == nil {
		u.Authored = make(map[string]*Authorship)
	}
	a := u.Authored[kind]
	if a == nil {
		a = &Authorship{}
		u.Authored[kind] = a
	}
	list := &a.Co
	if lead {
		list = &a.Lead
	}
	if slices.Contains(*list, id) {
		return false
	}
	*list = append(*list, id)
	return true
}

// Unlink removes id from both lists of kind. It reports whether anything changed.
func (u *User) Unlink(kind string, id entityid.ID) bool {
	a := u.Authored[kind]
	if a == nil {
		return false
	}
	before := len(a.Lead) + len(a.Co)
	a.Lead = slices.DeleteFunc(a.Lead, func(x entityid.ID) bool { return x == id })
	a.Co = slices.DeleteFunc(a.Co, func(x entityid.ID) bool { return x == id })
	if len(a.Lead) == 0 && len(a.Co) == 0 {
		delete(u.Authored, kind)
	}
	return len(a.Lead)+len(a.Co) != before
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	out := &User{Name: u.Name}
	if u.ID != nil {
		id := *u.ID
		out.ID = &id
	}
	if u.Authored != nil {
		out.Authored = make(map[string]*Authorship, len(u.Authored))
		for kind, a := range u.Authored {
			out.Authored[kind] = &Authorship{
				Lead: slices.Clone(a.Lead),
				Co:   slices.Clone(a.Co),
			}
		}
	}
	return out
}
