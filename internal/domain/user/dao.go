package user

import (
	"encoding/json"
	"errors"
	"fmt"
)

// daoV1 is the first stored shape of a user. Never change it; add daoV2.
type daoV1 struct {
	Name     Name                   `json:"name"`
	ID       *ID                    `json:"id,omitempty"`
	Authored map[string]*Authorship `json:"authored,omitempty"`
}

type dao struct {
	V1 *daoV1 `json:"v1,omitempty"`
}

var errUnknownVersion = errors.New("user record has no known version")

// Encode serializes u as the current stored version.
func Encode(u *User) ([]byte, error) {
	return json.Marshal(dao{V1: &daoV1{Name: u.Name, ID: u.ID, Authored: u.Authored}})
}

// Decode reads any stored version of a user.
func Decode(data []byte) (*User, error) {
	var d dao
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	switch {
	case d.V1 != nil:
		return &User{Name: d.V1.Name, ID: d.V1.ID, Authored: d.V1.Authored}, nil
	default:
		return nil, errUnknownVersion
	}
}
