package sqlite

import (
	"errors"
	"strings"
)

var (
	// ErrAPIKeyExists is returned when a token is registered twice.
	ErrAPIKeyExists = errors.New("api key already exists")
	// ErrAPIKeyNotFound is returned when a token matches no key.
	ErrAPIKeyNotFound = errors.New("api key not found")
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
