package user

import "errors"

var (
	// ErrUserNotFound indicates no user is registered under the key or id.
	ErrUserNotFound = errors.New("user not found")
	// ErrAlreadyRegistered indicates the caller already has a profile.
	ErrAlreadyRegistered = errors.New("user already registered")
	// ErrIDAlreadyExists indicates another user holds the requested external id.
	ErrIDAlreadyExists = errors.New("user id already taken")
	// ErrInvalidID indicates a malformed external id.
	ErrInvalidID = errors.New("invalid user id")
	// ErrInvalidName indicates an empty or over-long display name.
	ErrInvalidName = errors.New("invalid user name")
	// ErrInvalidPrimaryKey indicates a malformed owner key.
	ErrInvalidPrimaryKey = errors.New("invalid user primary key")
	// ErrInvalidInput indicates invalid input for user operations.
	ErrInvalidInput = errors.New("invalid user input")
)
