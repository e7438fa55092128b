package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrIDAlreadyExists is returned when an external id already maps to another owner
	ErrIDAlreadyExists = errors.New("id already exists")

	// ErrPrimaryKeyAlreadyExists is returned when an owner key is already registered
	ErrPrimaryKeyAlreadyExists = errors.New("primary key already exists")

	// ErrInconsistent is returned when secondary indices disagree with the primary table
	ErrInconsistent = errors.New("index inconsistency")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)
