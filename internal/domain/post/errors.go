package post

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the entity doesn't exist or is not visible to the caller.
	ErrNotFound = errors.New("post not found")
	// ErrUnauthorized indicates the caller may not perform the mutation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotAuthor indicates the caller is neither lead author nor co-author.
	ErrNotAuthor = fmt.Errorf("%w: caller is not an author", ErrUnauthorized)
	// ErrNotLeadAuthor indicates the caller is not the lead author.
	ErrNotLeadAuthor = fmt.Errorf("%w: caller is not the lead author", ErrUnauthorized)
	// ErrInvalidTransition indicates a status change that the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidTitle indicates an empty or over-long title.
	ErrInvalidTitle = errors.New("invalid title")
	// ErrInvalidInput indicates invalid input for post operations.
	ErrInvalidInput = errors.New("invalid post input")
)
