package mcp

import (
	"errors"
	"fmt"

	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/post"
	"github.com/perforate-org/arche/internal/domain/user"
	"github.com/perforate-org/arche/internal/repository"
)

// Stable error codes returned to clients.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeConflict          = "CONFLICT"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInconsistent      = "INCONSISTENT"
	CodeInternal          = "INTERNAL"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalidInput(format string, args ...any) *APIError {
	return &APIError{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// MapError maps domain errors to MCP error codes. It returns nil for
// errors it does not recognise.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, repository.ErrInconsistent):
		return &APIError{Code: CodeInconsistent, Message: err.Error(), RecoveryHint: "Run `arche rebuild` to regenerate the indices"}
	case errors.Is(err, post.ErrNotFound), errors.Is(err, user.ErrUserNotFound):
		return &APIError{Code: CodeNotFound, Message: err.Error(), RecoveryHint: "Check the id or user reference"}
	case errors.Is(err, post.ErrUnauthorized):
		return &APIError{Code: CodeUnauthorized, Message: err.Error(), RecoveryHint: "Only authors may edit; only the lead author may publish, delete or add co-authors"}
	case errors.Is(err, user.ErrAlreadyRegistered):
		return &APIError{Code: CodeConflict, Message: err.Error(), RecoveryHint: "Use update_profile instead"}
	case errors.Is(err, user.ErrIDAlreadyExists):
		return &APIError{Code: CodeConflict, Message: err.Error(), RecoveryHint: "Pick another id; check_user_id reports availability"}
	case errors.Is(err, post.ErrInvalidTransition):
		return &APIError{Code: CodeInvalidTransition, Message: err.Error(), RecoveryHint: "Only drafts can be published and only published posts unpublished"}
	case errors.Is(err, entityid.ErrInvalid),
		errors.Is(err, post.ErrInvalidTitle),
		errors.Is(err, post.ErrInvalidInput),
		errors.Is(err, user.ErrInvalidID),
		errors.Is(err, user.ErrInvalidName),
		errors.Is(err, user.ErrInvalidPrimaryKey),
		errors.Is(err, user.ErrInvalidInput),
		errors.Is(err, repository.ErrInvalidInput):
		return &APIError{Code: CodeInvalidInput, Message: err.Error()}
	default:
		return nil
	}
}
