package shared

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrUnauthorized indicates a missing or invalid session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates an authenticated caller outside the required role or scope.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition indicates a status change the workflow does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrMissingComment indicates a closing transition without a comment.
	ErrMissingComment = errors.New("comment required")
	// ErrInUse indicates a delete or disable blocked by referencing requests.
	ErrInUse = errors.New("in use by requests")
	// ErrCatalogIncomplete indicates missing reference data (types, priorities, statuses).
	ErrCatalogIncomplete = errors.New("catalog incomplete")
	// ErrNoCompany indicates the requester has no company to file against.
	ErrNoCompany = errors.New("no company")
	// ErrClosedRequest indicates a picture change on a completed or cancelled request.
	ErrClosedRequest = errors.New("request closed")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Error attaches a caller-facing message to one of the sentinel kinds.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

// NewError wraps kind with a human-readable message.
func NewError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// ValidationError carries field-level hints for rejected input.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %v", e.Message, e.Fields)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError.
func NewValidationError(message string, fields map[string]string) error {
	return &ValidationError{Message: message, Fields: fields}
}

// InUseError reports how many requests block a delete or disable.
type InUseError struct {
	Count   int64
	Message string
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("in use by %d requests", e.Count)
}

func (e *InUseError) Unwrap() error { return ErrInUse }

// IsUniqueViolation reports whether err is a postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation reports whether err is a postgres foreign_key_violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
