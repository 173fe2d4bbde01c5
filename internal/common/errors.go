// Package common defines shared constants and sentinel errors used across
// the server and worker. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Hierarchy errors raised when a child entity is created.
	ErrorInvalidParent   = errors.New("parent not found")
	ErrorParentNotFolder = errors.New("parent is not a folder")
	ErrorInvalidSize     = errors.New("invalid size")

	// Transport errors.
	ErrorTooLarge = errors.New("request body too large")
)

// MissingFieldError reports a required request field that was absent or empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing %s", e.Field)
}

// NewMissingFieldError returns a *MissingFieldError for the given field name.
func NewMissingFieldError(field string) error {
	return &MissingFieldError{Field: field}
}
