package service

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrForbidden         = errors.New("forbidden: insufficient permissions")
	ErrFormReadOnly      = errors.New("form is read-only: start a new record (F5) or edit the current one (F6)")
	ErrActionUnavailable = errors.New("action is not available on this form")
	ErrMediaNotFound     = errors.New("attachment not found")
)

type ValidationError struct {
	Fields []string
	// Cause is the domain error behind a single-field failure, if any.
	Cause error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

type AuditEntry struct {
	UserID       uuid.UUID
	UserRole     string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	RequestID    string
	StatusCode   int
	Changes      string
}
