// Package storage provides the durable session-summary stores: SQLite (the
// default), Redis and an in-memory store for tests and ephemeral runs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/dossier/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrInvalidSummary = errors.New("invalid session summary")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateSummary validates a summary before it is written.
func validateSummary(summary model.SessionSummary) error {
	if strings.TrimSpace(summary.SessionID) == "" {
		return fmt.Errorf("%w: missing session ID", ErrInvalidSummary)
	}
	if summary.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing created_at", ErrInvalidSummary)
	}
	if summary.TotalFiles < 0 || summary.ProcessedFiles < 0 || summary.Errors < 0 || summary.ClientsCount < 0 {
		return fmt.Errorf("%w: negative counter", ErrInvalidSummary)
	}
	return nil
}
