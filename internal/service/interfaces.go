// Package service defines the contracts of the collaborators around the
// consolidation engine.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/dossier/internal/model"
)

// SummaryStore defines the contract for durable session-summary persistence.
// Only progress counters are stored; per-client state never leaves memory.
type SummaryStore interface {
	SaveSummary(ctx context.Context, summary model.SessionSummary) error
	// GetSummary returns common.ErrNotFound (wrapped) when no record exists.
	GetSummary(ctx context.Context, sessionID string) (*model.SessionSummary, error)
	ListSummaries(ctx context.Context) ([]model.SessionSummary, error)
	DeleteSummary(ctx context.Context, sessionID string) error
	// DeleteSummariesBefore removes records last updated before cutoff and
	// returns how many were removed.
	DeleteSummariesBefore(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// ProfileStore receives consolidated patches for client profiles.
type ProfileStore interface {
	ApplyPatch(ctx context.Context, clientKey string, patch model.Patch) error
}

// Extractor is the AI document-extraction call: document bytes plus a
// document-type label in, a loose field map out.
type Extractor interface {
	Extract(ctx context.Context, data []byte, docType model.DocumentType) (map[string]any, error)
}
