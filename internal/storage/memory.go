package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Veraticus/dossier/internal/common"
	"github.com/Veraticus/dossier/internal/model"
	"github.com/Veraticus/dossier/internal/service"
)

var _ service.SummaryStore = (*MemoryStorage)(nil)

// MemoryStorage implements service.SummaryStore in memory. Records do not
// survive the process, so it suits tests and single-run replays.
type MemoryStorage struct {
	summaries map[string]model.SessionSummary
	mu        sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory summary store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		summaries: make(map[string]model.SessionSummary),
	}
}

// SaveSummary inserts or replaces the summary record of a session.
func (s *MemoryStorage) SaveSummary(ctx context.Context, summary model.SessionSummary) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSummary(summary); err != nil {
		return err
	}
	if summary.UpdatedAt.IsZero() {
		summary.UpdatedAt = summary.CreatedAt
	}
	// Only the persisted columns survive a round trip.
	summary.Recovered = false

	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[summary.SessionID] = summary
	return nil
}

// GetSummary retrieves the summary of one session.
func (s *MemoryStorage) GetSummary(ctx context.Context, sessionID string) (*model.SessionSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, exists := s.summaries[sessionID]
	if !exists {
		return nil, fmt.Errorf("session summary %s: %w", sessionID, common.ErrNotFound)
	}
	return &summary, nil
}

// ListSummaries returns every stored summary, most recently updated first.
func (s *MemoryStorage) ListSummaries(ctx context.Context) ([]model.SessionSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	summaries := make([]model.SessionSummary, 0, len(s.summaries))
	for _, summary := range s.summaries {
		summaries = append(summaries, summary)
	}
	s.mu.RUnlock()

	sortSummaries(summaries)
	return summaries, nil
}

// DeleteSummary removes the summary of one session.
func (s *MemoryStorage) DeleteSummary(ctx context.Context, sessionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.summaries, sessionID)
	return nil
}

// DeleteSummariesBefore removes summaries last updated before cutoff.
func (s *MemoryStorage) DeleteSummariesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, summary := range s.summaries {
		if summary.UpdatedAt.Before(cutoff) {
			delete(s.summaries, id)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}

func sortSummaries(summaries []model.SessionSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
		}
		return summaries[i].SessionID < summaries[j].SessionID
	})
}
