// Package session keeps the process-wide set of open import sessions and
// recovers them from their persisted summaries after a restart.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/dossier/internal/common"
	"github.com/Veraticus/dossier/internal/engine"
	"github.com/Veraticus/dossier/internal/metrics"
	"github.com/Veraticus/dossier/internal/model"
	"github.com/Veraticus/dossier/internal/service"
	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned when a session is neither in memory nor
	// in the summary store.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed is returned when the stored summary belongs to a
	// closed session, which cannot take new extractions.
	ErrSessionClosed = errors.New("session closed")
)

// Registry maps session IDs to their aggregators. Lookups share a read lock;
// create, close and cleanup take the write lock. Store I/O never happens
// while the lock is held.
type Registry struct {
	sessions map[string]*engine.SessionAggregator
	store    service.SummaryStore
	metrics  *metrics.Collector
	config   engine.Config
	mu       sync.RWMutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore enables recovery and persistence through store.
func WithStore(store service.SummaryStore) Option {
	return func(r *Registry) {
		r.store = store
	}
}

// WithMetrics records session lifecycle events on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates an empty registry whose sessions use config.
func NewRegistry(config engine.Config, opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*engine.SessionAggregator),
		config:   config,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.config.Clock == nil {
		r.config.Clock = time.Now
	}
	return r
}

func (r *Registry) sessionOptions() []engine.SessionOption {
	return []engine.SessionOption{engine.WithMetrics(r.metrics)}
}

// GetOrCreate returns the session registered under sessionID, registering a
// new one when absent. An empty sessionID gets a freshly generated ID.
func (r *Registry) GetOrCreate(sessionID, owner string) *engine.SessionAggregator {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		return s
	}
	s = engine.NewSessionAggregator(sessionID, owner, r.config, r.sessionOptions()...)
	r.sessions[sessionID] = s
	r.metrics.SessionOpened(false)

	slog.Info("Opened session",
		"session_id", sessionID,
		"owner", owner)
	return s
}

// Get returns the in-memory session registered under sessionID.
func (r *Registry) Get(sessionID string) (*engine.SessionAggregator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// GetWithRecovery returns the in-memory session or, after a restart, rebuilds
// a counters-only session from its persisted summary.
func (r *Registry) GetWithRecovery(ctx context.Context, sessionID string) (*engine.SessionAggregator, error) {
	if s, ok := r.Get(sessionID); ok {
		return s, nil
	}
	if r.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	summary, err := r.store.GetSummary(ctx, sessionID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to recover session %s: %w", sessionID, err)
	}
	if !summary.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, sessionID)
	}

	restored := engine.RestoreSessionAggregator(*summary, r.config, r.sessionOptions()...)

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another caller may have created or recovered the session meanwhile.
	if s, ok := r.sessions[sessionID]; ok {
		return s, nil
	}
	r.sessions[sessionID] = restored
	r.metrics.SessionOpened(true)

	slog.Info("Recovered session from summary",
		"session_id", sessionID,
		"processed_files", summary.ProcessedFiles,
		"errors", summary.Errors)
	return restored, nil
}

// Close removes the session from the registry and marks it inactive. It does
// not consolidate; callers pull patches before closing.
func (r *Registry) Close(sessionID string) (*engine.SessionAggregator, bool) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return nil, false
	}
	s.MarkInactive()
	r.metrics.SessionRemoved(metrics.ReasonClosed)

	slog.Info("Closed session", "session_id", sessionID)
	return s, true
}

// CleanupExpired removes sessions created more than maxAge ago and returns
// their IDs. Expired sessions are dropped without consolidation.
func (r *Registry) CleanupExpired(maxAge time.Duration) []string {
	cutoff := r.config.Clock().Add(-maxAge)

	r.mu.Lock()
	var expired []*engine.SessionAggregator
	for id, s := range r.sessions {
		if s.CreatedAt().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, s := range expired {
		s.MarkInactive()
		r.metrics.SessionRemoved(metrics.ReasonExpired)
		ids = append(ids, s.ID())
	}
	sort.Strings(ids)

	if len(ids) > 0 {
		slog.Info("Expired sessions",
			"count", len(ids),
			"max_age", maxAge)
	}
	return ids
}

// Persist writes the current summary of s to the summary store.
func (r *Registry) Persist(ctx context.Context, s *engine.SessionAggregator) error {
	if r.store == nil {
		return nil
	}
	summary := s.Summary()
	if err := r.store.SaveSummary(ctx, summary); err != nil {
		return fmt.Errorf("failed to persist session %s: %w", summary.SessionID, err)
	}
	return nil
}

// Active returns the summaries of all in-memory sessions, sorted by ID.
func (r *Registry) Active() []model.SessionSummary {
	r.mu.RLock()
	sessions := make([]*engine.SessionAggregator, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	summaries := make([]model.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, s.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].SessionID < summaries[j].SessionID
	})
	return summaries
}

// Len returns the number of in-memory sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
