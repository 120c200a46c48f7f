package engine

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/dossier/internal/metrics"
	"github.com/Veraticus/dossier/internal/model"
	"github.com/Veraticus/dossier/internal/normalize"
)

// SessionAggregator holds the client aggregators of one import batch together
// with its progress counters. The session lock guards the client map and the
// counters only; merges run under each client's own lock.
type SessionAggregator struct {
	createdAt      time.Time
	updatedAt      time.Time
	clients        map[string]*ClientAggregator
	metrics        *metrics.Collector
	config         Config
	id             string
	owner          string
	totalFiles     int
	processedFiles int
	errors         int
	// restoredClients is the clients_count persisted before recovery.
	restoredClients int
	mu              sync.RWMutex
	active          bool
	recovered       bool
}

// SessionOption configures a SessionAggregator.
type SessionOption func(*SessionAggregator)

// WithMetrics records merged extractions and ingestion errors on m.
func WithMetrics(m *metrics.Collector) SessionOption {
	return func(s *SessionAggregator) {
		s.metrics = m
	}
}

// NewSessionAggregator creates an active, empty session.
func NewSessionAggregator(id, owner string, config Config, opts ...SessionOption) *SessionAggregator {
	config = config.withDefaults()
	now := config.Clock()
	s := &SessionAggregator{
		config:    config,
		id:        id,
		owner:     owner,
		clients:   make(map[string]*ClientAggregator),
		createdAt: now,
		updatedAt: now,
		active:    true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RestoreSessionAggregator rebuilds a session from its persisted summary.
// Only the counters and the active flag survive: the restored session starts with no clients and
// accumulates new extractions normally.
func RestoreSessionAggregator(summary model.SessionSummary, config Config, opts ...SessionOption) *SessionAggregator {
	s := NewSessionAggregator(summary.SessionID, summary.OwnerIdentity, config, opts...)
	if !summary.CreatedAt.IsZero() {
		s.createdAt = summary.CreatedAt
	}
	if !summary.UpdatedAt.IsZero() {
		s.updatedAt = summary.UpdatedAt
	}
	s.totalFiles = summary.TotalFiles
	s.processedFiles = summary.ProcessedFiles
	s.errors = summary.Errors
	s.restoredClients = summary.ClientsCount
	s.active = summary.IsActive
	s.recovered = true
	return s
}

// ID returns the session identifier.
func (s *SessionAggregator) ID() string {
	return s.id
}

// Owner returns the identity that opened the session.
func (s *SessionAggregator) Owner() string {
	return s.owner
}

// CreatedAt returns when the session was opened.
func (s *SessionAggregator) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

// GetOrCreateClient returns the aggregator for clientKey, creating it on first use.
// Keys are normalized, so differently spelled forms of one name share an aggregator.
// When clientKey is blank the display name is used as the key.
func (s *SessionAggregator) GetOrCreateClient(clientKey, displayName string) *ClientAggregator {
	key := normalize.ClientKey(clientKey)
	if key == "" {
		key = normalize.ClientKey(displayName)
	}
	if displayName == "" {
		displayName = strings.TrimSpace(clientKey)
	}

	s.mu.RLock()
	client, ok := s.clients[key]
	s.mu.RUnlock()
	if ok {
		client.setDisplayNameIfEmpty(displayName)
		return client
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.clients[key]; ok {
		return client
	}
	client = NewClientAggregator(key, displayName, s.config)
	s.clients[key] = client

	slog.Debug("Created client aggregator",
		"session_id", s.id,
		"client", key)
	return client
}

// AddFileExtraction merges one extraction into the named client and counts the
// file as processed.
func (s *SessionAggregator) AddFileExtraction(clientKey, displayName string, docType model.DocumentType, fields map[string]any, filename string) {
	client := s.GetOrCreateClient(clientKey, displayName)
	client.AddExtraction(docType, fields, filename)

	s.mu.Lock()
	s.processedFiles++
	s.updatedAt = s.config.Clock()
	s.mu.Unlock()

	s.metrics.ExtractionMerged(string(model.ParseDocumentType(string(docType))))
}

// IncrementError counts one file that failed before reaching the engine.
func (s *SessionAggregator) IncrementError() {
	s.mu.Lock()
	s.errors++
	s.updatedAt = s.config.Clock()
	s.mu.Unlock()

	s.metrics.IngestionError()
}

// SetTotalFiles records the expected number of files in the batch.
func (s *SessionAggregator) SetTotalFiles(n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	s.totalFiles = n
	s.updatedAt = s.config.Clock()
	s.mu.Unlock()
}

// AllConsolidatedData returns one patch per client, keyed by client key. It is
// safe to call on a partially ingested batch.
func (s *SessionAggregator) AllConsolidatedData() map[string]model.Patch {
	clients := s.snapshotClients()
	out := make(map[string]model.Patch, len(clients))
	for _, client := range clients {
		out[client.ClientKey()] = client.ConsolidatedData()
	}
	return out
}

// ClientSummaries returns per-client counts sorted by client key.
func (s *SessionAggregator) ClientSummaries() []model.ClientSummary {
	clients := s.snapshotClients()
	out := make([]model.ClientSummary, 0, len(clients))
	for _, client := range clients {
		out = append(out, client.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ClientKey < out[j].ClientKey
	})
	return out
}

// Client returns the aggregator registered under clientKey, if any.
func (s *SessionAggregator) Client(clientKey string) (*ClientAggregator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[normalize.ClientKey(clientKey)]
	return client, ok
}

func (s *SessionAggregator) snapshotClients() []*ClientAggregator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clients := make([]*ClientAggregator, 0, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, client)
	}
	return clients
}

// Summary returns the session's progress counters.
func (s *SessionAggregator) Summary() model.SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.SessionSummary{
		SessionID:      s.id,
		OwnerIdentity:  s.owner,
		CreatedAt:      s.createdAt,
		UpdatedAt:      s.updatedAt,
		TotalFiles:     s.totalFiles,
		ProcessedFiles: s.processedFiles,
		Errors:         s.errors,
		ClientsCount:   max(len(s.clients), s.restoredClients),
		IsActive:       s.active,
		Recovered:      s.recovered,
	}
}

// MarkInactive moves the session to its terminal closed state.
func (s *SessionAggregator) MarkInactive() {
	s.mu.Lock()
	s.active = false
	s.updatedAt = s.config.Clock()
	s.mu.Unlock()
}

// IsActive reports whether the session is still open.
func (s *SessionAggregator) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Recovered reports whether the session was rebuilt from a persisted summary.
func (s *SessionAggregator) Recovered() bool {
	return s.recovered
}
