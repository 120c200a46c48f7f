// Package extract is the caller-side glue between uploaded documents and a
// session: it rate-limits calls to the AI extractor, skips documents already
// extracted, and counts failures on the session.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/dossier/internal/common"
	"github.com/Veraticus/dossier/internal/engine"
	"github.com/Veraticus/dossier/internal/model"
	"github.com/Veraticus/dossier/internal/service"
	"golang.org/x/time/rate"
)

// Config holds configuration options for the pipeline.
type Config struct {
	// Clock drives cache expiry; nil means time.Now.
	Clock func() time.Time
	// RatePerSecond caps extractor calls; zero or less disables the limit.
	RatePerSecond float64
	// Burst is the number of calls allowed at once; defaults to 1.
	Burst int
	// CacheTTL is how long field maps are reused; zero disables the cache.
	CacheTTL time.Duration
}

// Document is one uploaded file destined for a client in a session.
type Document struct {
	ClientKey   string
	DisplayName string
	Filename    string
	Type        model.DocumentType
	Data        []byte
}

// Pipeline feeds documents through the extractor into session aggregators.
// Failed extractions are counted on the session and never retried.
type Pipeline struct {
	extractor service.Extractor
	limiter   *rate.Limiter
	cache     *fieldCache
}

// NewPipeline creates a pipeline around extractor.
func NewPipeline(extractor service.Extractor, config Config) *Pipeline {
	p := &Pipeline{extractor: extractor}

	if config.RatePerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), burst)
	}
	if config.CacheTTL > 0 {
		p.cache = newFieldCache(config.CacheTTL, config.Clock)
	}
	return p
}

// Ingest extracts doc and merges the result into its client in s. Any failure
// before the merge increments the session's error counter and is returned.
func (p *Pipeline) Ingest(ctx context.Context, s *engine.SessionAggregator, doc Document) error {
	fields, err := p.extract(ctx, doc)
	if err != nil {
		s.IncrementError()
		slog.Warn("Extraction failed",
			"session_id", s.ID(),
			"client", doc.ClientKey,
			"filename", doc.Filename,
			"error", err)
		return err
	}

	s.AddFileExtraction(doc.ClientKey, doc.DisplayName, doc.Type, fields, doc.Filename)
	return nil
}

func (p *Pipeline) extract(ctx context.Context, doc Document) (map[string]any, error) {
	if len(doc.Data) == 0 {
		return nil, fmt.Errorf("%s: %w", doc.Filename, common.ErrEmptyDocument)
	}

	var key string
	if p.cache != nil {
		key = cacheKey(doc.Data, doc.Type)
		if fields, ok := p.cache.get(key); ok {
			slog.Debug("Reusing cached extraction",
				"filename", doc.Filename,
				"document_type", doc.Type)
			return fields, nil
		}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter canceled: %w", err)
		}
	}

	fields, err := p.extractor.Extract(ctx, doc.Data, doc.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", common.ErrExtractionFailed, doc.Filename, err)
	}
	if fields == nil {
		fields = map[string]any{}
	}

	if p.cache != nil {
		p.cache.set(key, fields)
	}
	return fields, nil
}

// JSONExtractor treats document bytes as an already-extracted JSON field map.
// It replays recorded extractions through the pipeline without an AI call.
type JSONExtractor struct{}

var _ service.Extractor = JSONExtractor{}

// Extract decodes data as a JSON object.
func (JSONExtractor) Extract(_ context.Context, data []byte, _ model.DocumentType) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("invalid field map: %w", err)
	}
	return fields, nil
}
