// Package advice serves cached, rate-limited best-practice guidance for
// incident occurrences. Every request ends in a decision: advice with a cache
// flag, or a declined reason. The raw occurrence text is scrubbed first and
// never hashed, cached, or logged.
package advice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/crewbrief/crewbrief/internal/knowledge"
	"github.com/crewbrief/crewbrief/internal/provider"
	"github.com/crewbrief/crewbrief/internal/retrieval"
)

// Declined reasons, stable strings surfaced to callers.
const (
	ReasonRateLimited   = "rate_limited"
	ReasonNotFound      = "not_found"
	ReasonLowConfidence = "low_confidence"
	ReasonError         = "error"
)

// ErrValidation marks a request rejected before any side effect.
var ErrValidation = errors.New("invalid advice request")

// Defaults for the gate. Overridable via Options.
const (
	DefaultTTL           = 36 * time.Hour
	DefaultMinConfidence = 0.5
	DefaultExcerptLimit  = 240
)

// Scrubber removes PII from free text, deterministically.
type Scrubber interface {
	Scrub(text string) string
}

// Retriever returns reference passages for a query, or
// retrieval.ErrNoPassages when nothing matches.
type Retriever interface {
	Retrieve(ctx context.Context, query string, scopeID *string) ([]knowledge.SearchResult, error)
}

// Generator produces structured advice from category, occurrence and
// formatted passages.
type Generator interface {
	Advise(ctx context.Context, category, occurrence, passages string) (*provider.Advice, error)
}

// CacheStore memoizes generation results by content key.
type CacheStore interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error
}

// UsageCounter enforces the per-actor request budget.
type UsageCounter interface {
	Allow(ctx context.Context, actorID string) (bool, error)
}

// Auditor records events fire-and-forget; it must never fail the request.
type Auditor interface {
	Record(ctx context.Context, action string, fields map[string]any)
}

// Request is one advice call. ActorID is optional; unattributed requests
// skip rate limiting. ScopeID widens retrieval beyond the global knowledge
// base.
type Request struct {
	Category       string
	OccurrenceText string
	ActorID        *string
	ScopeID        *string
}

// Decision is what every advice call returns. Either Payload is set, or
// Declined is true with a Reason.
type Decision struct {
	Payload   *provider.Advice
	FromCache bool
	Declined  bool
	Reason    string
}

// Options tunes the gate. Zero values fall back to defaults.
type Options struct {
	TTL           time.Duration
	MinConfidence float64
	ExcerptLimit  int
}

// Service is the advice cache and gate. It is stateless between calls; all
// shared state lives in the injected cache and usage counter, so any number
// of service instances stay consistent.
type Service struct {
	scrubber      Scrubber
	retriever     Retriever
	generator     Generator
	cache         CacheStore
	limiter       UsageCounter
	auditor       Auditor
	ttl           time.Duration
	minConfidence float64
	excerptLimit  int
	logger        *slog.Logger
	now           func() time.Time
}

// NewService wires the gate. auditor may be nil.
func NewService(scrubber Scrubber, retriever Retriever, generator Generator, cache CacheStore, limiter UsageCounter, auditor Auditor, opts Options, logger *slog.Logger) (*Service, error) {
	if scrubber == nil || retriever == nil || generator == nil || cache == nil || limiter == nil {
		return nil, fmt.Errorf("scrubber, retriever, generator, cache and limiter are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	minConfidence := opts.MinConfidence
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	excerptLimit := opts.ExcerptLimit
	if excerptLimit <= 0 {
		excerptLimit = DefaultExcerptLimit
	}

	return &Service{
		scrubber:      scrubber,
		retriever:     retriever,
		generator:     generator,
		cache:         cache,
		limiter:       limiter,
		auditor:       auditor,
		ttl:           ttl,
		minConfidence: minConfidence,
		excerptLimit:  excerptLimit,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// GetAdvice runs the gate for one request. The only returned error is
// ErrValidation for blank inputs, rejected before any side effect; every
// other failure degrades to a declined decision because this is an advisory
// feature layered over incident logging and must never block it.
func (s *Service) GetAdvice(ctx context.Context, req Request) (*Decision, error) {
	category := strings.TrimSpace(req.Category)
	if category == "" || strings.TrimSpace(req.OccurrenceText) == "" {
		return nil, fmt.Errorf("%w: category and occurrence text are required", ErrValidation)
	}

	scrubbed := s.scrubber.Scrub(req.OccurrenceText)
	key := CacheKey(category, scrubbed)

	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		// A broken cache read must not take the feature down; fall through
		// to the miss path.
		s.logger.Warn("advice cache read failed", "error", err)
	}
	if entry != nil {
		s.audit(ctx, "advice.served", map[string]any{"from_cache": true, "category": category})
		return &Decision{Payload: &entry.Payload, FromCache: true}, nil
	}

	if req.ActorID != nil && *req.ActorID != "" {
		allowed, err := s.limiter.Allow(ctx, *req.ActorID)
		if err != nil {
			return s.declined(ctx, category, ReasonError, err), nil
		}
		if !allowed {
			return s.declined(ctx, category, ReasonRateLimited, nil), nil
		}
	}

	results, err := s.retriever.Retrieve(ctx, category+" "+scrubbed, req.ScopeID)
	if err != nil {
		if errors.Is(err, retrieval.ErrNoPassages) {
			return s.declined(ctx, category, ReasonNotFound, nil), nil
		}
		return s.declined(ctx, category, ReasonError, err), nil
	}

	payload, err := s.generator.Advise(ctx, category, scrubbed, retrieval.Format(results))
	if err != nil {
		return s.declined(ctx, category, ReasonError, err), nil
	}

	// Confidence gate. Low-confidence results are never cached, so the next
	// identical request gets a fresh chance instead of a stuck poor answer.
	if payload == nil || strings.TrimSpace(payload.Summary) == "" || payload.Confidence < s.minConfidence {
		return s.declined(ctx, category, ReasonLowConfidence, nil), nil
	}

	if err := s.cache.Put(ctx, &Entry{
		Key:       key,
		Category:  category,
		Excerpt:   excerpt(scrubbed, s.excerptLimit),
		Payload:   *payload,
		ExpiresAt: s.now().Add(s.ttl),
	}); err != nil {
		// The advice itself is good; a failed write only costs a future hit.
		s.logger.Warn("advice cache write failed", "error", err)
	}

	s.audit(ctx, "advice.served", map[string]any{"from_cache": false, "category": category, "confidence": payload.Confidence})
	return &Decision{Payload: payload}, nil
}

// declined builds a declined decision and records it.
func (s *Service) declined(ctx context.Context, category, reason string, cause error) *Decision {
	if cause != nil {
		s.logger.Warn("advice declined", "reason", reason, "category", category, "error", cause)
	} else {
		s.logger.Info("advice declined", "reason", reason, "category", category)
	}
	s.audit(ctx, "advice.declined", map[string]any{"reason": reason, "category": category})
	return &Decision{Declined: true, Reason: reason}
}

func (s *Service) audit(ctx context.Context, action string, fields map[string]any) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, action, fields)
}

// excerpt bounds scrubbed text for observability, in runes so a multibyte
// character is never split.
func excerpt(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
