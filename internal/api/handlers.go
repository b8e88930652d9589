// Package api exposes the producer HTTP surface: document registration and
// ingestion, advice requests, and health probes.
package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/crewbrief/crewbrief/internal/advice"
	"github.com/crewbrief/crewbrief/internal/ingest"
	"github.com/crewbrief/crewbrief/internal/knowledge"
)

// DocumentRegistry manages source document metadata.
type DocumentRegistry interface {
	Create(ctx context.Context, doc *knowledge.SourceDocument) error
	Get(ctx context.Context, id uuid.UUID) (*knowledge.SourceDocument, error)
	List(ctx context.Context, limit int) ([]*knowledge.SourceDocument, error)
}

// Ingestor runs the ingestion pipeline for one document.
type Ingestor interface {
	Ingest(ctx context.Context, documentID uuid.UUID, raw []byte) (*ingest.Result, error)
}

// Adviser answers advice requests with a decision.
type Adviser interface {
	GetAdvice(ctx context.Context, req advice.Request) (*advice.Decision, error)
}

// Pinger verifies the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the API's dependencies.
type Handlers struct {
	documents DocumentRegistry
	ingestor  Ingestor
	adviser   Adviser
	pinger    Pinger
	logger    *slog.Logger
}

// NewHandlers wires the handler set. pinger may be nil; the health probe then
// reports liveness only.
func NewHandlers(documents DocumentRegistry, ingestor Ingestor, adviser Adviser, pinger Pinger, logger *slog.Logger) (*Handlers, error) {
	if documents == nil || ingestor == nil || adviser == nil {
		return nil, errMissingDeps
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		documents: documents,
		ingestor:  ingestor,
		adviser:   adviser,
		pinger:    pinger,
		logger:    logger,
	}, nil
}
