package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// Document ingestion statuses. Transitions: pending → ingesting → ready,
// or pending → ingesting → failed. A failed document may be re-ingested.
const (
	StatusPending   = "pending"
	StatusIngesting = "ingesting"
	StatusReady     = "ready"
	StatusFailed    = "failed"
)

// SourceDocument is one ingestible unit: a manual, a venue policy, a safety
// briefing. Registration stores metadata only; raw bytes live in an external
// object store behind StorageLocator.
type SourceDocument struct {
	ID               uuid.UUID
	Title            string
	OwnerScopeID     *string // nil = global knowledge base
	Tags             []string
	OriginalFilename string
	StorageLocator   string
	Status           string
	ChunkCount       int
	ByteSize         int64
	FailureCause     string // human-readable cause retained for retry diagnostics
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Passage is one retrievable unit produced during ingestion. A document
// exclusively owns its passages; re-ingestion replaces the whole set.
type Passage struct {
	DocumentID uuid.UUID
	Position   int
	Content    string
	Embedding  []float32
}

// SearchResult is a passage plus its similarity to the query and enough
// document metadata for provenance.
type SearchResult struct {
	Passage       Passage
	DocumentTitle string
	Similarity    float64
}
