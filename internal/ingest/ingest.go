// Package ingest turns a registered source document into embedded, searchable
// passages: extract text, normalize, chunk, embed in batches, and atomically
// replace the document's passage set.
//
// Re-ingestion is idempotent (the passage set is replaced, never appended)
// and single-flight per document via the ingesting status guard.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/crewbrief/crewbrief/internal/chunk"
	"github.com/crewbrief/crewbrief/internal/knowledge"
)

// DocumentTracker tracks ingestion status on source documents.
type DocumentTracker interface {
	BeginIngest(ctx context.Context, id uuid.UUID) error
	MarkReady(ctx context.Context, id uuid.UUID, chunkCount int, byteSize int64) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause string) error
}

// PassageWriter replaces a document's passage set atomically.
type PassageWriter interface {
	Replace(ctx context.Context, documentID uuid.UUID, passages []knowledge.Passage, batchSize int) error
}

// Embedder embeds a batch of texts, preserving input order. Failure is
// all-or-nothing per batch.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Result reports a completed ingestion run.
type Result struct {
	ChunksCreated int
	Bytes         int64
	Type          string // detected content type of the raw bytes
}

// Options tunes the ingestion pipeline. Zero values fall back to defaults.
type Options struct {
	ChunkSize       int // window size in runes (default 700)
	ChunkOverlap    int // overlap in runes (default 120)
	EmbedBatchSize  int // texts per embedding call (default 64)
	UpsertBatchSize int // rows per passage insert batch (default 200)
}

const (
	defaultChunkSize    = 700
	defaultChunkOverlap = 120
	defaultEmbedBatch   = 64
	defaultUpsertBatch  = 200
)

// Engine orchestrates one ingestion run per document.
//
// Engine is safe for concurrent use: independent documents may ingest in
// parallel; concurrent runs for the same document are rejected with
// knowledge.ErrConflict by the status guard.
type Engine struct {
	docs        DocumentTracker
	passages    PassageWriter
	embedder    Embedder
	splitter    *chunk.Splitter
	embedBatch  int
	upsertBatch int
	logger      *slog.Logger
}

// New creates an ingestion Engine.
func New(docs DocumentTracker, passages PassageWriter, embedder Embedder, opts Options, logger *slog.Logger) (*Engine, error) {
	if docs == nil || passages == nil || embedder == nil {
		return nil, fmt.Errorf("docs, passages and embedder are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	size := opts.ChunkSize
	if size == 0 {
		size = defaultChunkSize
	}
	overlap := opts.ChunkOverlap
	if opts.ChunkSize == 0 && opts.ChunkOverlap == 0 {
		overlap = defaultChunkOverlap
	}

	splitter, err := chunk.NewSplitter(size, overlap)
	if err != nil {
		return nil, fmt.Errorf("configuring splitter: %w", err)
	}

	embedBatch := opts.EmbedBatchSize
	if embedBatch <= 0 {
		embedBatch = defaultEmbedBatch
	}
	upsertBatch := opts.UpsertBatchSize
	if upsertBatch <= 0 {
		upsertBatch = defaultUpsertBatch
	}

	return &Engine{
		docs:        docs,
		passages:    passages,
		embedder:    embedder,
		splitter:    splitter,
		embedBatch:  embedBatch,
		upsertBatch: upsertBatch,
		logger:      logger,
	}, nil
}

// Ingest runs the full pipeline for one document. On unrecoverable failure
// the document is marked failed with the cause preserved, and the returned
// error carries the failing stage as its Type.
//
// knowledge.ErrConflict (a run already in flight) and knowledge.ErrNotFound
// are returned as-is without touching document state.
func (e *Engine) Ingest(ctx context.Context, documentID uuid.UUID, raw []byte) (*Result, error) {
	if err := e.docs.BeginIngest(ctx, documentID); err != nil {
		return nil, err
	}

	result, err := e.run(ctx, documentID, raw)
	if err != nil {
		if markErr := e.docs.MarkFailed(ctx, documentID, err.Error()); markErr != nil {
			e.logger.Error("recording ingestion failure", "document_id", documentID, "error", markErr)
		}
		return nil, err
	}

	if err := e.docs.MarkReady(ctx, documentID, result.ChunksCreated, result.Bytes); err != nil {
		return nil, &Error{Type: FailureStorage, Err: err}
	}

	e.logger.Info("document ingested",
		"document_id", documentID,
		"chunks", result.ChunksCreated,
		"bytes", result.Bytes,
		"type", result.Type)
	return result, nil
}

// run executes extraction through passage replacement.
func (e *Engine) run(ctx context.Context, documentID uuid.UUID, raw []byte) (*Result, error) {
	text, ctype, err := extractText(raw)
	if err != nil {
		return nil, &Error{Type: FailureExtraction, Err: err}
	}

	chunks := e.splitter.Split(chunk.Normalize(text))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := e.embedAll(ctx, texts)
	if err != nil {
		return nil, &Error{Type: FailureEmbedding, Err: err}
	}

	passages := make([]knowledge.Passage, len(chunks))
	for i, c := range chunks {
		passages[i] = knowledge.Passage{
			DocumentID: documentID,
			Position:   c.Position,
			Content:    c.Content,
			Embedding:  vectors[i],
		}
	}

	if err := e.passages.Replace(ctx, documentID, passages, e.upsertBatch); err != nil {
		return nil, &Error{Type: FailureStorage, Err: err}
	}

	return &Result{
		ChunksCreated: len(chunks),
		Bytes:         int64(len(raw)),
		Type:          ctype,
	}, nil
}

// embedAll embeds texts in batches. Any batch failure fails the whole run;
// no partial silent success.
func (e *Engine) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += e.embedBatch {
		end := start + e.embedBatch
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("batch %d-%d: got %d vectors for %d texts", start, end, len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// extractText pulls plain text out of raw bytes. Binary formats (PDF, DOCX)
// are extracted upstream by a format-specific service; by the time bytes reach
// this engine they must be valid UTF-8 text.
func extractText(raw []byte) (text, contentType string, err error) {
	if len(raw) == 0 {
		return "", "text/plain", nil
	}

	ctype := http.DetectContentType(raw)
	if !strings.HasPrefix(ctype, "text/") {
		return "", "", fmt.Errorf("unsupported content type %q: expected extracted plain text", ctype)
	}
	if !utf8.Valid(raw) {
		return "", "", fmt.Errorf("raw bytes are not valid UTF-8")
	}

	return string(raw), ctype, nil
}
