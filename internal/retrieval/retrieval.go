// Package retrieval answers "what do we know about this occurrence": it embeds
// the query text and returns the nearest ready passages with provenance.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crewbrief/crewbrief/internal/knowledge"
)

// ErrNoPassages means no ready passage matched the query scope. Callers decline
// rather than generate advice from nothing.
var ErrNoPassages = errors.New("no matching passages")

// DefaultTopK bounds how many passages one query returns.
const DefaultTopK = 5

// Embedder embeds query texts. It is the same contract ingestion uses, so
// query and passage vectors share one embedding space.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher answers nearest-neighbor passage queries.
type Searcher interface {
	Search(ctx context.Context, queryVec []float32, scopeID *string, topK int) ([]knowledge.SearchResult, error)
}

// Engine retrieves reference passages for a scrubbed occurrence text.
type Engine struct {
	embedder Embedder
	searcher Searcher
	topK     int
	logger   *slog.Logger
}

// New creates a retrieval Engine. topK <= 0 falls back to DefaultTopK.
func New(embedder Embedder, searcher Searcher, topK int, logger *slog.Logger) (*Engine, error) {
	if embedder == nil || searcher == nil {
		return nil, fmt.Errorf("embedder and searcher are required")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{embedder: embedder, searcher: searcher, topK: topK, logger: logger}, nil
}

// Retrieve embeds the query and returns the nearest passages in scope.
// Returns ErrNoPassages when nothing matches.
func (e *Engine) Retrieve(ctx context.Context, query string, scopeID *string) ([]knowledge.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty")
	}

	vectors, err := e.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors for one text", len(vectors))
	}

	results, err := e.searcher.Search(ctx, vectors[0], scopeID, e.topK)
	if err != nil {
		return nil, fmt.Errorf("searching passages: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNoPassages
	}

	e.logger.Debug("retrieved passages",
		"count", len(results),
		"top_similarity", results[0].Similarity)
	return results, nil
}

// Format renders results as a numbered reference block for the generation
// prompt, each passage tagged with its source title and position.
func Format(results []knowledge.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] (source: %s, passage %d)\n%s",
			i+1, r.DocumentTitle, r.Passage.Position, r.Passage.Content)
	}
	return b.String()
}
