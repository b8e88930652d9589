package provider

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// VectorDimension is the embedding dimensionality stored in pgvector columns.
// gemini-embedding-001 emits 3072 dimensions by default and supports
// truncation via OutputDimensionality; the passages schema is vector(768).
// Every passage and every query vector must have exactly this dimension.
const VectorDimension int32 = 768

// EmbedTimeout bounds one embedding batch call. A provider outage surfaces as
// a typed error, never an unbounded wait.
const EmbedTimeout = 30 * time.Second

// EmbedBatch embeds texts in a single provider call, preserving input order.
// Failure is all-or-nothing for the batch: either every text gets a vector of
// VectorDimension, or an error is returned and no partial result escapes.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	dim := VectorDimension
	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	resp, err := c.genai.Models.EmbedContent(embedCtx, c.embedderModel, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding batch of %d texts: %w", len(texts), err)
	}

	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), got)
	}

	vectors := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) != int(VectorDimension) {
			return nil, fmt.Errorf("embedding %d has wrong dimension: want %d", i, VectorDimension)
		}
		vectors[i] = e.Values
	}

	return vectors, nil
}
