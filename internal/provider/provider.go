// Package provider wraps the external Gemini API behind the two narrow
// operations the core needs: batch embedding and single-shot structured
// generation. Both providers are consumed as black boxes: every call carries
// an explicit timeout, and malformed responses are rejected at this boundary
// instead of leaking loosely-shaped data into the engines.
package provider

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/crewbrief/crewbrief/internal/config"
)

// Client talks to the Gemini API for embeddings and advice generation.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	genai           *genai.Client
	embedderModel   string
	generationModel string
	logger          *slog.Logger
}

// New creates a provider Client from configuration.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Client{
		genai:           client,
		embedderModel:   cfg.EmbedderModel,
		generationModel: cfg.GenerationModel,
		logger:          logger,
	}, nil
}
