package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates a model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidChunking indicates the chunk window configuration is unusable.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidBatchSize indicates a batch size is out of range.
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrInvalidAdvice indicates an advice gate setting is out of range.
	ErrInvalidAdvice = errors.New("invalid advice configuration")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrMissingAPIKey indicates GEMINI_API_KEY is not set.
	ErrMissingAPIKey = errors.New("missing API key")
)

// validSSLModes are the sslmode values accepted by libpq/pgx.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks the configuration and fails fast on the first problem.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if strings.TrimSpace(c.GenerationModel) == "" {
		return fmt.Errorf("%w: generation_model is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model is empty", ErrInvalidModelName)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, chunk_size)", ErrInvalidChunking, c.ChunkOverlap)
	}

	if c.EmbedBatchSize < 1 || c.EmbedBatchSize > 250 {
		return fmt.Errorf("%w: embed_batch_size %d must be in 1-250", ErrInvalidBatchSize, c.EmbedBatchSize)
	}
	if c.UpsertBatchSize < 1 || c.UpsertBatchSize > 1000 {
		return fmt.Errorf("%w: upsert_batch_size %d must be in 1-1000", ErrInvalidBatchSize, c.UpsertBatchSize)
	}

	if c.AdviceTTL <= 0 {
		return fmt.Errorf("%w: advice_ttl must be positive", ErrInvalidAdvice)
	}
	if c.RateCeiling < 1 {
		return fmt.Errorf("%w: rate_ceiling must be at least 1", ErrInvalidAdvice)
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("%w: rate_window must be positive", ErrInvalidAdvice)
	}
	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: top_k %d must be in 1-50", ErrInvalidAdvice, c.TopK)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("%w: min_confidence %.2f must be in [0,1]", ErrInvalidAdvice, c.MinConfidence)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}

// ValidateProviders checks settings required when external AI providers are
// actually contacted (serve and ingest paths; migrations don't need a key).
func (c *Config) ValidateProviders() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingAPIKey)
	}
	return nil
}
