// Package config provides application configuration with multi-source priority.
//
// Sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.crewbrief/config.yaml, or ./config.yaml)
//  3. Default values
//
// Categories:
//   - AI: generation model, embedder model and output dimensionality
//   - Storage: PostgreSQL connection (see storage.go)
//   - Ingest: chunk window, overlap, batch sizes
//   - Advice: cache TTL, rate-limit ceiling, confidence threshold, topK
//   - Server: listen address, per-IP rate limiting, proxy trust
//
// Sensitive values are masked in MarshalJSON/String; validation is fail-fast
// with sentinel errors (see validation.go).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultEmbedderModel is the Gemini embedding model used for both
	// passages and queries. gemini-embedding-001 emits 3072 dimensions by
	// default but supports truncation via OutputDimensionality; the
	// passages schema stores vector(768).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultGenerationModel produces the structured advice payload.
	DefaultGenerationModel = "gemini-2.5-flash"

	// DefaultChunkSize and DefaultChunkOverlap define the ingestion window.
	// The overlap trades ~17% storage redundancy for retrieval recall:
	// no semantic unit is split across a boundary without surrounding
	// context in the neighboring passage.
	DefaultChunkSize    = 700
	DefaultChunkOverlap = 120

	// DefaultEmbedBatchSize bounds texts per embedding request.
	DefaultEmbedBatchSize = 64

	// DefaultUpsertBatchSize bounds rows per passage insert statement.
	DefaultUpsertBatchSize = 200

	// DefaultAdviceTTL is how long a cached advice entry stays valid.
	DefaultAdviceTTL = 36 * time.Hour

	// DefaultRateCeiling is the per-actor advice request budget within
	// the trailing rate window.
	DefaultRateCeiling = 6

	// DefaultRateWindow is the trailing window for the actor budget.
	DefaultRateWindow = 60 * time.Second

	// DefaultTopK is the passage count retrieved per advice request.
	DefaultTopK = 5

	// DefaultMinConfidence gates generation output: anything below is
	// declined and never cached.
	DefaultMinConfidence = 0.5
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON. When adding
// new secrets, update MarshalJSON.
type Config struct {
	// AI configuration
	GenerationModel string `mapstructure:"generation_model" json:"generation_model"`
	EmbedderModel   string `mapstructure:"embedder_model" json:"embedder_model"`
	GeminiAPIKey    string `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Ingest configuration
	ChunkSize       int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap    int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	EmbedBatchSize  int `mapstructure:"embed_batch_size" json:"embed_batch_size"`
	UpsertBatchSize int `mapstructure:"upsert_batch_size" json:"upsert_batch_size"`

	// Advice configuration
	AdviceTTL     time.Duration `mapstructure:"advice_ttl" json:"advice_ttl"`
	RateCeiling   int           `mapstructure:"rate_ceiling" json:"rate_ceiling"`
	RateWindow    time.Duration `mapstructure:"rate_window" json:"rate_window"`
	TopK          int           `mapstructure:"top_k" json:"top_k"`
	MinConfidence float64       `mapstructure:"min_confidence" json:"min_confidence"`

	// Server configuration
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	TrustProxy bool   `mapstructure:"trust_proxy" json:"trust_proxy"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".crewbrief")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults carry the day.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides individual postgres_* values.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// AI defaults
	v.SetDefault("generation_model", DefaultGenerationModel)
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "crewbrief")
	v.SetDefault("postgres_password", "crewbrief_dev_password")
	v.SetDefault("postgres_db_name", "crewbrief")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Ingest defaults
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)
	v.SetDefault("embed_batch_size", DefaultEmbedBatchSize)
	v.SetDefault("upsert_batch_size", DefaultUpsertBatchSize)

	// Advice defaults
	v.SetDefault("advice_ttl", DefaultAdviceTTL)
	v.SetDefault("rate_ceiling", DefaultRateCeiling)
	v.SetDefault("rate_window", DefaultRateWindow)
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("min_confidence", DefaultMinConfidence)

	// Server defaults
	v.SetDefault("listen_addr", "127.0.0.1:8386")
	v.SetDefault("trust_proxy", false)
}

// bindEnvVariables binds environment variables explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("listen_addr", "CREWBRIEF_LISTEN_ADDR")
	mustBind("trust_proxy", "CREWBRIEF_TRUST_PROXY")
	mustBind("generation_model", "CREWBRIEF_GENERATION_MODEL")
	mustBind("embedder_model", "CREWBRIEF_EMBEDDER_MODEL")
}

// maskedValue is the placeholder for masked sensitive data. Full-width blocks
// avoid accidental substring matches against real secret fragments.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of 8 chars or fewer are
// fully masked; longer ones keep the first and last two characters for debug
// utility. This defends against accidental logging, not compromised logs;
// if logs leak, rotate the secret.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
