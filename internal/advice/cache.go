package advice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewbrief/crewbrief/internal/provider"
)

// Entry is one memoized generation result. Only the scrubbed excerpt is
// stored for observability; raw occurrence text never reaches this table.
type Entry struct {
	Key       string
	Category  string
	Excerpt   string
	Payload   provider.Advice
	ExpiresAt time.Time
}

// Cache persists advice entries in the advice_cache table. Entries expire by
// TTL; an expired row is a miss and is eventually swept, never served.
//
// Cache is safe for concurrent use. Concurrent writers for the same key are
// last-writer-wins, which is fine because identical input produces
// equivalent advice.
type Cache struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// NewCache creates a Postgres-backed advice cache.
func NewCache(pool *pgxpool.Pool, logger *slog.Logger) (*Cache, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{pool: pool, logger: logger, now: time.Now}, nil
}

// Get returns the unexpired entry for key, or nil on a miss.
func (c *Cache) Get(ctx context.Context, key string) (*Entry, error) {
	var (
		entry   Entry
		payload []byte
	)
	err := c.pool.QueryRow(ctx,
		`SELECT key, category, excerpt, payload, expires_at
		 FROM advice_cache
		 WHERE key = $1 AND expires_at > $2`,
		key, c.now(),
	).Scan(&entry.Key, &entry.Category, &entry.Excerpt, &payload, &entry.ExpiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("reading advice cache: %w", err)
	}

	if err := json.Unmarshal(payload, &entry.Payload); err != nil {
		// A corrupt row must not poison the request; treat as miss and let
		// the next write repair it.
		c.logger.Warn("corrupt advice cache payload", "key", key, "error", err)
		return nil, nil
	}

	return &entry, nil
}

// Put upserts an entry. The row is written whole or not at all.
func (c *Cache) Put(ctx context.Context, entry *Entry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("encoding advice payload: %w", err)
	}

	if _, err := c.pool.Exec(ctx,
		`INSERT INTO advice_cache (key, category, excerpt, payload, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO UPDATE
		 SET category = EXCLUDED.category,
		     excerpt = EXCLUDED.excerpt,
		     payload = EXCLUDED.payload,
		     expires_at = EXCLUDED.expires_at`,
		entry.Key, entry.Category, entry.Excerpt, payload, entry.ExpiresAt,
	); err != nil {
		return fmt.Errorf("writing advice cache: %w", err)
	}
	return nil
}

// Sweep deletes expired rows and returns how many were removed. TTL already
// hides expired rows from Get; sweeping just reclaims space.
func (c *Cache) Sweep(ctx context.Context) (int64, error) {
	tag, err := c.pool.Exec(ctx,
		`DELETE FROM advice_cache WHERE expires_at <= $1`, c.now())
	if err != nil {
		return 0, fmt.Errorf("sweeping advice cache: %w", err)
	}
	return tag.RowsAffected(), nil
}
