package advice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Capability names this endpoint in the usage table, so other throttled
// capabilities can share the table without colliding.
const Capability = "advice"

// Limiter enforces a sliding-window request budget per actor, counted from
// the advice_usage table. The window trails the current instant; there are
// no fixed bucket edges to game.
//
// Counting from a shared table keeps the budget correct across service
// instances, unlike an in-process counter.
type Limiter struct {
	pool    *pgxpool.Pool
	ceiling int
	window  time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewLimiter creates a usage-counting limiter.
func NewLimiter(pool *pgxpool.Pool, ceiling int, window time.Duration, logger *slog.Logger) (*Limiter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if ceiling <= 0 || window <= 0 {
		return nil, fmt.Errorf("ceiling and window must be positive, got %d/%s", ceiling, window)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{pool: pool, ceiling: ceiling, window: window, logger: logger, now: time.Now}, nil
}

// Allow reports whether actorID may spend one request now, and records the
// spend if so. At or above the ceiling nothing is recorded, so a throttled
// actor's budget is not pushed further out by retries.
func (l *Limiter) Allow(ctx context.Context, actorID string) (bool, error) {
	cutoff := l.now().Add(-l.window)

	var count int
	if err := l.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM advice_usage
		 WHERE actor_id = $1 AND capability = $2 AND requested_at > $3`,
		actorID, Capability, cutoff,
	).Scan(&count); err != nil {
		return false, fmt.Errorf("counting usage for %s: %w", actorID, err)
	}

	if count >= l.ceiling {
		l.logger.Info("rate limit reached", "actor_id", actorID, "count", count, "ceiling", l.ceiling)
		return false, nil
	}

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO advice_usage (actor_id, capability, requested_at)
		 VALUES ($1, $2, $3)`,
		actorID, Capability, l.now(),
	); err != nil {
		return false, fmt.Errorf("recording usage for %s: %w", actorID, err)
	}

	return true, nil
}

// Prune deletes usage rows older than the window. Rows past the cutoff never
// count again; pruning just keeps the table small.
func (l *Limiter) Prune(ctx context.Context) (int64, error) {
	tag, err := l.pool.Exec(ctx,
		`DELETE FROM advice_usage WHERE requested_at <= $1`,
		l.now().Add(-l.window))
	if err != nil {
		return 0, fmt.Errorf("pruning usage rows: %w", err)
	}
	return tag.RowsAffected(), nil
}
