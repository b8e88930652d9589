// Package audit records events fire-and-forget. A failed write is logged and
// dropped; auditing must never abort the flow it observes.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WriteTimeout bounds one audit insert so a slow database cannot hold a
// request open.
const WriteTimeout = 5 * time.Second

// Log writes events to the audit_events table.
//
// Log is safe for concurrent use.
type Log struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates an audit log.
func New(pool *pgxpool.Pool, logger *slog.Logger) (*Log, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{pool: pool, logger: logger}, nil
}

// Record inserts one event. It never returns an error and ignores the
// caller's cancellation, so an aborted request still leaves its trace.
func (l *Log) Record(ctx context.Context, action string, fields map[string]any) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), WriteTimeout)
	defer cancel()

	var details []byte
	if len(fields) > 0 {
		var err error
		if details, err = json.Marshal(fields); err != nil {
			l.logger.Warn("encoding audit details", "action", action, "error", err)
			details = nil
		}
	}

	if _, err := l.pool.Exec(writeCtx,
		`INSERT INTO audit_events (action, details, recorded_at)
		 VALUES ($1, $2, $3)`,
		action, details, time.Now(),
	); err != nil {
		l.logger.Warn("audit write dropped", "action", action, "error", err)
	}
}
