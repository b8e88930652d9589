package api

import (
	"context"
	"net/http"
	"time"
)

const healthPingTimeout = 2 * time.Second

// Health reports liveness, and store reachability when a pinger is wired.
// GET /healthz
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			h.logger.Warn("health probe: store unreachable", "error", err)
			writeJSON(w, h.logger, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
			})
			return
		}
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}
