package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter throttles abusive clients per IP before any handler work. This is
// a transport-level guard; the per-actor advice budget is enforced separately
// inside the advice service.
type ipLimiter struct {
	mu         sync.Mutex
	clients    map[string]*clientLimiter
	limit      rate.Limit
	burst      int
	trustProxy bool
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const (
	defaultRequestsPerSecond = 10
	defaultBurst             = 20
	staleClientAfter         = 10 * time.Minute
	cleanupInterval          = time.Minute
)

// newIPLimiter creates the limiter and starts its stale-entry sweeper. The
// sweeper stops when done is closed.
func newIPLimiter(trustProxy bool, done <-chan struct{}) *ipLimiter {
	l := &ipLimiter{
		clients:    make(map[string]*clientLimiter),
		limit:      rate.Limit(defaultRequestsPerSecond),
		burst:      defaultBurst,
		trustProxy: trustProxy,
	}

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()

	return l
}

// allow reports whether the request's client IP is within budget.
func (l *ipLimiter) allow(r *http.Request) bool {
	ip := l.clientIP(r)

	l.mu.Lock()
	defer l.mu.Unlock()

	client, ok := l.clients[ip]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = client
	}
	client.lastSeen = time.Now()

	return client.limiter.Allow()
}

// sweep drops limiters for clients not seen recently, bounding memory.
func (l *ipLimiter) sweep() {
	cutoff := time.Now().Add(-staleClientAfter)

	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, client := range l.clients {
		if client.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
		}
	}
}

// clientIP extracts the client address. X-Forwarded-For is only honored when
// the deployment says a trusted proxy sits in front; otherwise it is
// attacker-controlled.
func (l *ipLimiter) clientIP(r *http.Request) string {
	if l.trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			if first, _, ok := strings.Cut(fwd, ","); ok {
				return strings.TrimSpace(first)
			}
			return strings.TrimSpace(fwd)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// middleware rejects over-limit requests with 429.
func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(r) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
