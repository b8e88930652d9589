package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Server is the producer HTTP server: routes, middleware stack, and
// lifecycle.
type Server struct {
	httpServer *http.Server
	limiter    *ipLimiter
	done       chan struct{}
	logger     *slog.Logger
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	ListenAddr string
	TrustProxy bool // honor X-Forwarded-For from a fronting proxy
	Handlers   *Handlers
	Logger     *slog.Logger
}

const shutdownGrace = 10 * time.Second

// NewServer builds the router and middleware stack.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Handlers == nil {
		return nil, fmt.Errorf("handlers are required")
	}
	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", cfg.Handlers.Health)
	mux.HandleFunc("POST /api/v1/documents", cfg.Handlers.CreateDocument)
	mux.HandleFunc("GET /api/v1/documents", cfg.Handlers.ListDocuments)
	mux.HandleFunc("GET /api/v1/documents/{id}", cfg.Handlers.GetDocument)
	mux.HandleFunc("POST /api/v1/documents/{id}/ingest", cfg.Handlers.IngestDocument)
	mux.HandleFunc("POST /api/v1/advice", cfg.Handlers.Advice)

	done := make(chan struct{})
	limiter := newIPLimiter(cfg.TrustProxy, done)

	// Recovery outermost, then logging, then the transport limiter.
	var handler http.Handler = mux
	handler = limiter.middleware(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      2 * time.Minute, // generation calls can be slow
			IdleTimeout:       2 * time.Minute,
		},
		limiter: limiter,
		done:    done,
		logger:  logger,
	}, nil
}

// Handler exposes the full middleware stack, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is canceled, then drains in-flight requests within the
// shutdown grace period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		close(s.done)
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	close(s.done)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return <-errCh
}
