package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crewbrief/crewbrief/internal/advice"
	"github.com/crewbrief/crewbrief/internal/api"
	"github.com/crewbrief/crewbrief/internal/audit"
	"github.com/crewbrief/crewbrief/internal/config"
	"github.com/crewbrief/crewbrief/internal/database"
	"github.com/crewbrief/crewbrief/internal/ingest"
	"github.com/crewbrief/crewbrief/internal/knowledge"
	"github.com/crewbrief/crewbrief/internal/log"
	"github.com/crewbrief/crewbrief/internal/provider"
	"github.com/crewbrief/crewbrief/internal/retrieval"
	"github.com/crewbrief/crewbrief/internal/scrub"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validating configuration: %w", err)
		}
		if err := cfg.ValidateProviders(); err != nil {
			return fmt.Errorf("validating configuration: %w", err)
		}

		pool, err := database.Open(ctx, cfg.PostgresConnectionString())
		if err != nil {
			return err
		}
		defer pool.Close()

		client, err := provider.New(ctx, cfg, logger)
		if err != nil {
			return err
		}

		documents, err := knowledge.NewDocumentStore(pool, logger)
		if err != nil {
			return err
		}
		passages, err := knowledge.NewStore(pool, logger)
		if err != nil {
			return err
		}

		engine, err := ingest.New(documents, passages, client, ingest.Options{
			ChunkSize:       cfg.ChunkSize,
			ChunkOverlap:    cfg.ChunkOverlap,
			EmbedBatchSize:  cfg.EmbedBatchSize,
			UpsertBatchSize: cfg.UpsertBatchSize,
		}, logger)
		if err != nil {
			return err
		}

		retriever, err := retrieval.New(client, passages, cfg.TopK, logger)
		if err != nil {
			return err
		}

		cache, err := advice.NewCache(pool, logger)
		if err != nil {
			return err
		}
		limiter, err := advice.NewLimiter(pool, cfg.RateCeiling, cfg.RateWindow, logger)
		if err != nil {
			return err
		}
		auditLog, err := audit.New(pool, logger)
		if err != nil {
			return err
		}

		adviser, err := advice.NewService(scrub.New(), retriever, client, cache, limiter, auditLog, advice.Options{
			TTL:           cfg.AdviceTTL,
			MinConfidence: cfg.MinConfidence,
		}, logger)
		if err != nil {
			return err
		}

		handlers, err := api.NewHandlers(documents, engine, adviser, pool, logger)
		if err != nil {
			return err
		}
		server, err := api.NewServer(api.ServerConfig{
			ListenAddr: cfg.ListenAddr,
			TrustProxy: cfg.TrustProxy,
			Handlers:   handlers,
			Logger:     logger,
		})
		if err != nil {
			return err
		}

		go runMaintenance(ctx, cache, limiter, logger)

		logger.Info("starting crewbrief", "version", AppVersion, "config", cfg)
		return server.Run(ctx)
	},
}

const (
	cacheSweepInterval = time.Hour
	usagePruneInterval = 5 * time.Minute
)

// runMaintenance periodically reclaims expired cache entries and stale usage
// rows. Both are correctness-neutral; failures are logged and retried on the
// next tick.
func runMaintenance(ctx context.Context, cache *advice.Cache, limiter *advice.Limiter, logger log.Logger) {
	sweep := time.NewTicker(cacheSweepInterval)
	defer sweep.Stop()
	prune := time.NewTicker(usagePruneInterval)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			if n, err := cache.Sweep(ctx); err != nil {
				logger.Warn("advice cache sweep failed", "error", err)
			} else if n > 0 {
				logger.Debug("swept advice cache", "removed", n)
			}
		case <-prune.C:
			if n, err := limiter.Prune(ctx); err != nil {
				logger.Warn("usage prune failed", "error", err)
			} else if n > 0 {
				logger.Debug("pruned usage rows", "removed", n)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
