package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crewbrief/crewbrief/internal/config"
	"github.com/crewbrief/crewbrief/internal/database"
	"github.com/crewbrief/crewbrief/internal/ingest"
	"github.com/crewbrief/crewbrief/internal/knowledge"
	"github.com/crewbrief/crewbrief/internal/provider"
)

var (
	flagIngestTitle string
	flagIngestScope string
	flagIngestTags  []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Register and ingest a plain-text document from disk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		path := args[0]
		raw, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

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

		title := flagIngestTitle
		if title == "" {
			title = filepath.Base(path)
		}
		var scopeID *string
		if flagIngestScope != "" {
			scopeID = &flagIngestScope
		}

		doc := &knowledge.SourceDocument{
			Title:            title,
			OwnerScopeID:     scopeID,
			Tags:             flagIngestTags,
			OriginalFilename: filepath.Base(path),
		}
		if err := documents.Create(ctx, doc); err != nil {
			return err
		}

		result, err := engine.Ingest(ctx, doc.ID, raw)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}

		fmt.Printf("Ingested %s\n", path)
		fmt.Printf("  document: %s\n", doc.ID)
		fmt.Printf("  chunks:   %d\n", result.ChunksCreated)
		fmt.Printf("  bytes:    %d\n", result.Bytes)
		fmt.Printf("  type:     %s\n", result.Type)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&flagIngestTitle, "title", "", "document title (defaults to the file name)")
	ingestCmd.Flags().StringVar(&flagIngestScope, "scope", "", "owner scope; empty means the global knowledge base")
	ingestCmd.Flags().StringSliceVar(&flagIngestTags, "tag", nil, "tag to attach (repeatable)")
	rootCmd.AddCommand(ingestCmd)
}
