package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// documentCols is the standard SELECT column list for scanDocument.
const documentCols = `id, title, owner_scope_id, tags, original_filename,
	storage_locator, status, chunk_count, byte_size, failure_cause,
	created_at, updated_at`

// DocumentStore manages source document metadata and ingestion status.
//
// DocumentStore is safe for concurrent use by multiple goroutines.
type DocumentStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewDocumentStore creates a DocumentStore.
func NewDocumentStore(pool *pgxpool.Pool, logger *slog.Logger) (*DocumentStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentStore{pool: pool, logger: logger}, nil
}

// Create registers a document in pending state. Metadata only; ingestion is
// a separate, explicitly triggered flow.
func (s *DocumentStore) Create(ctx context.Context, doc *SourceDocument) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Title == "" {
		return fmt.Errorf("document title is required")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, title, owner_scope_id, tags, original_filename, storage_locator, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.Title, doc.OwnerScopeID, doc.Tags, doc.OriginalFilename,
		doc.StorageLocator, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("registering document %q: %w", doc.Title, err)
	}

	s.logger.Debug("registered document", "id", doc.ID, "title", doc.Title)
	return nil
}

// Get returns a document by ID, or ErrNotFound.
func (s *DocumentStore) Get(ctx context.Context, id uuid.UUID) (*SourceDocument, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentCols+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", id, err)
	}
	return doc, nil
}

// List returns documents ordered by creation time, newest first.
func (s *DocumentStore) List(ctx context.Context, limit int) ([]*SourceDocument, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+documentCols+` FROM documents ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []*SourceDocument
	for rows.Next() {
		doc, scanErr := scanDocument(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning document: %w", scanErr)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// BeginIngest transitions a document to ingesting. The conditional UPDATE is
// the single-flight guard: a second caller racing on the same document sees
// zero rows affected and gets ErrConflict instead of a duplicate run.
func (s *DocumentStore) BeginIngest(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents
		 SET status = $2, failure_cause = '', updated_at = now()
		 WHERE id = $1 AND status <> $2`,
		id, StatusIngesting,
	)
	if err != nil {
		return fmt.Errorf("marking document %s ingesting: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		// Distinguish not-found from already-ingesting.
		var status string
		lookupErr := s.pool.QueryRow(ctx,
			`SELECT status FROM documents WHERE id = $1`, id).Scan(&status)
		if errors.Is(lookupErr, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if lookupErr != nil {
			return fmt.Errorf("looking up document %s: %w", id, lookupErr)
		}
		return ErrConflict
	}

	return nil
}

// MarkReady records a successful ingestion run.
func (s *DocumentStore) MarkReady(ctx context.Context, id uuid.UUID, chunkCount int, byteSize int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE documents
		 SET status = $2, chunk_count = $3, byte_size = $4, failure_cause = '', updated_at = now()
		 WHERE id = $1`,
		id, StatusReady, chunkCount, byteSize,
	)
	if err != nil {
		return fmt.Errorf("marking document %s ready: %w", id, err)
	}
	return nil
}

// MarkFailed records a terminal ingestion failure with its cause, preserved
// for operator diagnosis and manual retry.
func (s *DocumentStore) MarkFailed(ctx context.Context, id uuid.UUID, cause string) error {
	const maxCauseLen = 1000
	if len(cause) > maxCauseLen {
		cause = cause[:maxCauseLen]
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE documents
		 SET status = $2, failure_cause = $3, updated_at = now()
		 WHERE id = $1`,
		id, StatusFailed, cause,
	)
	if err != nil {
		return fmt.Errorf("marking document %s failed: %w", id, err)
	}
	return nil
}

// scanDocument reads one SourceDocument from a row with documentCols.
func scanDocument(row pgx.Row) (*SourceDocument, error) {
	doc := &SourceDocument{}
	if err := row.Scan(
		&doc.ID, &doc.Title, &doc.OwnerScopeID, &doc.Tags, &doc.OriginalFilename,
		&doc.StorageLocator, &doc.Status, &doc.ChunkCount, &doc.ByteSize,
		&doc.FailureCause, &doc.CreatedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return doc, nil
}
