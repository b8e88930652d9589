package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// DefaultUpsertBatch bounds rows per insert batch during passage replacement.
const DefaultUpsertBatch = 200

// Store persists passages and answers nearest-neighbor queries, backed by
// PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a passage Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Replace swaps a document's passage set atomically: old rows stay queryable
// until the transaction commits, then the new set is visible all at once.
// A retrieval call concurrent with Replace sees either the full old set or
// the full new set, never a mix.
func (s *Store) Replace(ctx context.Context, documentID uuid.UUID, passages []Passage, batchSize int) error {
	if batchSize <= 0 {
		batchSize = DefaultUpsertBatch
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning passage transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("passage transaction rollback", "error", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx,
		`DELETE FROM passages WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("deleting prior passages for %s: %w", documentID, err)
	}

	for start := 0; start < len(passages); start += batchSize {
		end := start + batchSize
		if end > len(passages) {
			end = len(passages)
		}
		if err := insertBatch(ctx, tx, passages[start:end]); err != nil {
			return fmt.Errorf("inserting passages %d-%d for %s: %w", start, end, documentID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing passage replacement: %w", err)
	}

	s.logger.Debug("replaced passages", "document_id", documentID, "count", len(passages))
	return nil
}

// insertBatch sends one pgx batch of passage inserts.
func insertBatch(ctx context.Context, tx pgx.Tx, passages []Passage) error {
	batch := &pgx.Batch{}
	for _, p := range passages {
		batch.Queue(
			`INSERT INTO passages (document_id, position, content, embedding)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (document_id, position) DO UPDATE
			 SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
			p.DocumentID, p.Position, p.Content, pgvector.NewVector(p.Embedding),
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer func() {
		_ = results.Close()
	}()

	for range passages {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("passage insert: %w", err)
		}
	}
	return nil
}

// Search returns up to topK passages nearest to the query vector, restricted
// to ready documents in scope. A nil scopeID searches the global knowledge
// base only; a non-nil scopeID additionally includes that scope's documents.
// Ordering: similarity descending, then position ascending for determinism.
func (s *Store) Search(ctx context.Context, queryVec []float32, scopeID *string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	vec := pgvector.NewVector(queryVec)
	rows, err := s.pool.Query(ctx,
		`SELECT p.document_id, p.position, p.content, d.title,
		        1 - (p.embedding <=> $1) AS similarity
		 FROM passages p
		 JOIN documents d ON d.id = p.document_id
		 WHERE d.status = $2
		   AND (d.owner_scope_id IS NULL OR d.owner_scope_id = $3)
		 ORDER BY p.embedding <=> $1, p.position ASC
		 LIMIT $4`,
		vec, StatusReady, scopeID, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching passages: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(
			&r.Passage.DocumentID, &r.Passage.Position, &r.Passage.Content,
			&r.DocumentTitle, &r.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scanning passage: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating passages: %w", err)
	}

	return results, nil
}

// CountForDocument returns the number of stored passages for a document.
func (s *Store) CountForDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM passages WHERE document_id = $1`, documentID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting passages for %s: %w", documentID, err)
	}
	return count, nil
}
