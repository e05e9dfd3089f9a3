package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"regintel-backend/models"
)

// PostgresStore backs the vector index with Postgres + pgvector. Suited to
// deployments that already run Postgres; the `<=>` operator gives cosine
// distance so ranking happens in the database.
type PostgresStore struct {
	pool      *pgxpool.Pool
	dimension int
}

// NewPostgresStore connects to the database and verifies it is reachable.
// The regulation_chunks table is created by cmd/create-schema.
func NewPostgresStore(ctx context.Context, connString string, dimension int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return &PostgresStore{pool: pool, dimension: dimension}, nil
}

// formatVector formats an embedding vector as a pgvector literal.
func formatVector(embedding []float64) string {
	if len(embedding) == 0 {
		return "[]"
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = fmt.Sprintf("%.6f", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Add inserts entries; conflicts on content_hash are ignored so repeated
// ingestion of an unchanged corpus creates no duplicates. The batch runs in
// one transaction, so readers never observe a partially-written entry.
func (s *PostgresStore) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if len(e.Vector) != s.dimension {
			return fmt.Errorf("embedding must be %d dimensions, got %d", s.dimension, len(e.Vector))
		}
		id := e.Chunk.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO regulation_chunks
				(content_hash, id, section, chunk_index, chunk_text, doc_offset, doc_length, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector)
			ON CONFLICT (content_hash) DO NOTHING`,
			e.Chunk.ContentHash(), id, e.Chunk.Section, e.Chunk.ChunkIndex,
			e.Chunk.Text, e.Chunk.Offset, e.Chunk.Length, formatVector(e.Vector),
		)
		if err != nil {
			return fmt.Errorf("%w: inserting chunk: %v", ErrIndexUnavailable, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return nil
}

// Query ranks chunks by pgvector cosine distance, tie-broken by insertion
// order (inserted_seq).
func (s *PostgresStore) Query(ctx context.Context, vector []float64, k int) ([]models.RegulationChunk, error) {
	if k <= 0 {
		return []models.RegulationChunk{}, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query vector must be %d dimensions, got %d", s.dimension, len(vector))
	}

	vectorStr := formatVector(vector)
	rows, err := s.pool.Query(ctx, `
		SELECT
			id,
			section,
			chunk_index,
			chunk_text,
			doc_offset,
			doc_length,
			1 - (embedding <=> $1::vector) AS similarity
		FROM regulation_chunks
		ORDER BY embedding <=> $1::vector, inserted_seq
		LIMIT $2`, vectorStr, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	defer rows.Close()

	chunks := make([]models.RegulationChunk, 0, k)
	for rows.Next() {
		var chunk models.RegulationChunk
		if err := rows.Scan(&chunk.ID, &chunk.Section, &chunk.ChunkIndex,
			&chunk.Text, &chunk.Offset, &chunk.Length, &chunk.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scanning chunk: %v", ErrIndexUnavailable, err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return chunks, nil
}

// Count reports the number of stored entries.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM regulation_chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return n, nil
}

// Clear removes all entries.
func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE regulation_chunks"); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
