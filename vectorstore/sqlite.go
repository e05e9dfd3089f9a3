package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"regintel-backend/models"
)

// SQLiteStore is the default vector index backend: a single
// path-addressable database file that survives restarts. Similarity ranking
// is brute-force cosine over all rows, which is fine for a bounded
// regulatory corpus (21 CFR Part 11 yields on the order of a hundred chunks).
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS regulation_chunks (
	content_hash TEXT PRIMARY KEY,
	id           TEXT NOT NULL,
	section      TEXT NOT NULL,
	chunk_index  INTEGER NOT NULL,
	chunk_text   TEXT NOT NULL,
	doc_offset   INTEGER NOT NULL,
	doc_length   INTEGER NOT NULL,
	embedding    TEXT NOT NULL,
	created_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

// NewSQLiteStore opens (creating if needed) the database at path. WAL mode
// keeps concurrent readers unblocked during corpus refresh writes.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: creating index directory: %v", ErrIndexUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema: %v", ErrIndexUnavailable, err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Add persists entries inside a single transaction, so readers observe
// either none or all of them, never a torn entry. Duplicate content hashes
// are ignored, keeping the original insertion order for tie-breaking.
func (s *SQLiteStore) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO regulation_chunks
			(content_hash, id, section, chunk_index, chunk_text, doc_offset, doc_length, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	defer stmt.Close()

	for _, e := range entries {
		vecJSON, err := json.Marshal(e.Vector)
		if err != nil {
			return fmt.Errorf("failed to encode embedding: %w", err)
		}
		id := e.Chunk.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if _, err := stmt.ExecContext(ctx,
			e.Chunk.ContentHash(), id.String(), e.Chunk.Section, e.Chunk.ChunkIndex,
			e.Chunk.Text, e.Chunk.Offset, e.Chunk.Length, string(vecJSON),
		); err != nil {
			return fmt.Errorf("%w: inserting chunk: %v", ErrIndexUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return nil
}

// Query scans all entries in insertion order, scores them against the query
// vector, and returns the top k. The stable sort preserves insertion order
// for equal similarities.
func (s *SQLiteStore) Query(ctx context.Context, vector []float64, k int) ([]models.RegulationChunk, error) {
	if k <= 0 {
		return []models.RegulationChunk{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, section, chunk_index, chunk_text, doc_offset, doc_length, embedding
		FROM regulation_chunks
		ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var scored []models.RegulationChunk
	for rows.Next() {
		var (
			chunk   models.RegulationChunk
			idStr   string
			vecJSON string
		)
		if err := rows.Scan(&idStr, &chunk.Section, &chunk.ChunkIndex, &chunk.Text,
			&chunk.Offset, &chunk.Length, &vecJSON); err != nil {
			return nil, fmt.Errorf("%w: scanning chunk: %v", ErrIndexUnavailable, err)
		}
		if id, err := uuid.Parse(idStr); err == nil {
			chunk.ID = id
		}
		var stored []float64
		if err := json.Unmarshal([]byte(vecJSON), &stored); err != nil {
			return nil, fmt.Errorf("%w: corrupt embedding for chunk %s: %v", ErrIndexUnavailable, idStr, err)
		}
		chunk.Similarity = CosineSimilarity(vector, stored)
		scored = append(scored, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if k > len(scored) {
		k = len(scored)
	}
	if scored == nil {
		return []models.RegulationChunk{}, nil
	}
	return scored[:k], nil
}

// Count reports the number of stored entries.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM regulation_chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return n, nil
}

// Clear removes all entries.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM regulation_chunks"); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
