// Package vectorstore persists regulation chunks alongside their embedding
// vectors and answers nearest-neighbor queries by cosine similarity.
package vectorstore

import (
	"context"
	"errors"
	"math"

	"regintel-backend/models"
)

// ErrIndexUnavailable indicates the backing store is unreachable or corrupt.
var ErrIndexUnavailable = errors.New("vectorstore: index unavailable")

// Entry pairs a regulation chunk with its embedding vector. The vector is
// derived data: same chunk plus same model always reproduces it.
type Entry struct {
	Chunk  models.RegulationChunk
	Vector []float64
}

// Store is the vector index. Implementations must make Add idempotent with
// respect to the chunk content hash, keep writes atomic at entry granularity,
// and allow concurrent readers.
type Store interface {
	// Add persists entries. Re-adding an entry whose content hash is already
	// present is a no-op, so repeated ingestion of an unchanged corpus leaves
	// query results unchanged.
	Add(ctx context.Context, entries []Entry) error

	// Query returns the min(k, index size) stored chunks most similar to the
	// query vector, in descending cosine similarity. Equal similarities keep
	// insertion order. An empty index yields an empty result, not an error.
	Query(ctx context.Context, vector []float64, k int) ([]models.RegulationChunk, error)

	// Count reports the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error

	Close() error
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths compare over the shorter prefix; zero vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
