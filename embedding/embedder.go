// Package embedding maps regulation chunks and audit queries into a shared
// dense vector space.
package embedding

import (
	"context"
	"errors"
)

// ErrEmbeddingFailed indicates the embedding model could not be reached or
// returned an unusable response.
var ErrEmbeddingFailed = errors.New("embedding: model unavailable")

// Embedder produces vectors for corpus documents and for queries. Both
// methods must map into the identical vector space: embedding documents and
// queries with different models breaks similarity ranking.
type Embedder interface {
	// EmbedDocuments returns one vector per input text, in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)

	// EmbedQuery embeds a single query text.
	EmbedQuery(ctx context.Context, text string) ([]float64, error)

	// Dimension is the fixed length of every produced vector.
	Dimension() int
}
