package models

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// RegulationChunk represents a contiguous span of regulatory text from the
// ingested corpus. Chunks are immutable once created; the vector store owns
// them for the lifetime of the index.
type RegulationChunk struct {
	ID         uuid.UUID `json:"id"`
	Section    string    `json:"section"` // e.g. "§ 11.10"
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Offset     int       `json:"offset"` // rune offset within the source section
	Length     int       `json:"length"` // length in runes
	Similarity float64   `json:"similarity,omitempty"` // populated on query results
}

// ContentHash returns a stable identifier derived from the chunk's section and
// text. Re-ingesting an unchanged corpus produces identical hashes, which the
// vector store uses to de-duplicate entries.
func (c *RegulationChunk) ContentHash() string {
	h := sha256.New()
	h.Write([]byte(c.Section))
	h.Write([]byte{0})
	h.Write([]byte(c.Text))
	return hex.EncodeToString(h.Sum(nil))
}
