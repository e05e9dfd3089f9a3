// Package chunker splits regulatory text into overlapping fixed-size windows
// for embedding and retrieval.
package chunker

import (
	"regintel-backend/models"
)

const (
	DefaultWindowSize = 800
	DefaultOverlap    = 80
)

// Chunker splits text into consecutive windows of at most windowSize runes,
// where each window after the first shares its leading overlap runes with the
// tail of the previous window. Within a window it prefers to cut at a
// paragraph or sentence boundary, falling back to a hard cut when none exists.
type Chunker struct {
	windowSize int
	overlap    int
}

// New creates a chunker. Invalid parameters fall back to the defaults:
// windowSize must be positive and overlap must be in [0, windowSize).
func New(windowSize, overlap int) *Chunker {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if overlap < 0 || overlap >= windowSize {
		overlap = DefaultOverlap
		if overlap >= windowSize {
			overlap = windowSize / 10
		}
	}
	return &Chunker{windowSize: windowSize, overlap: overlap}
}

// Chunk splits text into ordered RegulationChunks. Offsets and lengths are in
// runes relative to text. Returns nil for empty input; returns exactly one
// chunk when text fits within a single window.
//
// Concatenating the first chunk with each subsequent chunk minus its leading
// overlap reconstructs text exactly.
func (c *Chunker) Chunk(text string) []models.RegulationChunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []models.RegulationChunk
	start := 0
	index := 0
	for {
		end := start + c.windowSize
		if end >= len(runes) {
			chunks = append(chunks, c.piece(runes, start, len(runes), index))
			break
		}
		cut := c.cut(runes, start, end)
		chunks = append(chunks, c.piece(runes, start, cut, index))
		index++
		start = cut - c.overlap
	}
	return chunks
}

func (c *Chunker) piece(runes []rune, start, end, index int) models.RegulationChunk {
	return models.RegulationChunk{
		ChunkIndex: index,
		Text:       string(runes[start:end]),
		Offset:     start,
		Length:     end - start,
	}
}

// cut picks the window's end position in (start+overlap, end]. Candidates are
// tried in order: paragraph break, sentence end, line break, word break. A
// cut below start+overlap+1 would stall the scan, so boundaries that close
// are ignored.
func (c *Chunker) cut(runes []rune, start, end int) int {
	min := start + c.overlap + 1

	// Paragraph: cut after a blank line.
	for i := end - 1; i >= min; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	// Sentence: cut after terminal punctuation followed by whitespace.
	for i := end - 2; i >= min; i-- {
		if isSentenceEnd(runes[i]) && isSpace(runes[i+1]) {
			return i + 1
		}
	}
	// Line break.
	for i := end - 1; i >= min; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	// Word break.
	for i := end - 1; i >= min; i-- {
		if runes[i] == ' ' {
			return i + 1
		}
	}
	// Hard cut.
	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == ';'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
