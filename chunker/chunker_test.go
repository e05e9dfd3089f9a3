package chunker

import (
	"strings"
	"testing"
)

func reconstruct(chunks []string, overlap int) string {
	var b strings.Builder
	for i, c := range chunks {
		runes := []rune(c)
		if i == 0 {
			b.WriteString(c)
			continue
		}
		b.WriteString(string(runes[overlap:]))
	}
	return b.String()
}

func TestChunk_SingleChunkWhenTextFits(t *testing.T) {
	c := New(800, 80)
	text := "Closed systems shall employ procedures to ensure authenticity."
	chunks := c.Chunk(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("chunk text mismatch: %q", chunks[0].Text)
	}
	if chunks[0].Offset != 0 || chunks[0].Length != len([]rune(text)) {
		t.Errorf("offset/length = %d/%d", chunks[0].Offset, chunks[0].Length)
	}
}

func TestChunk_EmptyText(t *testing.T) {
	c := New(800, 80)
	if chunks := c.Chunk(""); chunks != nil {
		t.Errorf("empty text should return nil, got %d chunks", len(chunks))
	}
}

func TestChunk_Reconstruction(t *testing.T) {
	texts := []string{
		strings.Repeat("Persons who use closed systems shall employ procedures and controls. ", 40),
		strings.Repeat("x", 2500), // no natural boundaries at all
		"Subpart A.\n\nScope. The regulations in this part set forth the criteria under which the agency considers electronic records to be trustworthy.\n\n" +
			strings.Repeat("Electronic signatures and their associated electronic records shall meet the requirements of this part. ", 20),
	}
	for _, overlap := range []int{0, 10, 80} {
		c := New(200, overlap)
		for i, text := range texts {
			chunks := c.Chunk(text)
			chunkTexts := make([]string, len(chunks))
			for j, ch := range chunks {
				chunkTexts[j] = ch.Text
			}
			if got := reconstruct(chunkTexts, overlap); got != text {
				t.Errorf("text %d overlap %d: reconstruction mismatch (got %d runes, want %d)",
					i, overlap, len([]rune(got)), len([]rune(text)))
			}
		}
	}
}

func TestChunk_OverlapBound(t *testing.T) {
	const overlap = 40
	c := New(200, overlap)
	text := strings.Repeat("All records shall be protected to enable their accurate and ready retrieval. ", 30)
	chunks := c.Chunk(text)
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		cur := []rune(chunks[i].Text)
		if len(cur) < overlap {
			t.Fatalf("chunk %d shorter than overlap: %d", i, len(cur))
		}
		tail := string(prev[len(prev)-overlap:])
		head := string(cur[:overlap])
		if tail != head {
			t.Errorf("chunk %d: shared region mismatch\ntail: %q\nhead: %q", i, tail, head)
		}
	}
}

func TestChunk_WindowSizeRespected(t *testing.T) {
	c := New(150, 20)
	text := strings.Repeat("Use of secure, computer-generated, time-stamped audit trails. ", 50)
	for i, ch := range c.Chunk(text) {
		if ch.Length > 150 {
			t.Errorf("chunk %d exceeds window: %d runes", i, ch.Length)
		}
	}
}

func TestChunk_PrefersSentenceBoundary(t *testing.T) {
	c := New(100, 10)
	text := strings.Repeat("Each electronic signature shall be unique to one individual. ", 10)
	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// Every non-final chunk should end right after sentence punctuation, not
	// mid-word, because the text offers a boundary inside every window.
	for i := 0; i < len(chunks)-1; i++ {
		trimmed := strings.TrimRight(chunks[i].Text, " \n")
		if !strings.HasSuffix(trimmed, ".") {
			t.Errorf("chunk %d does not end at a sentence boundary: ...%q", i, tailOf(chunks[i].Text))
		}
	}
}

func TestChunk_ParagraphBoundaryAtMinimumCut(t *testing.T) {
	// The paragraph break sits at the earliest admissible cut position and a
	// plain line break comes later in the window; the paragraph break wins.
	c := New(10, 2)
	text := "ab\n\ncd\nefghij"
	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "ab\n\n" {
		t.Errorf("first chunk = %q, want cut at the paragraph break", chunks[0].Text)
	}
}

func TestChunk_OffsetsAreContiguous(t *testing.T) {
	c := New(120, 30)
	text := strings.Repeat("Authority checks to ensure that only authorized individuals can use the system. ", 20)
	chunks := c.Chunk(text)
	for i := 1; i < len(chunks); i++ {
		prevEnd := chunks[i-1].Offset + chunks[i-1].Length
		if chunks[i].Offset != prevEnd-30 {
			t.Errorf("chunk %d offset %d, want %d", i, chunks[i].Offset, prevEnd-30)
		}
		if chunks[i].ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, chunks[i].ChunkIndex)
		}
	}
}

func TestNew_ClampsInvalidParameters(t *testing.T) {
	c := New(-1, 5000)
	text := strings.Repeat("a ", 1000)
	chunks := c.Chunk(text)
	if len(chunks) == 0 {
		t.Fatal("expected chunks from clamped chunker")
	}
	for _, ch := range chunks {
		if ch.Length > DefaultWindowSize {
			t.Errorf("chunk exceeds default window: %d", ch.Length)
		}
	}
}

func tailOf(s string) string {
	if len(s) <= 20 {
		return s
	}
	return s[len(s)-20:]
}
