package document

import (
	"strings"
	"testing"
)

func TestChunker_ShortTextSingleChunk(t *testing.T) {
	c := NewChunker(1000, 200)
	chunks := c.Split("a short clinical note")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "a short clinical note" {
		t.Errorf("unexpected chunk %q", chunks[0])
	}
}

func TestChunker_EmptyText(t *testing.T) {
	c := NewChunker(1000, 200)
	if chunks := c.Split("   \n\t "); chunks != nil {
		t.Errorf("expected no chunks for blank text, got %d", len(chunks))
	}
}

func TestChunker_FixedSizeWithOverlap(t *testing.T) {
	c := NewChunker(100, 20)
	text := strings.Repeat("palabra ", 100) // 800 chars
	chunks := c.Split(text)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, ch := range chunks[:len(chunks)-1] {
		if got := len([]rune(ch)); got != 100 {
			t.Errorf("chunk %d: expected 100 runes, got %d", i, got)
		}
	}

	// Consecutive chunks share the configured overlap.
	first := []rune(chunks[0])
	second := []rune(chunks[1])
	if string(first[len(first)-20:]) != string(second[:20]) {
		t.Error("expected 20-rune overlap between consecutive chunks")
	}
}

func TestChunker_CoversAllText(t *testing.T) {
	c := NewChunker(50, 10)
	text := strings.Repeat("x", 237)
	chunks := c.Split(text)

	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(text, last) {
		t.Error("last chunk must end where the text ends")
	}

	total := 0
	for _, ch := range chunks {
		total += len(ch)
	}
	if total < len(text) {
		t.Errorf("chunks cover %d chars of %d", total, len(text))
	}
}

func TestChunker_NormalizesWhitespace(t *testing.T) {
	c := NewChunker(1000, 200)
	chunks := c.Split("nota   clinica\n\ncon  saltos")
	if len(chunks) != 1 || chunks[0] != "nota clinica con saltos" {
		t.Errorf("expected normalized single chunk, got %q", chunks)
	}
}

func TestNewChunker_Defaults(t *testing.T) {
	c := NewChunker(0, -1)
	if c.Size != 1000 || c.Overlap != 200 {
		t.Errorf("expected defaults 1000/200, got %d/%d", c.Size, c.Overlap)
	}
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"vectorized", "complete", "hybrid"} {
		if _, err := ParseMode(valid); err != nil {
			t.Errorf("expected %q to parse, got %v", valid, err)
		}
	}
	if _, err := ParseMode("dual"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestMode_Halves(t *testing.T) {
	if !ModeHybrid.Vectorized() || !ModeHybrid.Complete() {
		t.Error("hybrid must produce both representations")
	}
	if !ModeVectorized.Vectorized() || ModeVectorized.Complete() {
		t.Error("vectorized must only produce chunks")
	}
	if ModeComplete.Vectorized() || !ModeComplete.Complete() {
		t.Error("complete must only produce the verbatim record")
	}
}
