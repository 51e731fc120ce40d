package document

import "strings"

// Chunker splits extracted text into fixed-size rune windows with fixed
// overlap between consecutive chunks.
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 200
		if overlap >= size {
			overlap = size / 5
		}
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Split returns the ordered chunks of text. Whitespace runs are collapsed
// first so window boundaries are stable across re-extractions of the same
// document. Empty input yields no chunks.
func (c Chunker) Split(text string) []string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return nil
	}

	runes := []rune(normalized)
	if len(runes) <= c.Size {
		return []string{normalized}
	}

	step := c.Size - c.Overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.Size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
