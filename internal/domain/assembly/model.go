package assembly

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// FragmentSource tells where a context fragment came from.
type FragmentSource string

const (
	SourceChunk    FragmentSource = "chunk"
	SourceDocument FragmentSource = "document"
)

// Fragment is one piece of assembled context with full provenance, so every
// answer can be traced back to a stored document.
type Fragment struct {
	DocumentID uuid.UUID      `json:"document_id"`
	Source     FragmentSource `json:"source"`
	Sequence   *int           `json:"sequence,omitempty"`
	DocType    string         `json:"doc_type,omitempty"`
	Filename   string         `json:"filename,omitempty"`
	Relevance  float64        `json:"relevance"`
	Tokens     int            `json:"tokens"`
	Text       string         `json:"text"`
}

// Bundle is the assembled context for one patient and one query.
type Bundle struct {
	PatientID   uuid.UUID  `json:"patient_id"`
	Query       string     `json:"query,omitempty"`
	Fragments   []Fragment `json:"fragments"`
	TotalTokens int        `json:"total_tokens"`
	TokenBudget int        `json:"token_budget"`
	Truncated   bool       `json:"truncated"`
}

// ContextText renders the bundle as the prompt context block, one labelled
// section per fragment.
func (b *Bundle) ContextText() string {
	var sb strings.Builder
	for i, f := range b.Fragments {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		label := fmt.Sprintf("[document %s", f.DocumentID)
		if f.Filename != "" {
			label += " " + f.Filename
		}
		if f.Sequence != nil {
			label += fmt.Sprintf(" fragment %d", *f.Sequence)
		}
		label += "]"
		sb.WriteString(label)
		sb.WriteString("\n")
		sb.WriteString(f.Text)
	}
	return sb.String()
}
