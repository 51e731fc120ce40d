package assembly

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/domain/document"
	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/domain/patient"
	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/platform/vector"
)

const tokenEncoding = "cl100k_base"

// QueryEmbedder embeds a free-text query for similarity search.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// TokenCounter measures text against the token budget.
type TokenCounter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter counts with the cl100k_base BPE, the encoding the
// embedding and chat models share.
func NewTiktokenCounter() (TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", tokenEncoding, err)
	}
	return &tiktokenCounter{enc: enc}, nil
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Assembler builds the context bundle for a patient: top-k relevant chunks
// plus complete documents, under a token budget, never crossing patients.
type Assembler struct {
	patients patient.Repository
	records  document.Repository
	index    vector.Index
	embedder QueryEmbedder
	topK     int
	budget   int
	tokens   TokenCounter
	logger   zerolog.Logger
}

func NewAssembler(patients patient.Repository, records document.Repository, index vector.Index, embedder QueryEmbedder, tokens TokenCounter, topK, budget int, logger zerolog.Logger) *Assembler {
	return &Assembler{
		patients: patients,
		records:  records,
		index:    index,
		embedder: embedder,
		tokens:   tokens,
		topK:     topK,
		budget:   budget,
		logger:   logger.With().Str("component", "context_assembler").Logger(),
	}
}

// Assemble gathers context for the patient. A patient with no stored content
// yields an empty bundle, not an error. topK and budget fall back to the
// configured defaults when zero.
func (a *Assembler) Assemble(ctx context.Context, patientID uuid.UUID, query string, topK, budget int) (*Bundle, error) {
	if _, err := a.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = a.topK
	}
	if budget <= 0 {
		budget = a.budget
	}

	var fragments []Fragment

	// Complete documents come first: they were stored with the intent of
	// always being present in context.
	records, err := a.records.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list complete documents: %w", err)
	}
	fullDocs := make(map[uuid.UUID]bool, len(records))
	for _, rec := range records {
		fullDocs[rec.ID] = true
		fragments = append(fragments, Fragment{
			DocumentID: rec.ID,
			Source:     SourceDocument,
			DocType:    rec.DocType,
			Filename:   rec.OriginalFilename,
			Relevance:  1.0,
			Text:       rec.FullText,
		})
	}

	if query != "" {
		embedding, err := a.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		matches, err := a.index.Search(ctx, patientID, embedding, topK)
		if err != nil {
			return nil, fmt.Errorf("search chunks: %w", err)
		}
		for _, m := range matches {
			// The full text of this document is already in the bundle.
			if fullDocs[m.DocumentID] {
				continue
			}
			seq := m.Sequence
			fragments = append(fragments, Fragment{
				DocumentID: m.DocumentID,
				Source:     SourceChunk,
				Sequence:   &seq,
				Relevance:  m.Score,
				Text:       m.Text,
			})
		}
	}

	sort.SliceStable(fragments, func(i, j int) bool {
		return fragments[i].Relevance > fragments[j].Relevance
	})

	bundle := &Bundle{
		PatientID:   patientID,
		Query:       query,
		Fragments:   []Fragment{},
		TokenBudget: budget,
	}

	// Greedy fill by relevance: a fragment that blows the budget is skipped,
	// later smaller ones may still fit.
	for _, f := range fragments {
		f.Tokens = a.tokens.Count(f.Text)
		if bundle.TotalTokens+f.Tokens > budget {
			bundle.Truncated = true
			continue
		}
		bundle.Fragments = append(bundle.Fragments, f)
		bundle.TotalTokens += f.Tokens
	}

	a.logger.Debug().
		Str("patient_id", patientID.String()).
		Int("fragments", len(bundle.Fragments)).
		Int("total_tokens", bundle.TotalTokens).
		Bool("truncated", bundle.Truncated).
		Msg("context assembled")

	return bundle, nil
}
