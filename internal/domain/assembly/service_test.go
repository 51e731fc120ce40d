package assembly

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/domain/document"
	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/domain/patient"
	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/platform/vector"
)

type stubPatients struct {
	known map[uuid.UUID]bool
}

func (s *stubPatients) Create(context.Context, *patient.Patient) error { return nil }
func (s *stubPatients) CreateIfAbsent(context.Context, *patient.Patient) (bool, error) {
	return false, nil
}
func (s *stubPatients) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	if !s.known[id] {
		return nil, patient.ErrNotFound
	}
	return &patient.Patient{ID: id}, nil
}
func (s *stubPatients) GetByExternalID(context.Context, string) (*patient.Patient, error) {
	return nil, patient.ErrNotFound
}
func (s *stubPatients) Update(context.Context, *patient.Patient) error { return nil }
func (s *stubPatients) Delete(context.Context, uuid.UUID) error        { return nil }
func (s *stubPatients) List(context.Context, int, int) ([]*patient.Patient, int, error) {
	return nil, 0, nil
}
func (s *stubPatients) All(context.Context) ([]*patient.Patient, error) { return nil, nil }

type stubRecords struct {
	byPatient map[uuid.UUID][]*document.Record
}

func (s *stubRecords) Create(context.Context, *document.Record) error { return nil }
func (s *stubRecords) GetByID(context.Context, uuid.UUID) (*document.Record, error) {
	return nil, document.ErrNotFound
}
func (s *stubRecords) GetByPatientAndHash(context.Context, uuid.UUID, string) (*document.Record, error) {
	return nil, document.ErrNotFound
}
func (s *stubRecords) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*document.Record, error) {
	return s.byPatient[patientID], nil
}
func (s *stubRecords) Delete(context.Context, uuid.UUID) error { return nil }

type stubIndex struct {
	byPatient map[uuid.UUID][]vector.Match
	searched  []uuid.UUID
}

func (s *stubIndex) UpsertChunks(context.Context, []vector.Chunk) error { return nil }
func (s *stubIndex) Search(_ context.Context, patientID uuid.UUID, _ []float32, limit int) ([]vector.Match, error) {
	s.searched = append(s.searched, patientID)
	matches := s.byPatient[patientID]
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
func (s *stubIndex) HasContent(context.Context, uuid.UUID, string) (bool, error) {
	return false, nil
}
func (s *stubIndex) DeleteDocument(context.Context, uuid.UUID) error { return nil }

type stubEmbedder struct{}

func (stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

// wordCounter stands in for the BPE tokenizer: one token per word.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func newTestAssembler(patients *stubPatients, records *stubRecords, index *stubIndex, topK, budget int) *Assembler {
	return NewAssembler(patients, records, index, stubEmbedder{}, wordCounter{}, topK, budget, zerolog.Nop())
}

func TestAssembleEmptyBundle(t *testing.T) {
	pid := uuid.New()
	a := newTestAssembler(
		&stubPatients{known: map[uuid.UUID]bool{pid: true}},
		&stubRecords{byPatient: map[uuid.UUID][]*document.Record{}},
		&stubIndex{byPatient: map[uuid.UUID][]vector.Match{}},
		5, 1000,
	)

	bundle, err := a.Assemble(context.Background(), pid, "fiebre", 0, 0)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(bundle.Fragments) != 0 {
		t.Errorf("fragments = %d, want 0", len(bundle.Fragments))
	}
	if bundle.Truncated {
		t.Error("empty bundle must not be marked truncated")
	}
	if bundle.TokenBudget != 1000 {
		t.Errorf("budget fallback = %d, want 1000", bundle.TokenBudget)
	}
}

func TestAssembleUnknownPatient(t *testing.T) {
	a := newTestAssembler(
		&stubPatients{known: map[uuid.UUID]bool{}},
		&stubRecords{}, &stubIndex{}, 5, 1000,
	)
	if _, err := a.Assemble(context.Background(), uuid.New(), "q", 0, 0); !errors.Is(err, patient.ErrNotFound) {
		t.Errorf("err = %v, want patient.ErrNotFound", err)
	}
}

func TestAssemblePatientIsolation(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	index := &stubIndex{byPatient: map[uuid.UUID][]vector.Match{
		alice: {{DocumentID: uuid.New(), PatientID: alice, Sequence: 0, Text: "alice lab results", Score: 0.9}},
		bob:   {{DocumentID: uuid.New(), PatientID: bob, Sequence: 0, Text: "bob surgery notes", Score: 0.95}},
	}}
	a := newTestAssembler(
		&stubPatients{known: map[uuid.UUID]bool{alice: true, bob: true}},
		&stubRecords{byPatient: map[uuid.UUID][]*document.Record{
			bob: {{ID: uuid.New(), PatientID: bob, FullText: "bob full history"}},
		}},
		index, 5, 1000,
	)

	bundle, err := a.Assemble(context.Background(), alice, "labs", 0, 0)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	for _, f := range bundle.Fragments {
		if strings.Contains(f.Text, "bob") {
			t.Fatalf("fragment %q leaked another patient's content", f.Text)
		}
	}
	if len(index.searched) != 1 || index.searched[0] != alice {
		t.Errorf("search scoped to %v, want only %s", index.searched, alice)
	}
}

func TestAssembleTokenBudget(t *testing.T) {
	pid := uuid.New()
	docA, docB, docC := uuid.New(), uuid.New(), uuid.New()
	index := &stubIndex{byPatient: map[uuid.UUID][]vector.Match{
		pid: {
			{DocumentID: docA, PatientID: pid, Sequence: 0, Text: "one two three four five", Score: 0.9},
			{DocumentID: docB, PatientID: pid, Sequence: 1, Text: "six seven eight nine ten eleven twelve", Score: 0.8},
			{DocumentID: docC, PatientID: pid, Sequence: 2, Text: "thirteen fourteen", Score: 0.7},
		},
	}}
	a := newTestAssembler(
		&stubPatients{known: map[uuid.UUID]bool{pid: true}},
		&stubRecords{byPatient: map[uuid.UUID][]*document.Record{}},
		index, 5, 1000,
	)

	// Budget fits the 5-word and 2-word fragments but not the 7-word one.
	bundle, err := a.Assemble(context.Background(), pid, "q", 0, 8)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !bundle.Truncated {
		t.Error("bundle must be marked truncated")
	}
	if bundle.TotalTokens > 8 {
		t.Errorf("total tokens %d exceed budget 8", bundle.TotalTokens)
	}
	if len(bundle.Fragments) != 2 {
		t.Fatalf("fragments = %d, want 2 (highest relevance that fit)", len(bundle.Fragments))
	}
	if bundle.Fragments[0].DocumentID != docA || bundle.Fragments[1].DocumentID != docC {
		t.Error("greedy fill must keep the most relevant fragments that fit")
	}
}

func TestAssemblePrefersCompleteDocuments(t *testing.T) {
	pid := uuid.New()
	fullDoc := uuid.New()
	index := &stubIndex{byPatient: map[uuid.UUID][]vector.Match{
		pid: {
			{DocumentID: fullDoc, PatientID: pid, Sequence: 3, Text: "chunk of the full doc", Score: 0.99},
			{DocumentID: uuid.New(), PatientID: pid, Sequence: 0, Text: "standalone chunk", Score: 0.6},
		},
	}}
	a := newTestAssembler(
		&stubPatients{known: map[uuid.UUID]bool{pid: true}},
		&stubRecords{byPatient: map[uuid.UUID][]*document.Record{
			pid: {{ID: fullDoc, PatientID: pid, FullText: "the complete document text", DocType: "CONS", OriginalFilename: "f.pdf"}},
		}},
		index, 5, 1000,
	)

	bundle, err := a.Assemble(context.Background(), pid, "q", 0, 0)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(bundle.Fragments) != 2 {
		t.Fatalf("fragments = %d, want 2 (chunk of an included document is dropped)", len(bundle.Fragments))
	}
	first := bundle.Fragments[0]
	if first.Source != SourceDocument || first.DocumentID != fullDoc {
		t.Error("complete document must rank first")
	}
	for _, f := range bundle.Fragments[1:] {
		if f.DocumentID == fullDoc {
			t.Error("chunk duplicates a complete document already in the bundle")
		}
	}
}

func TestBundleContextText(t *testing.T) {
	seq := 2
	docID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	b := &Bundle{Fragments: []Fragment{
		{DocumentID: docID, Source: SourceDocument, Filename: "a.pdf", Text: "full text"},
		{DocumentID: docID, Source: SourceChunk, Sequence: &seq, Text: "chunk text"},
	}}
	got := b.ContextText()
	if !strings.Contains(got, "a.pdf") || !strings.Contains(got, "fragment 2") {
		t.Errorf("context text lacks provenance labels:\n%s", got)
	}
	if !strings.Contains(got, "full text") || !strings.Contains(got, "chunk text") {
		t.Errorf("context text lacks fragment bodies:\n%s", got)
	}
}
