package patient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) CreateIfAbsent(ctx context.Context, p *Patient) (bool, error) {
	m.mu.Lock()
	if p.ExternalID != nil {
		for _, existing := range m.patients {
			if existing.ExternalID != nil && *existing.ExternalID == *p.ExternalID {
				*p = *existing
				m.mu.Unlock()
				return false, nil
			}
		}
	}
	m.mu.Unlock()
	return true, m.Create(ctx, p)
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetByExternalID(_ context.Context, externalID string) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.ExternalID != nil && *p.ExternalID == externalID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.patients, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	all, _ := m.All(context.Background())
	return all, len(all), nil
}

func (m *mockRepo) All(_ context.Context) ([]*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Patient
	for _, p := range m.patients {
		cp := *p
		result = append(result, &cp)
	}
	return result, nil
}

func strPtr(s string) *string { return &s }

// -- Resolver tests --

func TestResolver_ExactExternalID(t *testing.T) {
	repo := newMockRepo()
	existing := &Patient{
		ExternalID: strPtr("3000003799"),
		FirstName:  "MARIA ESTHER",
		LastName:   "GARZA",
	}
	repo.Create(context.Background(), existing)

	r := NewResolver(repo, nil)
	result, err := r.Resolve(context.Background(), Identity{
		ExternalID: "3000003799",
		GivenName:  "MARIA ESTHER",
		Surname1:   "GARZA",
		Surname2:   "TIJERINA",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Decision != DecisionAutoMatch {
		t.Errorf("expected auto_match, got %s", result.Decision)
	}
	if result.Patient == nil || result.Patient.ID != existing.ID {
		t.Error("expected the existing patient to be returned")
	}
	if len(result.Candidates) != 1 || result.Candidates[0].Score != 1.0 {
		t.Errorf("expected single candidate with score 1.0, got %+v", result.Candidates)
	}
}

func TestResolver_EmptyCorpusCreatesNew(t *testing.T) {
	repo := newMockRepo()
	r := NewResolver(repo, nil)

	result, err := r.Resolve(context.Background(), Identity{
		ExternalID: "3000003799",
		GivenName:  "MARIA ESTHER",
		Surname1:   "GARZA",
		Surname2:   "TIJERINA",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Decision != DecisionCreateNew {
		t.Errorf("expected create_new, got %s", result.Decision)
	}
	if result.Patient == nil || result.Patient.ID == uuid.Nil {
		t.Fatal("expected a created patient")
	}
	if result.Patient.ExternalID == nil || *result.Patient.ExternalID != "3000003799" {
		t.Error("expected external id carried onto the created patient")
	}
	if len(repo.patients) != 1 {
		t.Errorf("expected exactly one patient created, got %d", len(repo.patients))
	}
}

func TestResolver_FuzzyAutoMatch(t *testing.T) {
	repo := newMockRepo()
	existing := &Patient{
		FirstName:      "MARIA ESTHER",
		LastName:       "GARZA",
		SecondLastName: strPtr("TIJERINA"),
	}
	repo.Create(context.Background(), existing)

	r := NewResolver(repo, nil)
	// No external id on file, same name with different casing.
	result, err := r.Resolve(context.Background(), Identity{
		GivenName: "maria esther",
		Surname1:  "garza",
		Surname2:  "tijerina",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Decision != DecisionAutoMatch {
		t.Fatalf("expected auto_match, got %s (candidates %+v)", result.Decision, result.Candidates)
	}
	if result.Patient.ID != existing.ID {
		t.Error("expected the fuzzy-matched patient to be reused")
	}
	if len(repo.patients) != 1 {
		t.Errorf("no patient should be created on auto_match, corpus has %d", len(repo.patients))
	}
}

func TestResolver_MidScoreGoesToReview(t *testing.T) {
	repo := newMockRepo()
	repo.Create(context.Background(), &Patient{
		FirstName: "MARIA", LastName: "GARZA", SecondLastName: strPtr("LOPEZ"),
	})
	repo.Create(context.Background(), &Patient{
		FirstName: "MARIANA", LastName: "GARCIA", SecondLastName: strPtr("TIJERINA"),
	})

	r := NewResolver(repo, nil)
	result, err := r.Resolve(context.Background(), Identity{
		GivenName: "MARIA ESTHER",
		Surname1:  "GARZA",
		Surname2:  "TIJERINA",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Decision != DecisionReviewNeeded {
		t.Fatalf("expected review_needed, got %s (candidates %+v)", result.Decision, result.Candidates)
	}
	if len(result.Candidates) < 1 || len(result.Candidates) > 3 {
		t.Errorf("expected 1-3 candidates, got %d", len(result.Candidates))
	}
	if result.Patient != nil {
		t.Error("review_needed must not create or pick a patient")
	}
	if len(repo.patients) != 2 {
		t.Errorf("review_needed must not create a patient, corpus has %d", len(repo.patients))
	}
}

func TestResolver_LowScoreCreatesNew(t *testing.T) {
	repo := newMockRepo()
	repo.Create(context.Background(), &Patient{
		FirstName: "JUAN CARLOS", LastName: "LOPEZ", SecondLastName: strPtr("HERNANDEZ"),
	})

	r := NewResolver(repo, nil)
	result, err := r.Resolve(context.Background(), Identity{
		ExternalID: "4000001111",
		GivenName:  "MARIA ESTHER",
		Surname1:   "GARZA",
		Surname2:   "TIJERINA",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Decision != DecisionCreateNew {
		t.Fatalf("expected create_new, got %s (candidates %+v)", result.Decision, result.Candidates)
	}
	if len(repo.patients) != 2 {
		t.Errorf("expected a second patient, corpus has %d", len(repo.patients))
	}
}

func TestResolver_SecondResolveReusesCreated(t *testing.T) {
	repo := newMockRepo()
	r := NewResolver(repo, nil)

	ident := Identity{
		ExternalID: "6001467010",
		GivenName:  "MARIA ESTHER",
		Surname1:   "GARZA",
		Surname2:   "TIJERINA",
	}

	first, err := r.Resolve(context.Background(), ident)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Decision != DecisionCreateNew {
		t.Fatalf("expected create_new on first resolve, got %s", first.Decision)
	}

	second, err := r.Resolve(context.Background(), ident)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Decision != DecisionAutoMatch {
		t.Fatalf("expected auto_match on second resolve, got %s", second.Decision)
	}
	if second.Patient.ID != first.Patient.ID {
		t.Error("both resolutions must converge on the same patient")
	}
	if len(repo.patients) != 1 {
		t.Errorf("expected exactly one patient, got %d", len(repo.patients))
	}
}

func TestIdentity_FullName(t *testing.T) {
	id := Identity{GivenName: "MARIA ESTHER", Surname1: "GARZA", Surname2: "TIJERINA"}
	if got := id.FullName(); got != "GARZA TIJERINA MARIA ESTHER" {
		t.Errorf("unexpected full name %q", got)
	}

	noSecond := Identity{GivenName: "JUAN", Surname1: "LOPEZ"}
	if got := noSecond.FullName(); got != "LOPEZ JUAN" {
		t.Errorf("unexpected full name %q", got)
	}
}
