package patient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Identity is the structured identity extracted from a scanned-document
// filename, reduced to the fields resolution needs.
type Identity struct {
	ExternalID string
	GivenName  string
	Surname1   string
	Surname2   string
}

// FullName returns the space-joined name for fuzzy comparison.
func (id Identity) FullName() string {
	parts := []string{id.Surname1}
	if id.Surname2 != "" {
		parts = append(parts, id.Surname2)
	}
	parts = append(parts, id.GivenName)
	return strings.Join(parts, " ")
}

const (
	autoMatchThreshold = 0.8
	reviewThreshold    = 0.3
	topCandidates      = 3

	// Full-name similarity dominates; the given-name component is the only
	// demographic corroboration a filename offers.
	fullNameWeight  = 0.85
	givenNameWeight = 0.15
)

// Resolver maps an extracted identity to a patient record: an exact
// external_id hit, a fuzzy auto-match, a human-review candidate list, or a
// freshly created record.
type Resolver struct {
	repo Repository
	sim  Similarity
}

func NewResolver(repo Repository, sim Similarity) *Resolver {
	if sim == nil {
		sim = TokenSortRatio{}
	}
	return &Resolver{repo: repo, sim: sim}
}

// Resolve runs the matching policy. On create_new it also creates the
// PatientRecord so the decision is durable before the caller proceeds;
// CreateIfAbsent makes that safe under concurrent resolution of the same
// external_id.
func (r *Resolver) Resolve(ctx context.Context, ident Identity) (*MatchResult, error) {
	// 1. Exact external_id match.
	if ident.ExternalID != "" {
		existing, err := r.repo.GetByExternalID(ctx, ident.ExternalID)
		if err == nil {
			return &MatchResult{
				Decision: DecisionAutoMatch,
				Patient:  existing,
				Candidates: []Candidate{
					{PatientID: existing.ID, Name: existing.DisplayName(), Score: 1.0},
				},
			}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("lookup external id %s: %w", ident.ExternalID, err)
		}
	}

	// 2. Fuzzy name comparison over the corpus.
	corpus, err := r.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load patient corpus: %w", err)
	}

	candidates := r.score(ident, corpus)

	// 3. Threshold branching.
	if len(candidates) > 0 && candidates[0].Score >= autoMatchThreshold {
		top, err := r.repo.GetByID(ctx, candidates[0].PatientID)
		if err != nil {
			return nil, fmt.Errorf("load auto-matched patient: %w", err)
		}
		return &MatchResult{
			Decision:   DecisionAutoMatch,
			Patient:    top,
			Candidates: candidates,
		}, nil
	}

	if len(candidates) > 0 && candidates[0].Score >= reviewThreshold {
		return &MatchResult{
			Decision:   DecisionReviewNeeded,
			Candidates: candidates,
		}, nil
	}

	created, err := r.createNew(ctx, ident)
	if err != nil {
		return nil, err
	}
	return &MatchResult{
		Decision: DecisionCreateNew,
		Patient:  created,
	}, nil
}

// score ranks the corpus against the identity and keeps the top candidates.
func (r *Resolver) score(ident Identity, corpus []*Patient) []Candidate {
	var scored []Candidate
	for _, p := range corpus {
		full := r.sim.Similarity(ident.FullName(), p.FullName())
		given := r.sim.Similarity(ident.GivenName, p.FirstName)
		score := fullNameWeight*full + givenNameWeight*given
		if score <= 0 {
			continue
		}
		scored = append(scored, Candidate{
			PatientID: p.ID,
			Name:      p.DisplayName(),
			Score:     score,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topCandidates {
		scored = scored[:topCandidates]
	}
	return scored
}

func (r *Resolver) createNew(ctx context.Context, ident Identity) (*Patient, error) {
	p := &Patient{
		FirstName: ident.GivenName,
		LastName:  ident.Surname1,
	}
	if ident.Surname2 != "" {
		s2 := ident.Surname2
		p.SecondLastName = &s2
	}
	if ident.ExternalID != "" {
		eid := ident.ExternalID
		p.ExternalID = &eid
	}

	if _, err := r.repo.CreateIfAbsent(ctx, p); err != nil {
		return nil, fmt.Errorf("create patient for %s: %w", ident.FullName(), err)
	}
	return p, nil
}
