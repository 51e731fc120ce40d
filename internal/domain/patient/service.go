package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo     Repository
	resolver *Resolver
}

func NewService(repo Repository, resolver *Resolver) *Service {
	return &Service{repo: repo, resolver: resolver}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByExternalID(ctx context.Context, externalID string) (*Patient, error) {
	if externalID == "" {
		return nil, fmt.Errorf("external_id is required")
	}
	return s.repo.GetByExternalID(ctx, externalID)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Resolve exposes the resolver for callers that already hold an extracted
// identity (the batch orchestrator, review tooling).
func (s *Service) Resolve(ctx context.Context, ident Identity) (*MatchResult, error) {
	if ident.Surname1 == "" && ident.GivenName == "" && ident.ExternalID == "" {
		return nil, fmt.Errorf("identity is empty")
	}
	return s.resolver.Resolve(ctx, ident)
}

// CreateFromIdentity creates a patient directly from an extracted identity,
// bypassing the matching policy. Used when a reviewer rejects every
// candidate and asks for a new record.
func (s *Service) CreateFromIdentity(ctx context.Context, ident Identity) (*Patient, error) {
	if ident.Surname1 == "" || ident.GivenName == "" {
		return nil, fmt.Errorf("identity needs at least a surname and a given name")
	}
	return s.resolver.createNew(ctx, ident)
}
