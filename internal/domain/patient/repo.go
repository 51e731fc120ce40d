package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no patient matches the lookup.
var ErrNotFound = errors.New("patient not found")

type Repository interface {
	Create(ctx context.Context, p *Patient) error

	// CreateIfAbsent inserts p unless a patient with the same external_id
	// already exists. When one exists, p is overwritten with the stored
	// record and created is false. This is the duplicate-patient backstop
	// under concurrent resolution.
	CreateIfAbsent(ctx context.Context, p *Patient) (created bool, err error)

	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByExternalID(ctx context.Context, externalID string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)

	// All returns the full patient corpus for fuzzy matching.
	All(ctx context.Context) ([]*Patient, error)
}
