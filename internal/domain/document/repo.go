package document

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no document record matches the lookup.
var ErrNotFound = errors.New("document not found")

type Repository interface {
	Create(ctx context.Context, d *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)

	// GetByPatientAndHash is the idempotence probe: an existing record for
	// (patient_id, content_hash) means identical content was already stored.
	GetByPatientAndHash(ctx context.Context, patientID uuid.UUID, contentHash string) (*Record, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
