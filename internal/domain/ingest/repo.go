package ingest

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrBatchNotFound = errors.New("batch not found")
	ErrItemNotFound  = errors.New("batch item not found")
)

// Repository persists batches, their file items and the item audit trail.
type Repository interface {
	CreateBatch(ctx context.Context, b *UploadBatch) error
	GetBatch(ctx context.Context, id uuid.UUID) (*UploadBatch, error)
	ListBatches(ctx context.Context, limit, offset int) ([]*UploadBatch, int, error)
	SetBatchStatus(ctx context.Context, id uuid.UUID, status BatchStatus) error

	// IncrementCounters atomically adds the deltas to the batch progress
	// counters. Each item contributes exactly once, on reaching a
	// terminal state.
	IncrementCounters(ctx context.Context, id uuid.UUID, processed, created, matched, errs int) error

	CreateItem(ctx context.Context, it *BatchFileItem) error
	GetItem(ctx context.Context, id uuid.UUID) (*BatchFileItem, error)
	ListItems(ctx context.Context, batchID uuid.UUID) ([]*BatchFileItem, error)

	// UpdateItem persists the item and appends a status-history row when
	// the status changed since the last stored value.
	UpdateItem(ctx context.Context, it *BatchFileItem) error

	ItemHistory(ctx context.Context, itemID uuid.UUID) ([]StatusTransition, error)
}
