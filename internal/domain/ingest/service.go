package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/domain/document"
)

var (
	ErrNotReviewable = errors.New("item is not awaiting review")
	ErrInvalidReview = errors.New("invalid review decision")
)

// FileUpload is one file of a batch submission.
type FileUpload struct {
	Name    string
	Content []byte
}

// ReviewDecision is a reviewer's verdict on a review_needed item: either one
// of the stored candidates, or a brand-new patient record.
type ReviewDecision struct {
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
	CreateNew bool       `json:"create_new,omitempty"`
}

// BatchDetail is a batch with its items, as served by the API.
type BatchDetail struct {
	*UploadBatch
	Items []*BatchFileItem `json:"items"`
}

type Service struct {
	repo   Repository
	orch   *Orchestrator
	logger zerolog.Logger
}

func NewService(repo Repository, orch *Orchestrator, logger zerolog.Logger) *Service {
	return &Service{repo: repo, orch: orch, logger: logger}
}

// Submit registers the batch and its files and kicks off processing in the
// background. The returned batch is in pending state; callers poll for
// progress.
func (s *Service) Submit(ctx context.Context, mode string, defaultDocType string, files []FileUpload) (*UploadBatch, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("batch needs at least one file")
	}
	parsedMode, err := document.ParseMode(mode)
	if err != nil {
		return nil, err
	}

	batch := &UploadBatch{
		ProcessingMode: parsedMode,
		DefaultDocType: defaultDocType,
		Status:         BatchPending,
		TotalFiles:     len(files),
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}
	for _, f := range files {
		item := &BatchFileItem{
			BatchID:  batch.ID,
			Filename: f.Name,
			Content:  f.Content,
			Status:   ItemPending,
		}
		if err := s.repo.CreateItem(ctx, item); err != nil {
			return nil, err
		}
	}

	go func() {
		if err := s.orch.Process(context.Background(), batch.ID); err != nil {
			s.logger.Error().Err(err).Str("batch_id", batch.ID.String()).Msg("batch processing failed")
		}
	}()

	return batch, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*BatchDetail, error) {
	batch, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return &BatchDetail{UploadBatch: batch, Items: items}, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*UploadBatch, int, error) {
	return s.repo.ListBatches(ctx, limit, offset)
}

// Cancel stops dispatch of pending items. In-flight items finish and the
// batch keeps whatever progress it made.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetBatch(ctx, id); err != nil {
		return err
	}
	if !s.orch.Cancel(id) {
		return fmt.Errorf("batch %s is not running", id)
	}
	return nil
}

func (s *Service) ResolveReview(ctx context.Context, batchID, itemID uuid.UUID, decision ReviewDecision) (*BatchFileItem, error) {
	return s.orch.ResolveReview(ctx, batchID, itemID, decision)
}

func (s *Service) ItemHistory(ctx context.Context, batchID, itemID uuid.UUID) ([]StatusTransition, error) {
	it, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it.BatchID != batchID {
		return nil, ErrItemNotFound
	}
	return s.repo.ItemHistory(ctx, itemID)
}
