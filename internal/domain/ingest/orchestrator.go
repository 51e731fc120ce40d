package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/domain/document"
	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/domain/patient"
)

const (
	minWorkers = 4
	maxWorkers = 8
)

// PatientResolver is the slice of the patient service the orchestrator needs.
type PatientResolver interface {
	Resolve(ctx context.Context, ident patient.Identity) (*patient.MatchResult, error)
	CreateFromIdentity(ctx context.Context, ident patient.Identity) (*patient.Patient, error)
}

// DocumentStore persists an extracted document under a resolved patient.
type DocumentStore interface {
	Store(ctx context.Context, patientID, documentID uuid.UUID, text string, mode document.Mode, meta document.Metadata) (*document.StoreResult, error)
}

// TextExtractor turns raw file bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, content []byte) (string, error)
}

// Orchestrator drives a batch through parse, resolve and store with a fixed
// worker pool. Items naming the same external_id resolve under a shared lock
// so concurrent create_new decisions converge on one patient record.
type Orchestrator struct {
	repo      Repository
	patients  PatientResolver
	store     DocumentStore
	extractor TextExtractor
	workers   int
	logger    zerolog.Logger

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
	running  map[uuid.UUID]context.CancelFunc
}

func NewOrchestrator(repo Repository, patients PatientResolver, store DocumentStore, extractor TextExtractor, workers int, logger zerolog.Logger) *Orchestrator {
	if workers < minWorkers {
		workers = minWorkers
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}
	return &Orchestrator{
		repo:      repo,
		patients:  patients,
		store:     store,
		extractor: extractor,
		workers:   workers,
		logger:    logger.With().Str("component", "batch_orchestrator").Logger(),
		keyLocks:  make(map[string]*sync.Mutex),
		running:   make(map[uuid.UUID]context.CancelFunc),
	}
}

// Process runs every pending item of the batch to a terminal state and then
// settles the batch status. Cancelling the batch stops dispatch of new items;
// items already handed to a worker always finish, so no file is left in a
// half-written state.
func (o *Orchestrator) Process(ctx context.Context, batchID uuid.UUID) error {
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.running[batchID] = cancel
	o.mu.Unlock()
	defer func() {
		cancel()
		o.mu.Lock()
		delete(o.running, batchID)
		o.mu.Unlock()
	}()

	// Persistence must survive cancellation: a cancelled batch still has to
	// record the outcome of its in-flight items.
	dbctx := context.WithoutCancel(ctx)

	batch, err := o.repo.GetBatch(dbctx, batchID)
	if err != nil {
		return err
	}
	if err := o.repo.SetBatchStatus(dbctx, batchID, BatchProcessing); err != nil {
		return err
	}

	items, err := o.repo.ListItems(dbctx, batchID)
	if err != nil {
		return err
	}

	jobs := make(chan *BatchFileItem)
	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range jobs {
				o.processItem(dbctx, batch, it)
			}
		}()
	}

dispatch:
	for _, it := range items {
		if it.Status != ItemPending {
			continue
		}
		select {
		case <-ctx.Done():
			o.logger.Info().Str("batch_id", batchID.String()).Msg("batch cancelled, stopping dispatch")
			break dispatch
		case jobs <- it:
		}
	}
	close(jobs)
	wg.Wait()

	return o.settleBatch(dbctx, batchID)
}

// Cancel stops dispatch for a running batch. It reports whether the batch
// was actually running.
func (o *Orchestrator) Cancel(batchID uuid.UUID) bool {
	o.mu.Lock()
	cancel, ok := o.running[batchID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// ResolveReview applies a reviewer's decision to a review_needed item and
// runs the storage stage for it synchronously.
func (o *Orchestrator) ResolveReview(ctx context.Context, batchID, itemID uuid.UUID, decision ReviewDecision) (*BatchFileItem, error) {
	it, err := o.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it.BatchID != batchID {
		return nil, ErrItemNotFound
	}
	if it.Status != ItemReviewNeeded {
		return nil, fmt.Errorf("%w: item is %s", ErrNotReviewable, it.Status)
	}
	batch, err := o.repo.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if decision.CreateNew {
		p, err := o.patients.CreateFromIdentity(ctx, it.Identity())
		if err != nil {
			return nil, fmt.Errorf("create patient from review: %w", err)
		}
		it.PatientID = &p.ID
		d := patient.DecisionCreateNew
		it.Decision = &d
	} else {
		if decision.PatientID == nil {
			return nil, fmt.Errorf("%w: choose a candidate or create_new", ErrInvalidReview)
		}
		if !candidateOf(it, *decision.PatientID) {
			return nil, fmt.Errorf("%w: patient %s is not among the candidates", ErrInvalidReview, decision.PatientID)
		}
		it.PatientID = decision.PatientID
		d := patient.DecisionAutoMatch
		it.Decision = &d
	}

	o.storeStage(ctx, batch, it)

	if err := o.settleBatch(ctx, batchID); err != nil {
		return nil, err
	}
	return it, nil
}

func candidateOf(it *BatchFileItem, patientID uuid.UUID) bool {
	for _, c := range it.MatchCandidates {
		if c.PatientID == patientID {
			return true
		}
	}
	return false
}

// processItem walks one file through the state machine. Every failure is
// captured verbatim on the item; a failed item never takes the batch down.
func (o *Orchestrator) processItem(ctx context.Context, batch *UploadBatch, it *BatchFileItem) {
	if err := o.advance(ctx, it, ItemParsing); err != nil {
		o.logger.Error().Err(err).Str("item_id", it.ID.String()).Msg("item transition failed")
		return
	}

	cand, err := ParseFilename(it.Filename)
	if err != nil {
		o.markError(ctx, batch, it, err)
		return
	}
	it.ExternalID = &cand.ExternalID
	it.GivenName = &cand.GivenName
	it.Surname1 = &cand.Surname1
	it.EpisodeNumber = &cand.EpisodeNumber
	it.DocTypeCode = &cand.DocTypeCode
	if cand.Surname2 != "" {
		s2 := cand.Surname2
		it.Surname2 = &s2
	}

	ident := cand.ToIdentity()
	res, err := o.resolveSerialized(ctx, ident)
	if err != nil {
		o.markError(ctx, batch, it, err)
		return
	}

	it.Decision = &res.Decision
	it.MatchCandidates = res.Candidates

	if res.Decision == patient.DecisionReviewNeeded {
		if err := o.advance(ctx, it, ItemReviewNeeded); err != nil {
			o.logger.Error().Err(err).Str("item_id", it.ID.String()).Msg("item transition failed")
		}
		return
	}

	it.PatientID = &res.Patient.ID
	if err := o.advance(ctx, it, ItemMatched); err != nil {
		o.logger.Error().Err(err).Str("item_id", it.ID.String()).Msg("item transition failed")
		return
	}

	o.storeStage(ctx, batch, it)
}

// resolveSerialized runs resolution under a per-key lock so two files naming
// the same patient cannot both decide create_new.
func (o *Orchestrator) resolveSerialized(ctx context.Context, ident patient.Identity) (*patient.MatchResult, error) {
	key := ident.ExternalID
	if key == "" {
		key = ident.FullName()
	}
	lock := o.lockFor(key)
	lock.Lock()
	defer lock.Unlock()
	return o.patients.Resolve(ctx, ident)
}

func (o *Orchestrator) lockFor(key string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		o.keyLocks[key] = lock
	}
	return lock
}

// storeStage extracts text and stores the document for an item whose patient
// is already resolved, then settles the item's counter contribution.
func (o *Orchestrator) storeStage(ctx context.Context, batch *UploadBatch, it *BatchFileItem) {
	if err := o.advance(ctx, it, ItemProcessing); err != nil {
		o.logger.Error().Err(err).Str("item_id", it.ID.String()).Msg("item transition failed")
		return
	}

	text, err := o.extractor.Extract(ctx, it.Filename, it.Content)
	if err != nil {
		o.markError(ctx, batch, it, fmt.Errorf("extract text: %w", err))
		return
	}

	docType := batch.DefaultDocType
	if it.DocTypeCode != nil && *it.DocTypeCode != "" {
		docType = *it.DocTypeCode
	}

	result, err := o.store.Store(ctx, *it.PatientID, uuid.New(), text, batch.ProcessingMode, document.Metadata{
		DocType:          docType,
		OriginalFilename: it.Filename,
	})
	if err != nil {
		o.markError(ctx, batch, it, fmt.Errorf("store document: %w", err))
		return
	}

	if err := o.advance(ctx, it, ItemCompleted); err != nil {
		o.logger.Error().Err(err).Str("item_id", it.ID.String()).Msg("item transition failed")
		return
	}

	created, matched := 0, 1
	if it.Decision != nil && *it.Decision == patient.DecisionCreateNew {
		created, matched = 1, 0
	}
	if err := o.repo.IncrementCounters(ctx, batch.ID, 1, created, matched, 0); err != nil {
		o.logger.Error().Err(err).Str("batch_id", batch.ID.String()).Msg("counter update failed")
	}

	o.logger.Info().
		Str("batch_id", batch.ID.String()).
		Str("item_id", it.ID.String()).
		Str("document_id", result.DocumentID.String()).
		Bool("deduplicated", result.Deduplicated).
		Msg("item completed")
}

// advance moves the item to the next status, guarding the state machine.
func (o *Orchestrator) advance(ctx context.Context, it *BatchFileItem, to ItemStatus) error {
	if !CanTransition(it.Status, to) {
		return fmt.Errorf("invalid item transition %s -> %s", it.Status, to)
	}
	it.Status = to
	return o.repo.UpdateItem(ctx, it)
}

// markError records the failure verbatim on the item and settles its counter
// contribution.
func (o *Orchestrator) markError(ctx context.Context, batch *UploadBatch, it *BatchFileItem, cause error) {
	msg := cause.Error()
	it.ErrorMessage = &msg
	it.Status = ItemError
	if err := o.repo.UpdateItem(ctx, it); err != nil {
		o.logger.Error().Err(err).Str("item_id", it.ID.String()).Msg("persisting item error failed")
		return
	}
	if err := o.repo.IncrementCounters(ctx, batch.ID, 1, 0, 0, 1); err != nil {
		o.logger.Error().Err(err).Str("batch_id", batch.ID.String()).Msg("counter update failed")
	}
	o.logger.Warn().
		Str("batch_id", batch.ID.String()).
		Str("item_id", it.ID.String()).
		Str("filename", it.Filename).
		Msg(msg)
}

// settleBatch moves the batch to its final status once no item can advance
// without outside input. Items awaiting review keep the batch in processing.
func (o *Orchestrator) settleBatch(ctx context.Context, batchID uuid.UUID) error {
	batch, err := o.repo.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	items, err := o.repo.ListItems(ctx, batchID)
	if err != nil {
		return err
	}

	for _, it := range items {
		if !it.Status.Terminal() {
			return nil
		}
	}

	status := BatchCompleted
	if batch.ErrorCount >= batch.TotalFiles && batch.TotalFiles > 0 {
		status = BatchFailed
	}
	return o.repo.SetBatchStatus(ctx, batchID, status)
}
