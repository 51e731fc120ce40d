package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/platform/vector"
)

// Embedder produces one vector per text, in order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// StorageError wraps failures from the dual-mode store. Transientness follows
// the wrapped cause, so retry helpers can classify through it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store persists extracted text as embedded chunks, as a verbatim record, or
// both, with content-hash idempotence in every mode.
type Store struct {
	records  Repository
	index    vector.Index
	embedder Embedder
	chunker  Chunker
	logger   zerolog.Logger
}

func NewStore(records Repository, index vector.Index, embedder Embedder, chunker Chunker, logger zerolog.Logger) *Store {
	return &Store{
		records:  records,
		index:    index,
		embedder: embedder,
		chunker:  chunker,
		logger:   logger,
	}
}

// ContentHash returns the SHA-256 hex digest of the extracted text. The hash
// covers the text only, never metadata.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Store writes the document in the requested mode. Identical content already
// stored for the patient short-circuits with Deduplicated set; hybrid halves
// are independently idempotent, so a retry after a partial failure only redoes
// the missing half.
func (s *Store) Store(ctx context.Context, patientID, documentID uuid.UUID, text string, mode Mode, meta Metadata) (*StoreResult, error) {
	if text == "" {
		return nil, &StorageError{Op: "validate", Err: errors.New("empty document text")}
	}

	result := &StoreResult{
		DocumentID:  documentID,
		ContentHash: ContentHash(text),
		Mode:        mode,
	}

	var completeDedup, vectorDedup bool

	if mode.Complete() {
		dedup, existingID, err := s.storeComplete(ctx, patientID, documentID, text, result.ContentHash, meta)
		if err != nil {
			return nil, &StorageError{Op: "complete", Err: err}
		}
		if dedup {
			result.DocumentID = existingID
		}
		completeDedup = dedup
	}

	if mode.Vectorized() {
		chunks, dedup, err := s.storeVectorized(ctx, patientID, result.DocumentID, text, result.ContentHash)
		if err != nil {
			return nil, &StorageError{Op: "vectorized", Err: err}
		}
		result.ChunksStored = chunks
		vectorDedup = dedup
	}

	// Deduplicated means every requested representation already existed.
	result.Deduplicated = (!mode.Complete() || completeDedup) && (!mode.Vectorized() || vectorDedup)

	s.logger.Info().
		Str("patient_id", patientID.String()).
		Str("document_id", result.DocumentID.String()).
		Str("mode", string(mode)).
		Int("chunks", result.ChunksStored).
		Bool("deduplicated", result.Deduplicated).
		Msg("document stored")

	return result, nil
}

// storeComplete writes the verbatim record unless one with the same content
// already exists for the patient.
func (s *Store) storeComplete(ctx context.Context, patientID, documentID uuid.UUID, text, hash string, meta Metadata) (dedup bool, existingID uuid.UUID, err error) {
	existing, err := s.records.GetByPatientAndHash(ctx, patientID, hash)
	if err == nil {
		return true, existing.ID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, uuid.Nil, fmt.Errorf("check existing record: %w", err)
	}

	rec := &Record{
		ID:               documentID,
		PatientID:        patientID,
		FullText:         text,
		ContentHash:      hash,
		DocType:          meta.DocType,
		OriginalFilename: meta.OriginalFilename,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return false, uuid.Nil, err
	}
	return false, rec.ID, nil
}

// storeVectorized chunks, embeds and upserts unless an identical chunk-set is
// already indexed for the patient.
func (s *Store) storeVectorized(ctx context.Context, patientID, documentID uuid.UUID, text, hash string) (stored int, dedup bool, err error) {
	exists, err := s.index.HasContent(ctx, patientID, hash)
	if err != nil {
		return 0, false, fmt.Errorf("check existing chunks: %w", err)
	}
	if exists {
		return 0, true, nil
	}

	texts := s.chunker.Split(text)
	if len(texts) == 0 {
		return 0, false, errors.New("chunker produced no chunks")
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, false, err
	}

	chunks := make([]vector.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = vector.Chunk{
			DocumentID:  documentID,
			PatientID:   patientID,
			Sequence:    i,
			Text:        t,
			Embedding:   vectors[i],
			ContentHash: hash,
		}
	}

	if err := s.index.UpsertChunks(ctx, chunks); err != nil {
		return 0, false, err
	}
	return len(chunks), false, nil
}
