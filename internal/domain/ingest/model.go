package ingest

import (
	"time"

	"github.com/google/uuid"

	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/domain/document"
	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/domain/patient"
)

// BatchStatus is the aggregate state of a submitted batch.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// ItemStatus is the per-file state. Transitions are monotonic along
// validTransitions; review_needed halts automation until a human decides.
type ItemStatus string

const (
	ItemPending      ItemStatus = "pending"
	ItemParsing      ItemStatus = "parsing"
	ItemMatched      ItemStatus = "matched"
	ItemReviewNeeded ItemStatus = "review_needed"
	ItemProcessing   ItemStatus = "processing"
	ItemCompleted    ItemStatus = "completed"
	ItemError        ItemStatus = "error"
)

var validTransitions = map[ItemStatus][]ItemStatus{
	ItemPending:      {ItemParsing, ItemError},
	ItemParsing:      {ItemMatched, ItemReviewNeeded, ItemError},
	ItemMatched:      {ItemProcessing, ItemError},
	ItemReviewNeeded: {ItemProcessing, ItemError},
	ItemProcessing:   {ItemCompleted, ItemError},
}

// CanTransition reports whether moving from from to to follows the state
// machine. Terminal states (completed, error) allow nothing.
func CanTransition(from, to ItemStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends automated processing for good.
// review_needed is not terminal: a review decision re-enters the pipeline.
func (s ItemStatus) Terminal() bool {
	return s == ItemCompleted || s == ItemError
}

// UploadBatch tracks one submission of scanned files as a unit of progress.
type UploadBatch struct {
	ID              uuid.UUID     `db:"id" json:"id"`
	ProcessingMode  document.Mode `db:"processing_mode" json:"processing_mode"`
	DefaultDocType  string        `db:"default_doc_type" json:"default_doc_type"`
	Status          BatchStatus   `db:"status" json:"status"`
	TotalFiles      int           `db:"total_files" json:"total_files"`
	ProcessedFiles  int           `db:"processed_files" json:"processed_files"`
	CreatedPatients int           `db:"created_patients" json:"created_patients"`
	MatchedPatients int           `db:"matched_patients" json:"matched_patients"`
	ErrorCount      int           `db:"error_count" json:"error_count"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// BatchFileItem is the per-file record of parsing, matching and storage
// progress within a batch.
type BatchFileItem struct {
	ID       uuid.UUID  `db:"id" json:"id"`
	BatchID  uuid.UUID  `db:"batch_id" json:"batch_id"`
	Filename string     `db:"filename" json:"filename"`
	Content  []byte     `db:"content" json:"-"`
	Status   ItemStatus `db:"status" json:"status"`

	// Identity extracted from the filename, denormalized so review and
	// reprocessing never re-parse.
	ExternalID    *string `db:"external_id" json:"external_id,omitempty"`
	GivenName     *string `db:"given_name" json:"given_name,omitempty"`
	Surname1      *string `db:"surname1" json:"surname1,omitempty"`
	Surname2      *string `db:"surname2" json:"surname2,omitempty"`
	EpisodeNumber *string `db:"episode_number" json:"episode_number,omitempty"`
	DocTypeCode   *string `db:"doc_type_code" json:"doc_type_code,omitempty"`

	PatientID       *uuid.UUID          `db:"patient_id" json:"patient_id,omitempty"`
	Decision        *patient.Decision   `db:"decision" json:"decision,omitempty"`
	MatchCandidates []patient.Candidate `db:"match_candidates" json:"match_candidates,omitempty"`
	ErrorMessage    *string             `db:"error_message" json:"error_message,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Identity rebuilds the resolver input from the denormalized columns.
func (it *BatchFileItem) Identity() patient.Identity {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	return patient.Identity{
		ExternalID: deref(it.ExternalID),
		GivenName:  deref(it.GivenName),
		Surname1:   deref(it.Surname1),
		Surname2:   deref(it.Surname2),
	}
}

// StatusTransition is one entry of an item's append-only audit trail.
type StatusTransition struct {
	ID         int64      `db:"id" json:"id"`
	ItemID     uuid.UUID  `db:"item_id" json:"item_id"`
	FromStatus ItemStatus `db:"from_status" json:"from_status"`
	ToStatus   ItemStatus `db:"to_status" json:"to_status"`
	Note       *string    `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
