package document

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Mode selects which representation(s) of a document get stored. It is
// parsed once at the system boundary; downstream code switches on the enum.
type Mode string

const (
	ModeVectorized Mode = "vectorized"
	ModeComplete   Mode = "complete"
	ModeHybrid     Mode = "hybrid"
)

// ParseMode validates a mode string into the closed enum.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeVectorized, ModeComplete, ModeHybrid:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid processing mode %q (want vectorized, complete or hybrid)", s)
	}
}

// Vectorized reports whether the mode produces embedded chunks.
func (m Mode) Vectorized() bool { return m == ModeVectorized || m == ModeHybrid }

// Complete reports whether the mode stores the verbatim document.
func (m Mode) Complete() bool { return m == ModeComplete || m == ModeHybrid }

// Record maps to the document_record table: one verbatim document per
// (patient_id, document_id).
type Record struct {
	ID               uuid.UUID `db:"id" json:"id"`
	PatientID        uuid.UUID `db:"patient_id" json:"patient_id"`
	FullText         string    `db:"full_text" json:"full_text"`
	ContentHash      string    `db:"content_hash" json:"content_hash"`
	DocType          string    `db:"doc_type" json:"doc_type"`
	OriginalFilename string    `db:"original_filename" json:"original_filename"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// StoreResult reports what a store operation produced. Deduplicated means an
// identical document already existed and nothing was written.
type StoreResult struct {
	DocumentID   uuid.UUID `json:"document_id"`
	ContentHash  string    `json:"content_hash"`
	Mode         Mode      `json:"mode"`
	ChunksStored int       `json:"chunks_stored"`
	Deduplicated bool      `json:"deduplicated"`
}

// Metadata carried alongside the text into the store.
type Metadata struct {
	DocType          string
	OriginalFilename string
}
