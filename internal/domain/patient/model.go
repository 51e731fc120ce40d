package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. ExternalID is the identifier carried in
// scanned-document filenames and is unique across the corpus when present.
type Patient struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ExternalID     *string    `db:"external_id" json:"external_id,omitempty"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	SecondLastName *string    `db:"second_last_name" json:"second_last_name,omitempty"`
	BirthDate      *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender         *string    `db:"gender" json:"gender,omitempty"`
	PhoneMobile    *string    `db:"phone_mobile" json:"phone_mobile,omitempty"`
	Email          *string    `db:"email" json:"email,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// DisplayName renders "SURNAME1 SURNAME2, GIVEN" the same way scanned
// documents encode it.
func (p *Patient) DisplayName() string {
	surnames := p.LastName
	if p.SecondLastName != nil && *p.SecondLastName != "" {
		surnames += " " + *p.SecondLastName
	}
	return strings.TrimSpace(surnames + ", " + p.FirstName)
}

// FullName returns the space-joined name used for fuzzy comparison.
func (p *Patient) FullName() string {
	parts := []string{p.LastName}
	if p.SecondLastName != nil && *p.SecondLastName != "" {
		parts = append(parts, *p.SecondLastName)
	}
	parts = append(parts, p.FirstName)
	return strings.Join(parts, " ")
}

// Decision is the outcome class of a resolution attempt.
type Decision string

const (
	DecisionAutoMatch    Decision = "auto_match"
	DecisionReviewNeeded Decision = "review_needed"
	DecisionCreateNew    Decision = "create_new"
)

// Candidate is one scored patient considered during resolution.
type Candidate struct {
	PatientID uuid.UUID `json:"patient_id"`
	Name      string    `json:"name"`
	Score     float64   `json:"score"`
}

// MatchResult is the resolver's ranked decision. Candidates are ordered best
// first; Patient is set for auto_match and for create_new (the created
// record).
type MatchResult struct {
	Decision   Decision    `json:"decision"`
	Candidates []Candidate `json:"candidates,omitempty"`
	Patient    *Patient    `json:"patient,omitempty"`
}
