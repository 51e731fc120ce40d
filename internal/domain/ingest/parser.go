package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/domain/patient"
)

// IdentityCandidate is the structured identity carried by a conforming
// filename: <external_id>_<surname1> <surname2>, <given_name>_<episode>_<doc_type>.<ext>
type IdentityCandidate struct {
	ExternalID    string `json:"external_id"`
	Surname1      string `json:"surname1"`
	Surname2      string `json:"surname2,omitempty"`
	GivenName     string `json:"given_name"`
	EpisodeNumber string `json:"episode_number"`
	DocTypeCode   string `json:"doc_type_code"`
}

// ToIdentity converts to the resolver's input shape.
func (c IdentityCandidate) ToIdentity() patient.Identity {
	return patient.Identity{
		ExternalID: c.ExternalID,
		GivenName:  c.GivenName,
		Surname1:   c.Surname1,
		Surname2:   c.Surname2,
	}
}

// Filename renders the candidate back into the canonical filename form.
func (c IdentityCandidate) Filename(ext string) string {
	surnames := c.Surname1
	if c.Surname2 != "" {
		surnames += " " + c.Surname2
	}
	return fmt.Sprintf("%s_%s, %s_%s_%s.%s",
		c.ExternalID, surnames, c.GivenName, c.EpisodeNumber, c.DocTypeCode, ext)
}

// ParseError reports a filename that does not follow the naming convention.
// It is permanent: retrying the same filename can never succeed.
type ParseError struct {
	Filename string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.Filename, e.Reason)
}

func (e *ParseError) Transient() bool { return false }

// ParseFilename extracts the identity fields from a scanned-document
// filename. The base name (extension stripped) must contain exactly four
// underscore-separated fields; the name field splits on the first ", " into
// surnames and given name, and the surnames split on the first space only,
// so compound second surnames stay intact.
func ParseFilename(name string) (*IdentityCandidate, error) {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	parts := strings.Split(base, "_")
	if len(parts) != 4 {
		return nil, &ParseError{Filename: name, Reason: fmt.Sprintf("expected 4 underscore-separated fields, got %d", len(parts))}
	}

	externalID := strings.TrimSpace(parts[0])
	namePart := strings.TrimSpace(parts[1])
	episode := strings.TrimSpace(parts[2])
	docType := strings.TrimSpace(parts[3])

	if externalID == "" {
		return nil, &ParseError{Filename: name, Reason: "empty external id"}
	}
	if episode == "" {
		return nil, &ParseError{Filename: name, Reason: "empty episode number"}
	}
	if docType == "" {
		return nil, &ParseError{Filename: name, Reason: "empty document type code"}
	}

	surnames, given, ok := strings.Cut(namePart, ",")
	if !ok {
		return nil, &ParseError{Filename: name, Reason: "name field missing comma before given name"}
	}
	surnames = strings.TrimSpace(surnames)
	given = strings.TrimSpace(given)
	if surnames == "" {
		return nil, &ParseError{Filename: name, Reason: "empty surnames"}
	}
	if given == "" {
		return nil, &ParseError{Filename: name, Reason: "empty given name"}
	}

	surname1, surname2, _ := strings.Cut(surnames, " ")
	return &IdentityCandidate{
		ExternalID:    externalID,
		Surname1:      surname1,
		Surname2:      strings.TrimSpace(surname2),
		GivenName:     given,
		EpisodeNumber: episode,
		DocTypeCode:   docType,
	}, nil
}
