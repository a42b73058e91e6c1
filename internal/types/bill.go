package types

import (
	"fmt"
	"strings"
)

// Bill represents a legislative proposition as collected from the Chamber API
type Bill struct {
	ID              string   `json:"id"`
	TypeCode        string   `json:"type_code"`
	TypeDescription string   `json:"type_description,omitempty"`
	Number          string   `json:"number"`
	Year            string   `json:"year"`
	Summary         string   `json:"summary"`
	Keywords        string   `json:"keywords,omitempty"`
	Indexing        string   `json:"indexing,omitempty"`
	PresentedAt     string   `json:"presented_at,omitempty"`
	DocumentURL     string   `json:"document_url,omitempty"`
	PageURL         string   `json:"page_url,omitempty"`
	Status          Status   `json:"status"`
	Author          string   `json:"author,omitempty"`
	AuthorParty     string   `json:"author_party,omitempty"`
	CoAuthors       []string `json:"co_authors,omitempty"`
}

// Status holds the latest processing stage of a bill
type Status struct {
	Situation         string `json:"situation,omitempty"`
	LastStage         string `json:"last_stage,omitempty"`
	LastStageAt       string `json:"last_stage_at,omitempty"`
	LastStageDispatch string `json:"last_stage_dispatch,omitempty"`
}

// RawTags returns the concatenated indexing fields used for keyword matching
func (b Bill) RawTags() string {
	switch {
	case b.Keywords != "" && b.Indexing != "":
		return b.Keywords + " " + b.Indexing
	case b.Keywords != "":
		return b.Keywords
	default:
		return b.Indexing
	}
}

// TagField returns the tag string exported alongside the bill, preferring keywords
func (b Bill) TagField() string {
	if b.Keywords != "" {
		return b.Keywords
	}
	return b.Indexing
}

// Identification renders the "PL 1234/2023" style identifier, falling back to the ID
func (b Bill) Identification() string {
	if b.TypeCode == "" || b.Number == "" || b.Year == "" {
		return b.ID
	}
	return fmt.Sprintf("%s %s/%s", b.TypeCode, b.Number, b.Year)
}

// Authors returns the principal author followed by co-authors with duplicates removed
func (b Bill) Authors() []string {
	seen := make(map[string]struct{}, len(b.CoAuthors)+1)
	authors := make([]string, 0, len(b.CoAuthors)+1)
	for _, name := range append([]string{b.Author}, b.CoAuthors...) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		authors = append(authors, name)
	}
	return authors
}

// MissingIdentifierError is returned when a corpus record has no identifier and
// scores can therefore not be aligned to it
type MissingIdentifierError struct {
	Index int
}

func (e *MissingIdentifierError) Error() string {
	return fmt.Sprintf("bill at index %d has no identifier", e.Index)
}

// ValidateCorpus checks that every bill carries an identifier
func ValidateCorpus(bills []Bill) error {
	for i, b := range bills {
		if strings.TrimSpace(b.ID) == "" {
			return &MissingIdentifierError{Index: i}
		}
	}
	return nil
}
