package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidRecord = errors.New("invalid record")
	ErrNoReferences  = errors.New("reference corpus unavailable")
)

type Status string

const (
	StatusDuplicate          Status = "duplicate"
	StatusPotentialDuplicate Status = "potential_duplicate"
	StatusNoMatch            Status = "no_match"
)

type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchCore     MatchType = "core"
	MatchAcronym  MatchType = "acronym"
	MatchFuzzy    MatchType = "fuzzy"
	MatchKeyword  MatchType = "keyword"
	MatchSemantic MatchType = "semantic"
	MatchURL      MatchType = "url"
	MatchNone     MatchType = "no_match"
)

// Symbolic reports whether the match came from string comparison rather than embeddings.
func (t MatchType) Symbolic() bool {
	switch t {
	case MatchExact, MatchCore, MatchAcronym, MatchFuzzy, MatchKeyword:
		return true
	}
	return false
}

// InstitutionRecord is one uploaded row or one registry entry.
type InstitutionRecord struct {
	ID              string `json:"id"`
	Name            string `json:"partner_name"`
	Acronym         string `json:"acronym,omitempty"`
	InstitutionType string `json:"institution_type,omitempty"`
	Website         string `json:"web_page,omitempty"`
	CountryID       string `json:"country_id,omitempty"`
}

// NewInstitutionRecord trims every field and rejects records without an id or a name.
func NewInstitutionRecord(id, name, acronym, instType, website, country string) (InstitutionRecord, error) {
	r := InstitutionRecord{
		ID:              strings.TrimSpace(id),
		Name:            strings.TrimSpace(name),
		Acronym:         strings.TrimSpace(acronym),
		InstitutionType: strings.TrimSpace(instType),
		Website:         strings.TrimSpace(website),
		CountryID:       strings.TrimSpace(country),
	}
	var missing []string
	if r.ID == "" {
		missing = append(missing, "id")
	}
	if r.Name == "" {
		missing = append(missing, "partner_name")
	}
	if len(missing) > 0 {
		return InstitutionRecord{}, &MissingFieldError{Fields: missing}
	}
	return r, nil
}

// MissingFieldError lists the required fields a record lacks. It matches ErrMissingField.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// ReferenceEntry is a registry institution with its precomputed embedding.
type ReferenceEntry struct {
	InstitutionRecord
	ReferenceID string    `json:"reference_id"`
	Embedding   []float32 `json:"embedding_vector,omitempty"`
}

func NewReferenceEntry(rec InstitutionRecord, referenceID string, embedding []float32) (ReferenceEntry, error) {
	referenceID = strings.TrimSpace(referenceID)
	if referenceID == "" {
		return ReferenceEntry{}, fmt.Errorf("%w: reference_id", ErrMissingField)
	}
	if strings.TrimSpace(rec.Name) == "" {
		return ReferenceEntry{}, fmt.Errorf("%w: reference %s has no name", ErrInvalidRecord, referenceID)
	}
	return ReferenceEntry{InstitutionRecord: rec, ReferenceID: referenceID, Embedding: embedding}, nil
}

func (e ReferenceEntry) HasEmbedding() bool { return len(e.Embedding) > 0 }

// MatchSignals records which checks fired for one uploaded/reference pair.
type MatchSignals struct {
	ExactName          bool    `json:"exact_name"`
	CoreName           bool    `json:"core_name"`
	VariantName        bool    `json:"variant_name"`
	AcronymSimilarity  float64 `json:"acronym_similarity"`
	URLExact           bool    `json:"url_exact"`
	KeywordScore       float64 `json:"keyword_score"`
	SemanticSimilarity float64 `json:"semantic_combined_similarity"`
	SameCountry        bool    `json:"same_country"`
}

type MatchCandidate struct {
	ReferenceID string       `json:"reference_id"`
	Similarity  float64      `json:"similarity"` // 0..1
	Signals     MatchSignals `json:"signals"`
	MatchType   MatchType    `json:"match_type"`
	Explanation string       `json:"explanation"`
}

type ClassificationResult struct {
	Status             Status  `json:"status"`
	Similarity         float64 `json:"similarity"`
	Reason             string  `json:"reason"`
	MatchedReferenceID string  `json:"matched_reference_id,omitempty"` // empty for no_match
}

// RankedMatch is one registry entry from a ranking query.
type RankedMatch struct {
	ReferenceID string  `json:"reference_id"`
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	Strategy    string  `json:"strategy"`
}

type RecordResult struct {
	Row                int           `json:"row,omitempty"` // spreadsheet line, 1-based
	ID                 string        `json:"id"`
	InstitutionName    string        `json:"institution_name"`
	Acronym            string        `json:"acronym"`
	Status             Status        `json:"status"`
	Similarity         float64       `json:"similarity"`
	MatchedReferenceID string        `json:"matched_reference_id,omitempty"`
	Reason             string        `json:"reason"`
	WebPage            string        `json:"web_page"`
	Type               string        `json:"type"`
	Country            string        `json:"country"`
	Alternatives       []RankedMatch `json:"alternatives,omitempty"`
}

type RowError struct {
	Row     int    `json:"row,omitempty"` // spreadsheet line, 1-based
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

func (e RowError) String() string {
	switch {
	case e.Row > 0:
		return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
	case e.ID != "":
		return fmt.Sprintf("Row %s: %s", e.ID, e.Message)
	default:
		return e.Message
	}
}

type Progress struct {
	Processed           int        `json:"processed"`
	Total               int        `json:"total"`
	Duplicates          int        `json:"duplicates"`
	PotentialDuplicates int        `json:"potential_duplicates"`
	NoMatch             int        `json:"no_match"`
	Errors              []RowError `json:"errors"`
}

type BatchResult struct {
	FileID       string         `json:"file_id"`
	Filename     string         `json:"filename,omitempty"`
	TotalRecords int            `json:"total_records"`
	Results      []RecordResult `json:"results"`
	Progress     Progress       `json:"progress"`
}

// AnalysisSummary describes a stored batch analysis without its records.
type AnalysisSummary struct {
	FileID              string    `json:"file_id"`
	Filename            string    `json:"filename,omitempty"`
	TotalRecords        int       `json:"total_records"`
	Processed           int       `json:"processed"`
	Duplicates          int       `json:"duplicates"`
	PotentialDuplicates int       `json:"potential_duplicates"`
	NoMatch             int       `json:"no_match"`
	Errors              int       `json:"errors"`
	CreatedAt           time.Time `json:"created_at"`
}

// UploadRow is an uploaded record with its spreadsheet line.
type UploadRow struct {
	Line   int
	Record InstitutionRecord
}
