package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// =============================================================================
// Application Status
// =============================================================================

type ApplicationStatus string

const (
	StatusApplied   ApplicationStatus = "Applied"
	StatusInterview ApplicationStatus = "Interview"
	StatusOffer     ApplicationStatus = "Offer"
	StatusRejected  ApplicationStatus = "Rejected"
)

var applicationStatuses = []ApplicationStatus{StatusApplied, StatusInterview, StatusOffer, StatusRejected}

// ParseApplicationStatus maps s onto a canonical status, ignoring case and surrounding space.
func ParseApplicationStatus(s string) (ApplicationStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range applicationStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

func (s ApplicationStatus) IsValid() bool {
	for _, st := range applicationStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// =============================================================================
// Extraction
// =============================================================================

// ExtractionSource records what produced an ExtractionResult.
type ExtractionSource string

const (
	SourceModel     ExtractionSource = "model"     // inference service
	SourceHeuristic ExtractionSource = "heuristic" // local rules, no confidence bonus
)

// ExtractionResult is the validated structured output for one message.
// When IsJobRelated is true every field is present and Status is canonical.
type ExtractionResult struct {
	IsJobRelated bool              `json:"isJobRelated"`
	Company      string            `json:"company,omitempty"`
	Title        string            `json:"title,omitempty"`
	Status       ApplicationStatus `json:"status,omitempty"`
	Location     string            `json:"location,omitempty"`
	Source       ExtractionSource  `json:"source,omitempty"`
}

// Validate checks the contract for a decoded result. Non-job results carry no fields to check.
func (r *ExtractionResult) Validate() error {
	if !r.IsJobRelated {
		return nil
	}
	for _, f := range []struct{ name, value string }{
		{"company", r.Company},
		{"title", r.Title},
		{"location", r.Location},
	} {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.name, Reason: "blank"}
		}
	}
	if !r.Status.IsValid() {
		return &ValidationError{Field: "status", Reason: "not a canonical status: " + string(r.Status)}
	}
	return nil
}

type ExtractionKind int

const (
	ExtractionUnavailable ExtractionKind = iota
	ExtractionNotJobRelated
	ExtractionExtracted
)

func (k ExtractionKind) String() string {
	switch k {
	case ExtractionExtracted:
		return "extracted"
	case ExtractionNotJobRelated:
		return "not_job_related"
	default:
		return "unavailable"
	}
}

// ExtractionOutcome is what the extractor returns for a message. It never carries an error:
// failures are reported as ExtractionUnavailable with a Reason.
type ExtractionOutcome struct {
	Kind      ExtractionKind
	Result    *ExtractionResult
	FromCache bool
	Reason    string
}

func (o ExtractionOutcome) IsJobApplication() bool {
	return o.Kind == ExtractionExtracted && o.Result != nil && o.Result.IsJobRelated
}

// =============================================================================
// Records
// =============================================================================

// CandidateRecord is an application about to be persisted.
type CandidateRecord struct {
	UserID          uuid.UUID         `json:"user_id"`
	Company         string            `json:"company"`
	Title           string            `json:"title"`
	Status          ApplicationStatus `json:"status"`
	Location        string            `json:"location"`
	DateApplied     time.Time         `json:"date_applied"`
	SourceMessageID string            `json:"source_message_id"`
	Confidence      int               `json:"confidence"`

	// IsDuplicateOf is the ID of the stored record this candidate matched, if any.
	IsDuplicateOf *int64 `json:"is_duplicate_of,omitempty"`
}

// MatchKey is the string fuzzy duplicate matching compares.
func (c *CandidateRecord) MatchKey() string {
	return NormalizeText(c.Company + " " + c.Title)
}

// ApplicationRecord is a persisted application.
type ApplicationRecord struct {
	ID int64 `json:"id"`
	CandidateRecord
	CreatedAt time.Time `json:"created_at"`
}

// DuplicateVerdict is the result of checking a candidate against stored records.
type DuplicateVerdict struct {
	IsDuplicate     bool    `json:"is_duplicate"`
	MatchedRecordID *int64  `json:"matched_record_id,omitempty"`
	Similarity      float64 `json:"similarity"`
	Reason          string  `json:"reason,omitempty"`
}

// NormalizeText lowercases s, drops punctuation and collapses whitespace.
func NormalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}
