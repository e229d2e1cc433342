package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncOptions are caller-supplied knobs for one sync run.
type SyncOptions struct {
	MaxResults int        `json:"max_results,omitempty"`
	AfterDate  *time.Time `json:"after_date,omitempty"`
}

// SyncSummary is returned by a completed sync run.
// JobEmails counts job-related messages that passed the duplicate check.
type SyncSummary struct {
	TotalEmails     int                  `json:"totalEmails"`
	JobEmails       int                  `json:"jobEmails"`
	NewApplications int                  `json:"newApplications"`
	Duplicates      int                  `json:"duplicates"`
	Errors          int                  `json:"errors"`
	CreatedRecords  []*ApplicationRecord `json:"createdRecords,omitempty"`
	Truncated       bool                 `json:"truncated,omitempty"`

	// MatchedDuplicates holds skipped candidates with IsDuplicateOf set.
	MatchedDuplicates []*CandidateRecord `json:"matchedDuplicates,omitempty"`
}

// SyncStatus describes a user's mail connection.
type SyncStatus struct {
	Connected bool       `json:"connected"`
	Email     string     `json:"email,omitempty"`
	LastSync  *time.Time `json:"lastSync,omitempty"`
}

// SyncRun is the stored record of one sync run.
type SyncRun struct {
	UserID     uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    SyncSummary
}
