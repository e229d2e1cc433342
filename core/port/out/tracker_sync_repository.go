package out

import (
	"context"
	"time"
)

// SyncStateRepository records finished sync runs per user.
type SyncStateRepository interface {
	RecordSync(ctx context.Context, run *SyncRunEntity) error

	// GetLastSync returns when the user's last sync finished, or nil if never.
	GetLastSync(ctx context.Context, userID string) (*time.Time, error)
}

type SyncRunEntity struct {
	UserID          string
	StartedAt       time.Time
	FinishedAt      time.Time
	TotalEmails     int
	JobEmails       int
	NewApplications int
	Duplicates      int
	Errors          int
}
