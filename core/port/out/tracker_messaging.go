package out

import (
	"context"
	"time"
)

// SyncJobPublisher enqueues sync runs for the background worker.
type SyncJobPublisher interface {
	PublishSync(ctx context.Context, job *SyncJob) (string, error)
}

// SyncJob is the queued form of a sync request.
type SyncJob struct {
	JobID      string     `json:"job_id"`
	UserID     string     `json:"user_id"`
	MaxResults int        `json:"max_results,omitempty"`
	AfterDate  *time.Time `json:"after_date,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
