package persistence

import (
	"context"
	"time"

	"tracker_server/core/port/out"

	"github.com/jackc/pgx/v5/pgxpool"
)

// =============================================================================
// SyncStateAdapter - finished sync runs per user
// =============================================================================

type SyncStateAdapter struct {
	pool *pgxpool.Pool
}

func NewSyncStateAdapter(pool *pgxpool.Pool) *SyncStateAdapter {
	return &SyncStateAdapter{pool: pool}
}

func (a *SyncStateAdapter) RecordSync(ctx context.Context, run *out.SyncRunEntity) error {
	query := `
		INSERT INTO sync_runs (
			user_id, started_at, finished_at, total_emails, job_emails,
			new_applications, duplicates, errors
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := a.pool.Exec(ctx, query,
		run.UserID, run.StartedAt, run.FinishedAt, run.TotalEmails, run.JobEmails,
		run.NewApplications, run.Duplicates, run.Errors,
	)
	return err
}

func (a *SyncStateAdapter) GetLastSync(ctx context.Context, userID string) (*time.Time, error) {
	var last *time.Time
	err := a.pool.QueryRow(ctx,
		`SELECT MAX(finished_at) FROM sync_runs WHERE user_id = $1`, userID,
	).Scan(&last)
	if err != nil {
		return nil, err
	}
	return last, nil
}

var _ out.SyncStateRepository = (*SyncStateAdapter)(nil)
