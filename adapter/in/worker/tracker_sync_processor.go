// Package worker runs queued sync jobs.
package worker

import (
	"context"
	"errors"
	"fmt"

	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/core/port/out"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SyncProcessor turns a queued job into a Sync call.
type SyncProcessor struct {
	sync in.SyncUseCase
	log  zerolog.Logger
}

func NewSyncProcessor(sync in.SyncUseCase, log zerolog.Logger) *SyncProcessor {
	return &SyncProcessor{
		sync: sync,
		log:  log.With().Str("component", "sync_processor").Logger(),
	}
}

func (p *SyncProcessor) Process(ctx context.Context, job *out.SyncJob) error {
	userID, err := uuid.Parse(job.UserID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", job.UserID, err)
	}

	summary, err := p.sync.Sync(ctx, userID, &domain.SyncOptions{
		MaxResults: job.MaxResults,
		AfterDate:  job.AfterDate,
	})
	if err != nil {
		return err
	}

	p.log.Info().
		Str("job_id", job.JobID).
		Str("user_id", job.UserID).
		Int("total", summary.TotalEmails).
		Int("new", summary.NewApplications).
		Int("duplicates", summary.Duplicates).
		Int("errors", summary.Errors).
		Bool("truncated", summary.Truncated).
		Msg("sync job finished")
	return nil
}

// IsRetryable reports whether a failed job may succeed on another attempt.
// Only transient mail provider failures qualify; credential errors need the user.
func IsRetryable(err error) bool {
	var mpe *domain.MailProviderError
	if errors.As(err, &mpe) {
		return mpe.Retryable
	}
	return false
}
