package in

import (
	"context"

	"tracker_server/core/domain"

	"github.com/google/uuid"
)

// SyncUseCase defines the inbound port for application tracking sync.
type SyncUseCase interface {
	// Sync pulls recent mail for the user and records new job applications.
	Sync(ctx context.Context, userID uuid.UUID, opts *domain.SyncOptions) (*domain.SyncSummary, error)

	// Status reports whether the user has a connected mailbox and when it last synced.
	Status(ctx context.Context, userID uuid.UUID) (*domain.SyncStatus, error)
}
