package in

import (
	"context"

	"github.com/google/uuid"
)

// ConnectionUseCase manages a user's stored mailbox credential.
type ConnectionUseCase interface {
	// Disconnect destroys the credential. A user with none gets domain.ErrCredentialNotFound.
	Disconnect(ctx context.Context, userID uuid.UUID) error
}
