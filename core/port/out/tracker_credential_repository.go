package out

import (
	"context"
	"time"

	"github.com/lib/pq"
)

// CredentialRepository defines the outbound port for mail credential persistence.
// Tokens are stored encrypted; implementations decrypt on read.
type CredentialRepository interface {
	// GetCredential returns the user's credential, or domain.ErrCredentialNotFound.
	GetCredential(ctx context.Context, userID string) (*CredentialEntity, error)

	// SaveCredential inserts or replaces the user's credential.
	SaveCredential(ctx context.Context, entity *CredentialEntity) error

	// MarkDisconnected flags the credential as unusable without deleting it.
	MarkDisconnected(ctx context.Context, userID string) error

	// Delete removes the credential, or returns domain.ErrCredentialNotFound.
	Delete(ctx context.Context, userID string) error
}

// CredentialEntity represents a mail credential in persistence.
type CredentialEntity struct {
	UserID       string         `db:"user_id"`
	Email        string         `db:"email"`
	AccessToken  string         `db:"access_token"`
	RefreshToken string         `db:"refresh_token"`
	ExpiresAt    time.Time      `db:"expires_at"`
	Scopes       pq.StringArray `db:"scopes"`
	IsConnected  bool           `db:"is_connected"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}
