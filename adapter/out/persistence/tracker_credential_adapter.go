// Package persistence provides database adapters.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/pkg/crypto"
	"tracker_server/pkg/logger"

	"github.com/jmoiron/sqlx"
)

// CredentialAdapter implements out.CredentialRepository using PostgreSQL.
type CredentialAdapter struct {
	db        *sqlx.DB
	encryptor *crypto.Encryptor
}

// NewCredentialAdapter creates a new CredentialAdapter. A nil encryptor stores tokens as given.
func NewCredentialAdapter(db *sqlx.DB, encryptor *crypto.Encryptor) *CredentialAdapter {
	if encryptor == nil {
		logger.Warn("Token encryption disabled: no ENCRYPTION_KEY configured")
	}
	return &CredentialAdapter{db: db, encryptor: encryptor}
}

func (a *CredentialAdapter) encryptToken(token string) (string, error) {
	if a.encryptor == nil || token == "" {
		return token, nil
	}
	return a.encryptor.Encrypt(token)
}

// decryptToken passes through values that were stored before encryption was enabled.
func (a *CredentialAdapter) decryptToken(token string) string {
	if a.encryptor == nil || !crypto.IsEncrypted(token) {
		return token
	}
	decrypted, err := a.encryptor.Decrypt(token)
	if err != nil {
		return token
	}
	return decrypted
}

// GetCredential returns the user's credential or domain.ErrCredentialNotFound.
func (a *CredentialAdapter) GetCredential(ctx context.Context, userID string) (*out.CredentialEntity, error) {
	var entity out.CredentialEntity
	query := `
		SELECT user_id, email, access_token, refresh_token, expires_at,
		       scopes, is_connected, created_at, updated_at
		FROM mail_credentials
		WHERE user_id = $1`

	if err := a.db.GetContext(ctx, &entity, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, err
	}

	entity.AccessToken = a.decryptToken(entity.AccessToken)
	entity.RefreshToken = a.decryptToken(entity.RefreshToken)
	return &entity, nil
}

// SaveCredential upserts the credential keyed by user.
func (a *CredentialAdapter) SaveCredential(ctx context.Context, entity *out.CredentialEntity) error {
	accessToken, err := a.encryptToken(entity.AccessToken)
	if err != nil {
		return err
	}
	refreshToken, err := a.encryptToken(entity.RefreshToken)
	if err != nil {
		return err
	}

	now := time.Now()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	entity.UpdatedAt = now

	query := `
		INSERT INTO mail_credentials (
			user_id, email, access_token, refresh_token, expires_at,
			scopes, is_connected, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			scopes = EXCLUDED.scopes,
			is_connected = EXCLUDED.is_connected,
			updated_at = EXCLUDED.updated_at`

	_, err = a.db.ExecContext(ctx, query,
		entity.UserID, entity.Email, accessToken, refreshToken, entity.ExpiresAt,
		entity.Scopes, entity.IsConnected, entity.CreatedAt, entity.UpdatedAt,
	)
	return err
}

func (a *CredentialAdapter) MarkDisconnected(ctx context.Context, userID string) error {
	query := `UPDATE mail_credentials SET is_connected = false, updated_at = $2 WHERE user_id = $1`
	result, err := a.db.ExecContext(ctx, query, userID, time.Now())
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrCredentialNotFound)
}

func (a *CredentialAdapter) Delete(ctx context.Context, userID string) error {
	result, err := a.db.ExecContext(ctx, `DELETE FROM mail_credentials WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrCredentialNotFound)
}

func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

var _ out.CredentialRepository = (*CredentialAdapter)(nil)
