package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/core/port/out"
	"tracker_server/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	defaultRefreshSkew    = 5 * time.Minute
	defaultRefreshTimeout = 15 * time.Second
)

type CredentialManagerConfig struct {
	RefreshSkew    time.Duration
	RefreshTimeout time.Duration
}

// CredentialManager hands out valid credentials, refreshing expired access tokens.
// Concurrent refreshes for the same user collapse into one provider call.
type CredentialManager struct {
	repo      out.CredentialRepository
	refresher out.TokenRefresher
	flight    singleflight.Group

	refreshSkew    time.Duration
	refreshTimeout time.Duration
	now            func() time.Time
}

var _ in.ConnectionUseCase = (*CredentialManager)(nil)

func NewCredentialManager(repo out.CredentialRepository, refresher out.TokenRefresher, cfg CredentialManagerConfig) *CredentialManager {
	if cfg.RefreshSkew <= 0 {
		cfg.RefreshSkew = defaultRefreshSkew
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = defaultRefreshTimeout
	}
	return &CredentialManager{
		repo:           repo,
		refresher:      refresher,
		refreshSkew:    cfg.RefreshSkew,
		refreshTimeout: cfg.RefreshTimeout,
		now:            time.Now,
	}
}

// EnsureValid returns a credential whose access token is not expired.
// Any failure is a *domain.CredentialError.
func (m *CredentialManager) EnsureValid(ctx context.Context, userID uuid.UUID) (*domain.Credential, error) {
	cred, err := m.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !cred.IsExpired(m.now(), m.refreshSkew) {
		return cred, nil
	}

	v, err, shared := m.flight.Do(userID.String(), func() (any, error) {
		return m.refresh(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("[CredentialManager.EnsureValid] joined in-flight refresh for user %s", userID)
	}

	// Callers sharing a flight must not alias one another's credential.
	refreshed := *v.(*domain.Credential)
	return &refreshed, nil
}

// Lookup returns the stored credential without refreshing it. A missing credential returns nil, nil.
func (m *CredentialManager) Lookup(ctx context.Context, userID uuid.UUID) (*domain.Credential, error) {
	entity, err := m.repo.GetCredential(ctx, userID.String())
	if errors.Is(err, domain.ErrCredentialNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get credential", Err: err}
	}
	return toDomainCredential(entity), nil
}

// Disconnect destroys the user's credential.
func (m *CredentialManager) Disconnect(ctx context.Context, userID uuid.UUID) error {
	err := m.repo.Delete(ctx, userID.String())
	if errors.Is(err, domain.ErrCredentialNotFound) {
		return err
	}
	if err != nil {
		return &domain.PersistenceError{Op: "delete credential", Err: err}
	}
	logger.Info("[CredentialManager.Disconnect] credential removed for user %s", userID)
	return nil
}

func (m *CredentialManager) load(ctx context.Context, userID uuid.UUID) (*domain.Credential, error) {
	cred, err := m.Lookup(ctx, userID)
	if err != nil {
		return nil, &domain.CredentialError{UserID: userID.String(), Reason: domain.CredentialNotConnected, Err: err}
	}
	if cred == nil {
		return nil, &domain.CredentialError{UserID: userID.String(), Reason: domain.CredentialNotConnected, Err: domain.ErrCredentialNotFound}
	}
	if !cred.IsConnected {
		return nil, &domain.CredentialError{UserID: userID.String(), Reason: domain.CredentialNotConnected}
	}
	return cred, nil
}

func (m *CredentialManager) refresh(ctx context.Context, userID uuid.UUID) (*domain.Credential, error) {
	// The flight outlives any single caller, so it gets its own deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.refreshTimeout)
	defer cancel()

	// A flight that finished just before this one may already have stored a fresh token.
	cred, err := m.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !cred.IsExpired(m.now(), m.refreshSkew) {
		return cred, nil
	}
	if !cred.CanRefresh() {
		m.markDisconnected(ctx, userID)
		return nil, &domain.CredentialError{UserID: userID.String(), Reason: domain.CredentialRefreshFailed, Err: errors.New("no refresh token")}
	}

	start := m.now()
	token, err := m.refresher.RefreshToken(ctx, &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.ExpiresAt,
		TokenType:    "Bearer",
	})
	if err != nil {
		if isPermanentRefreshError(err) {
			logger.Warn("[CredentialManager.refresh] token revoked for user %s, marking as disconnected: %v", userID, err)
			m.markDisconnected(ctx, userID)
		}
		return nil, &domain.CredentialError{UserID: userID.String(), Reason: domain.CredentialRefreshFailed, Err: err}
	}

	cred.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		cred.RefreshToken = token.RefreshToken
	}
	cred.ExpiresAt = token.Expiry
	cred.UpdatedAt = m.now()

	if err := m.repo.SaveCredential(ctx, toCredentialEntity(cred)); err != nil {
		return nil, &domain.CredentialError{
			UserID: userID.String(),
			Reason: domain.CredentialRefreshFailed,
			Err:    fmt.Errorf("failed to store refreshed token: %w", err),
		}
	}

	logger.WithDuration(m.now().Sub(start)).Debug("[CredentialManager.refresh] token refreshed for user %s", userID)
	return cred, nil
}

func (m *CredentialManager) markDisconnected(ctx context.Context, userID uuid.UUID) {
	if err := m.repo.MarkDisconnected(ctx, userID.String()); err != nil {
		logger.Error("[CredentialManager.markDisconnected] failed to update credential for user %s: %v", userID, err)
	}
}

// isPermanentRefreshError reports whether the refresh token itself is no longer usable.
func isPermanentRefreshError(err error) bool {
	var pe *out.ProviderError
	if errors.As(err, &pe) && (pe.Code == out.ProviderErrInvalidGrant || pe.Code == out.ProviderErrAuth) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "invalid_client") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "Token has been expired or revoked") ||
		strings.Contains(errStr, "Token has been revoked")
}

func toCredentialEntity(cred *domain.Credential) *out.CredentialEntity {
	return &out.CredentialEntity{
		UserID:       cred.UserID.String(),
		Email:        cred.Email,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		ExpiresAt:    cred.ExpiresAt,
		Scopes:       cred.Scopes,
		IsConnected:  cred.IsConnected,
		UpdatedAt:    cred.UpdatedAt,
	}
}

func toDomainCredential(entity *out.CredentialEntity) *domain.Credential {
	userID, _ := uuid.Parse(entity.UserID)
	return &domain.Credential{
		UserID:       userID,
		Email:        entity.Email,
		AccessToken:  entity.AccessToken,
		RefreshToken: entity.RefreshToken,
		ExpiresAt:    entity.ExpiresAt,
		Scopes:       entity.Scopes,
		IsConnected:  entity.IsConnected,
		UpdatedAt:    entity.UpdatedAt,
	}
}
