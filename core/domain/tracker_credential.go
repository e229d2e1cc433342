package domain

import (
	"time"

	"github.com/google/uuid"
)

// Credential is a user's mail provider OAuth credential.
type Credential struct {
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scopes       []string  `json:"scopes,omitempty"`
	IsConnected  bool      `json:"is_connected"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsExpired reports whether the access token is expired, or will be within skew.
// A zero expiry counts as expired.
func (c *Credential) IsExpired(now time.Time, skew time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return !now.Add(skew).Before(c.ExpiresAt)
}

// CanRefresh reports whether the credential carries a refresh token.
func (c *Credential) CanRefresh() bool {
	return c.RefreshToken != ""
}
