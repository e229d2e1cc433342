package out

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// MailProviderPort is the read-only mail provider surface the fetcher uses.
type MailProviderPort interface {
	// SearchMessages returns one page of message IDs matching the query.
	SearchMessages(ctx context.Context, token *oauth2.Token, opts *ProviderSearchOptions) (*ProviderSearchPage, error)

	// GetMessage returns the full message with its decoded body parts.
	GetMessage(ctx context.Context, token *oauth2.Token, externalID string) (*ProviderMailMessage, error)
}

// TokenRefresher exchanges a refresh token for a new access token.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)
}

type ProviderSearchOptions struct {
	Query     string
	PageToken string
	PageSize  int
}

type ProviderSearchPage struct {
	MessageIDs    []string
	NextPageToken string
}

// ProviderMailMessage is a fetched message. BodyText and BodyHTML may both be set.
type ProviderMailMessage struct {
	ExternalID string
	From       string
	Subject    string
	Snippet    string
	BodyText   string
	BodyHTML   string
	ReceivedAt time.Time
}

// =============================================================================
// Provider Errors
// =============================================================================

// ProviderErrorCode represents error codes.
type ProviderErrorCode string

const (
	ProviderErrAuth         ProviderErrorCode = "auth_error"
	ProviderErrTokenExpired ProviderErrorCode = "token_expired"
	ProviderErrRateLimit    ProviderErrorCode = "rate_limit"
	ProviderErrNotFound     ProviderErrorCode = "not_found"
	ProviderErrNetwork      ProviderErrorCode = "network_error"
	ProviderErrServer       ProviderErrorCode = "server_error"
	ProviderErrInvalidGrant ProviderErrorCode = "invalid_grant"
)

// ProviderError represents a provider error.
type ProviderError struct {
	Provider  string
	Code      ProviderErrorCode
	Message   string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new provider error.
func NewProviderError(provider string, code ProviderErrorCode, message string, err error, retryable bool) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Err:       err,
		Retryable: retryable,
	}
}
