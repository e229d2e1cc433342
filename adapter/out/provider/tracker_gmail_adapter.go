// Package provider implements mail provider adapters.
package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/mail"
	"strings"
	"time"

	"tracker_server/core/port/out"
	"tracker_server/pkg/httputil"
	"tracker_server/pkg/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	providerName      = "gmail"
	defaultPageSize   = 100
	maxGmailPageSize  = 500
	serviceCallBudget = 30 * time.Second
)

// GmailAdapter implements out.MailProviderPort and out.TokenRefresher for Gmail.
type GmailAdapter struct {
	config *oauth2.Config
	cb     *gobreaker.CircuitBreaker
}

// GmailConfig holds Gmail OAuth client configuration.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// NewGmailAdapter creates a new Gmail adapter.
func NewGmailAdapter(cfg *GmailConfig) *GmailAdapter {
	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{gmail.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,                // requests allowed while half-open
		Interval:    60 * time.Second, // closed-state counter reset
		Timeout:     30 * time.Second, // open-state duration
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			var nce *nonCircuitError
			return err == nil || errors.As(err, &nce)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &GmailAdapter{
		config: config,
		cb:     gobreaker.NewCircuitBreaker(cbSettings),
	}
}

// =============================================================================
// Authentication
// =============================================================================

// RefreshToken exchanges the refresh token for a new access token.
func (a *GmailAdapter) RefreshToken(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httputil.GmailClient())

	// An expired copy forces the token source to hit the endpoint.
	expired := &oauth2.Token{
		RefreshToken: token.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}
	newToken, err := a.config.TokenSource(ctx, expired).Token()
	if err != nil {
		return nil, wrapRefreshError(err)
	}
	return newToken, nil
}

// =============================================================================
// Message Reading
// =============================================================================

// SearchMessages returns one page of message IDs matching opts.Query.
func (a *GmailAdapter) SearchMessages(ctx context.Context, token *oauth2.Token, opts *out.ProviderSearchOptions) (*out.ProviderSearchPage, error) {
	svc, err := a.getService(ctx, token)
	if err != nil {
		return nil, err
	}

	pageSize := int64(defaultPageSize)
	if opts != nil && opts.PageSize > 0 {
		pageSize = int64(min(opts.PageSize, maxGmailPageSize))
	}

	req := svc.Users.Messages.List("me").MaxResults(pageSize)
	if opts != nil {
		if opts.Query != "" {
			req = req.Q(opts.Query)
		}
		if opts.PageToken != "" {
			req = req.PageToken(opts.PageToken)
		}
	}

	var resp *gmail.ListMessagesResponse
	cbErr := a.executeWithCircuitBreaker("SearchMessages", func() error {
		var apiErr error
		resp, apiErr = req.Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return nil, wrapError(cbErr, "failed to list messages")
	}

	page := &out.ProviderSearchPage{
		MessageIDs:    make([]string, 0, len(resp.Messages)),
		NextPageToken: resp.NextPageToken,
	}
	for _, m := range resp.Messages {
		page.MessageIDs = append(page.MessageIDs, m.Id)
	}
	return page, nil
}

// GetMessage retrieves a single message in full format.
func (a *GmailAdapter) GetMessage(ctx context.Context, token *oauth2.Token, externalID string) (*out.ProviderMailMessage, error) {
	svc, err := a.getService(ctx, token)
	if err != nil {
		return nil, err
	}

	var msg *gmail.Message
	cbErr := a.executeWithCircuitBreaker("GetMessage", func() error {
		var apiErr error
		msg, apiErr = svc.Users.Messages.Get("me", externalID).Format("full").Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return nil, wrapError(cbErr, "failed to get message")
	}

	return convertMessage(msg), nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

func (a *GmailAdapter) getService(ctx context.Context, token *oauth2.Token) (*gmail.Service, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, serviceCallBudget)
		defer cancel()
	}

	// The credential manager owns refresh; the service only ever sees the current access token.
	httpCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httputil.GmailClient())
	client := oauth2.NewClient(httpCtx, oauth2.StaticTokenSource(token))

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, out.NewProviderError(providerName, out.ProviderErrServer, "failed to create gmail service", err, false)
	}
	return svc, nil
}

// executeWithCircuitBreaker wraps an API call with circuit breaker protection.
// Client errors pass through without counting against the breaker.
func (a *GmailAdapter) executeWithCircuitBreaker(operation string, fn func() error) error {
	_, err := a.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) {
				switch apiErr.Code {
				case 400, 401, 403, 404:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		return nce.err
	}

	if err != nil {
		logger.Warn("[GmailAdapter] circuit breaker error for %s: state=%s, err=%v",
			operation, a.cb.State().String(), err)
	}
	return err
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

// GetCircuitBreakerState returns the current state of the circuit breaker.
func (a *GmailAdapter) GetCircuitBreakerState() string {
	return a.cb.State().String()
}

func convertMessage(msg *gmail.Message) *out.ProviderMailMessage {
	result := &out.ProviderMailMessage{
		ExternalID: msg.Id,
		Snippet:    msg.Snippet,
	}
	if msg.InternalDate > 0 {
		result.ReceivedAt = time.UnixMilli(msg.InternalDate).UTC()
	}

	if msg.Payload == nil {
		return result
	}

	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "Subject":
			result.Subject = h.Value
		case "From":
			result.From = h.Value
		case "Date":
			if result.ReceivedAt.IsZero() {
				if t, err := mail.ParseDate(h.Value); err == nil {
					result.ReceivedAt = t.UTC()
				}
			}
		}
	}

	extractBody(msg.Payload, result)
	return result
}

// extractBody walks the MIME tree, keeping the first text/plain and text/html parts.
// Attachments are skipped.
func extractBody(part *gmail.MessagePart, msg *out.ProviderMailMessage) {
	if part == nil || part.Filename != "" {
		return
	}

	if part.Body != nil && part.Body.Data != "" {
		switch part.MimeType {
		case "text/plain":
			if msg.BodyText == "" {
				msg.BodyText = decodeBody(part.Body.Data)
			}
		case "text/html":
			if msg.BodyHTML == "" {
				msg.BodyHTML = decodeBody(part.Body.Data)
			}
		}
	}

	for _, p := range part.Parts {
		extractBody(p, msg)
	}
}

func decodeBody(data string) string {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	logger.Debug("[GmailAdapter.decodeBody] undecodable body part (%d bytes)", len(data))
	return ""
}

func wrapError(err error, defaultMsg string) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401:
			return out.NewProviderError(providerName, out.ProviderErrTokenExpired, "Token expired", err, false)
		case 403:
			if strings.Contains(apiErr.Message, "Rate Limit") {
				return out.NewProviderError(providerName, out.ProviderErrRateLimit, "Rate limit exceeded", err, true)
			}
			return out.NewProviderError(providerName, out.ProviderErrAuth, "Access denied", err, false)
		case 404:
			return out.NewProviderError(providerName, out.ProviderErrNotFound, "Not found", err, false)
		case 429:
			return out.NewProviderError(providerName, out.ProviderErrRateLimit, "Too many requests", err, true)
		case 500, 502, 503:
			return out.NewProviderError(providerName, out.ProviderErrServer, "Server error", err, true)
		}
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return out.NewProviderError(providerName, out.ProviderErrServer, "Circuit open", err, true)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return out.NewProviderError(providerName, out.ProviderErrNetwork, defaultMsg, err, true)
	}

	return out.NewProviderError(providerName, out.ProviderErrServer, defaultMsg, err, true)
}

// wrapRefreshError separates revoked grants from transient endpoint failures.
func wrapRefreshError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorCode == "invalid_grant" || strings.Contains(string(re.Body), "invalid_grant") {
			return out.NewProviderError(providerName, out.ProviderErrInvalidGrant, "Refresh token revoked", err, false)
		}
		if re.Response != nil {
			switch code := re.Response.StatusCode; {
			case code == 400 || code == 401:
				return out.NewProviderError(providerName, out.ProviderErrAuth, "Refresh rejected", err, false)
			case code == 429 || code >= 500:
				return out.NewProviderError(providerName, out.ProviderErrServer, "Token endpoint unavailable", err, true)
			}
		}
	}
	return out.NewProviderError(providerName, out.ProviderErrNetwork, "failed to refresh token", err, true)
}

// =============================================================================
// Interface Compliance
// =============================================================================

var (
	_ out.MailProviderPort = (*GmailAdapter)(nil)
	_ out.TokenRefresher   = (*GmailAdapter)(nil)
)
