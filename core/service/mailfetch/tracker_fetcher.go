// Package mailfetch lists and downloads candidate job-application mail from the provider.
package mailfetch

import (
	"context"
	"errors"
	"strings"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/pkg/logger"

	"golang.org/x/oauth2"
)

const (
	DefaultMaxResults = 50
	defaultPageSize   = 100
	providerPageLimit = 500
)

// SearchKeywords are OR'd into the provider query. Phrases are quoted.
var SearchKeywords = []string{
	"application",
	"applied",
	"interview",
	"offer",
	"rejected",
	"position",
	"role",
	"candidate",
	"recruiter",
	"hiring",
	`"thank you for applying"`,
	`"next steps"`,
}

// FetchQuery selects which messages to fetch. An empty Query is built from SearchKeywords.
type FetchQuery struct {
	Query      string
	MaxResults int
	AfterDate  *time.Time
}

type FetcherConfig struct {
	PageSize     int
	FetchTimeout time.Duration
}

// Fetcher reads messages through a MailProviderPort.
type Fetcher struct {
	provider     out.MailProviderPort
	pageSize     int
	fetchTimeout time.Duration
}

func NewFetcher(provider out.MailProviderPort, cfg FetcherConfig) *Fetcher {
	if cfg.PageSize <= 0 || cfg.PageSize > providerPageLimit {
		cfg.PageSize = defaultPageSize
	}
	return &Fetcher{
		provider:     provider,
		pageSize:     cfg.PageSize,
		fetchTimeout: cfg.FetchTimeout,
	}
}

// KeywordQuery ORs SearchKeywords into one provider expression.
func KeywordQuery() string {
	return "(" + strings.Join(SearchKeywords, " OR ") + ")"
}

// DateBound restricts a search to messages received on or after afterDate.
func DateBound(afterDate time.Time) string {
	return "after:" + afterDate.UTC().Format("2006/01/02")
}

// BuildQuery returns the keyword expression, bounded by afterDate when it is set.
func BuildQuery(afterDate *time.Time) string {
	if afterDate == nil {
		return KeywordQuery()
	}
	return KeywordQuery() + " " + DateBound(*afterDate)
}

// Fetch returns up to MaxResults messages, newest first as the provider orders them.
// A provider failure on listing, or on any message other than one deleted meanwhile,
// fails the whole call with *domain.MailProviderError.
func (f *Fetcher) Fetch(ctx context.Context, cred *domain.Credential, q FetchQuery) ([]*domain.RawMessage, error) {
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	query := q.Query
	if query == "" {
		query = BuildQuery(q.AfterDate)
	}

	token := &oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   "Bearer",
		Expiry:      cred.ExpiresAt,
	}

	ids, err := f.listIDs(ctx, token, query, maxResults)
	if err != nil {
		return nil, err
	}

	messages := make([]*domain.RawMessage, 0, len(ids))
	for _, id := range ids {
		msg, err := f.getMessage(ctx, token, id)
		if err != nil {
			var pe *out.ProviderError
			if errors.As(err, &pe) && pe.Code == out.ProviderErrNotFound {
				logger.Debug("[Fetcher.Fetch] message %s disappeared before download, skipping", id)
				continue
			}
			return nil, toMailProviderError("get message", err)
		}
		messages = append(messages, toRawMessage(msg))
	}

	logger.WithField("user_id", cred.UserID.String()).
		Info("[Fetcher.Fetch] fetched %d of %d listed messages", len(messages), len(ids))
	return messages, nil
}

func (f *Fetcher) listIDs(ctx context.Context, token *oauth2.Token, query string, maxResults int) ([]string, error) {
	var ids []string
	pageToken := ""
	for len(ids) < maxResults {
		pageSize := f.pageSize
		if remaining := maxResults - len(ids); remaining < pageSize {
			pageSize = remaining
		}

		callCtx, cancel := f.callContext(ctx)
		page, err := f.provider.SearchMessages(callCtx, token, &out.ProviderSearchOptions{
			Query:     query,
			PageToken: pageToken,
			PageSize:  pageSize,
		})
		cancel()
		if err != nil {
			return nil, toMailProviderError("search messages", err)
		}

		ids = append(ids, page.MessageIDs...)
		if page.NextPageToken == "" || len(page.MessageIDs) == 0 {
			break
		}
		pageToken = page.NextPageToken
	}

	if len(ids) > maxResults {
		ids = ids[:maxResults]
	}
	return ids, nil
}

func (f *Fetcher) getMessage(ctx context.Context, token *oauth2.Token, id string) (*out.ProviderMailMessage, error) {
	callCtx, cancel := f.callContext(ctx)
	defer cancel()
	return f.provider.GetMessage(callCtx, token, id)
}

func (f *Fetcher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.fetchTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.fetchTimeout)
}

func toRawMessage(msg *out.ProviderMailMessage) *domain.RawMessage {
	body := strings.TrimSpace(msg.BodyText)
	if body == "" {
		body = htmlToText(msg.BodyHTML)
	}
	if body == "" {
		body = msg.Snippet
	}
	return &domain.RawMessage{
		ExternalID: msg.ExternalID,
		Sender:     msg.From,
		Subject:    msg.Subject,
		Body:       body,
		ReceivedAt: msg.ReceivedAt,
	}
}

func toMailProviderError(op string, err error) error {
	retryable := errors.Is(err, context.DeadlineExceeded)
	var pe *out.ProviderError
	if errors.As(err, &pe) {
		retryable = pe.Retryable
	}
	return &domain.MailProviderError{Op: op, Retryable: retryable, Err: err}
}
