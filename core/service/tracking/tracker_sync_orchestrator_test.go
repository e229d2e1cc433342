package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/core/service/auth"
	"tracker_server/core/service/classification"
	"tracker_server/core/service/dedup"
	"tracker_server/core/service/extraction"
	"tracker_server/core/service/mailfetch"
	"tracker_server/core/service/scoring"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// =============================================================================
// Fakes
// =============================================================================

type staticCredentials struct {
	cred *domain.Credential
	err  error
}

func (s *staticCredentials) EnsureValid(ctx context.Context, userID uuid.UUID) (*domain.Credential, error) {
	return s.cred, s.err
}

func (s *staticCredentials) Lookup(ctx context.Context, userID uuid.UUID) (*domain.Credential, error) {
	return s.cred, nil
}

type fakeFetcher struct {
	messages []*domain.RawMessage
	err      error
	calls    int
	lastQ    mailfetch.FetchQuery
}

func (f *fakeFetcher) Fetch(ctx context.Context, cred *domain.Credential, q mailfetch.FetchQuery) ([]*domain.RawMessage, error) {
	f.calls++
	f.lastQ = q
	return f.messages, f.err
}

type fakeInference struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (f *fakeInference) ExtractJobFields(ctx context.Context, req *out.InferenceRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.response, f.err
}

type memRecords struct {
	mu        sync.Mutex
	records   []*out.ApplicationEntity
	createErr error
	findErr   error
}

func (r *memRecords) CreateRecord(ctx context.Context, e *out.ApplicationEntity) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return 0, r.createErr
	}
	for _, existing := range r.records {
		if existing.UserID == e.UserID && existing.SourceMessageID == e.SourceMessageID {
			return 0, out.ErrRecordExists
		}
	}
	e.ID = int64(len(r.records) + 1)
	r.records = append(r.records, e)
	return e.ID, nil
}

func (r *memRecords) FindDuplicateCandidate(ctx context.Context, userID, company, title string, dateApplied time.Time) (*out.ApplicationEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, e := range r.records {
		if e.UserID == userID && e.NormalizedCompany == company && e.NormalizedTitle == title && e.DateApplied.Equal(dateApplied) {
			return e, nil
		}
	}
	return nil, nil
}

func (r *memRecords) FindRecentRecords(ctx context.Context, userID string, window out.LookbackWindow) ([]*out.ApplicationEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*out.ApplicationEntity
	for _, e := range r.records {
		if e.UserID == userID && !e.CreatedAt.Before(window.Since) {
			res = append(res, e)
		}
	}
	return res, nil
}

type memSyncState struct {
	runs []*out.SyncRunEntity
}

func (s *memSyncState) RecordSync(ctx context.Context, run *out.SyncRunEntity) error {
	s.runs = append(s.runs, run)
	return nil
}

func (s *memSyncState) GetLastSync(ctx context.Context, userID string) (*time.Time, error) {
	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].UserID == userID {
			t := s.runs[i].FinishedAt
			return &t, nil
		}
	}
	return nil, nil
}

type panickingFilter struct{}

func (panickingFilter) IsCandidate(subject, body string) bool { panic("filter exploded") }

// =============================================================================
// Helpers
// =============================================================================

const acmeInterview = `{"isJobRelated": true, "company": "Acme", "title": "Backend Engineer", "status": "Interview", "location": "Remote"}`

type harness struct {
	orch      *Orchestrator
	fetcher   *fakeFetcher
	inference *fakeInference
	records   *memRecords
	syncState *memSyncState
}

func newHarness(userID uuid.UUID, messages []*domain.RawMessage, inference *fakeInference) *harness {
	records := &memRecords{}
	syncState := &memSyncState{}
	fetcher := &fakeFetcher{messages: messages}

	orch := NewOrchestrator(Deps{
		Credentials: &staticCredentials{cred: &domain.Credential{UserID: userID, Email: "me@example.com", AccessToken: "t", ExpiresAt: time.Now().Add(time.Hour), IsConnected: true}},
		Fetcher:     fetcher,
		Filter:      classification.NewPreFilter(),
		Extractor:   extraction.NewExtractor(inference, extraction.NewMemoryCache(100), extraction.ExtractorConfig{}),
		Scorer:      scoring.NewConfidenceScorer(scoring.DefaultWeights),
		Duplicates:  dedup.NewDuplicateDetector(records, dedup.Config{}),
		Records:     records,
		SyncState:   syncState,
	}, Config{})

	return &harness{orch: orch, fetcher: fetcher, inference: inference, records: records, syncState: syncState}
}

func message(id, subject, body string, received time.Time) *domain.RawMessage {
	return &domain.RawMessage{ExternalID: id, Sender: "talent@acme.com", Subject: subject, Body: body, ReceivedAt: received}
}

// =============================================================================
// Scenarios
// =============================================================================

func TestSync_InterviewNewsletterAndDuplicate(t *testing.T) {
	userID := uuid.New()
	received := time.Date(2024, 4, 2, 14, 0, 0, 0, time.UTC)
	messages := []*domain.RawMessage{
		message("m1", "Interview invitation", "We would like to schedule an interview for the Backend Engineer role.", received),
		message("m2", "Weekly digest", "Top stories from the garden club this week", received),
		message("m3", "Interview invitation", "We would like to schedule an interview for the Backend Engineer role.", received),
	}
	h := newHarness(userID, messages, &fakeInference{response: acmeInterview})

	summary, err := h.orch.Sync(context.Background(), userID, &domain.SyncOptions{MaxResults: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.TotalEmails != 3 || summary.JobEmails != 1 || summary.NewApplications != 1 || summary.Duplicates != 1 || summary.Errors != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if h.inference.calls != 1 {
		t.Errorf("expected 1 inference call (newsletter filtered, duplicate cached), got %d", h.inference.calls)
	}
	if len(summary.CreatedRecords) != 1 {
		t.Fatalf("expected 1 created record, got %d", len(summary.CreatedRecords))
	}

	rec := summary.CreatedRecords[0]
	if rec.Company != "Acme" || rec.Status != domain.StatusInterview || rec.SourceMessageID != "m1" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Confidence != 100 {
		t.Errorf("expected confidence 100, got %d", rec.Confidence)
	}
	if !rec.DateApplied.Equal(time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected date applied to be the received day, got %v", rec.DateApplied)
	}

	if len(summary.MatchedDuplicates) != 1 {
		t.Fatalf("expected 1 matched duplicate, got %d", len(summary.MatchedDuplicates))
	}
	dup := summary.MatchedDuplicates[0]
	if dup.SourceMessageID != "m3" || dup.IsDuplicateOf == nil || *dup.IsDuplicateOf != rec.ID {
		t.Errorf("expected m3 to point at record %d, got %+v", rec.ID, dup)
	}
	if rec.IsDuplicateOf != nil {
		t.Errorf("stored record must not be marked duplicate, got %d", *rec.IsDuplicateOf)
	}
}

func TestSync_InferenceUnreachable(t *testing.T) {
	userID := uuid.New()
	now := time.Now()
	messages := []*domain.RawMessage{
		message("m1", "Your application", "Thanks for applying", now),
		message("m2", "Offer letter", "We are happy to offer you the job", now),
		message("m3", "Interview invitation", "Can you interview with us next week?", now),
	}
	inference := &fakeInference{err: errors.New("dial tcp: connection refused")}
	h := newHarness(userID, messages, inference)

	summary, err := h.orch.Sync(context.Background(), userID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TotalEmails != 3 || summary.JobEmails != 0 || summary.Errors != 0 || summary.NewApplications != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if inference.calls != 3 {
		t.Errorf("expected each job-like message to reach inference, got %d calls", inference.calls)
	}
	if len(h.records.records) != 0 {
		t.Errorf("expected nothing stored, got %d", len(h.records.records))
	}
}

func TestSync_RefreshFailureStopsBeforeFetch(t *testing.T) {
	userID := uuid.New()
	credRepo := &credRepo{entity: &out.CredentialEntity{
		UserID:       userID.String(),
		AccessToken:  "old",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(-time.Hour),
		IsConnected:  true,
	}}
	manager := auth.NewCredentialManager(credRepo, failingRefresher{}, auth.CredentialManagerConfig{})
	fetcher := &fakeFetcher{}

	orch := NewOrchestrator(Deps{
		Credentials: manager,
		Fetcher:     fetcher,
		Filter:      classification.NewPreFilter(),
		Extractor:   extraction.NewExtractor(nil, nil, extraction.ExtractorConfig{}),
		Scorer:      scoring.NewConfidenceScorer(scoring.DefaultWeights),
		Duplicates:  dedup.NewDuplicateDetector(&memRecords{}, dedup.Config{}),
		Records:     &memRecords{},
	}, Config{})

	summary, err := orch.Sync(context.Background(), userID, nil)
	if summary != nil {
		t.Errorf("expected no summary, got %+v", summary)
	}
	var ce *domain.CredentialError
	if !errors.As(err, &ce) || ce.Reason != domain.CredentialRefreshFailed {
		t.Fatalf("expected refresh_failed CredentialError, got %v", err)
	}
	if fetcher.calls != 0 {
		t.Errorf("expected no mail fetch, got %d", fetcher.calls)
	}
}

type credRepo struct {
	entity *out.CredentialEntity
}

func (r *credRepo) GetCredential(ctx context.Context, userID string) (*out.CredentialEntity, error) {
	e := *r.entity
	return &e, nil
}
func (r *credRepo) SaveCredential(ctx context.Context, e *out.CredentialEntity) error { return nil }
func (r *credRepo) MarkDisconnected(ctx context.Context, userID string) error         { return nil }
func (r *credRepo) Delete(ctx context.Context, userID string) error                   { return nil }

type failingRefresher struct{}

func (failingRefresher) RefreshToken(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	return nil, errors.New("oauth2: cannot fetch token: 503 Service Unavailable")
}

// =============================================================================
// Error handling
// =============================================================================

func TestSync_MailProviderFailureIsTerminal(t *testing.T) {
	userID := uuid.New()
	h := newHarness(userID, nil, &fakeInference{response: acmeInterview})
	h.fetcher.err = &domain.MailProviderError{Op: "search messages", Err: errors.New("quota exceeded")}

	summary, err := h.orch.Sync(context.Background(), userID, nil)
	if summary != nil {
		t.Errorf("expected no partial summary, got %+v", summary)
	}
	if !domain.IsMailProviderError(err) {
		t.Fatalf("expected MailProviderError, got %v", err)
	}
	if len(h.syncState.runs) != 0 {
		t.Error("expected failed run not to be recorded")
	}
}

func TestSync_PerMessageFailuresAreCounted(t *testing.T) {
	userID := uuid.New()
	now := time.Now()
	messages := []*domain.RawMessage{
		message("m1", "Interview", "interview details", now),
		message("m2", "Interview", "interview details again", now),
	}

	t.Run("duplicate check error", func(t *testing.T) {
		h := newHarness(userID, messages, &fakeInference{response: acmeInterview})
		h.records.findErr = errors.New("connection reset")

		summary, err := h.orch.Sync(context.Background(), userID, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Errors != 2 || summary.NewApplications != 0 || summary.JobEmails != 0 {
			t.Errorf("unexpected summary: %+v", summary)
		}
	})

	t.Run("persistence error", func(t *testing.T) {
		h := newHarness(userID, messages, &fakeInference{response: acmeInterview})
		h.records.createErr = errors.New("disk full")

		summary, err := h.orch.Sync(context.Background(), userID, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Errors != 2 || summary.NewApplications != 0 {
			t.Errorf("unexpected summary: %+v", summary)
		}
	})

	t.Run("panic in a stage", func(t *testing.T) {
		h := newHarness(userID, messages, &fakeInference{response: acmeInterview})
		h.orch.deps.Filter = panickingFilter{}

		summary, err := h.orch.Sync(context.Background(), userID, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Errors != 2 {
			t.Errorf("expected 2 errors, got %+v", summary)
		}
	})
}

func TestSync_SameMessageAcrossRunsIsDuplicate(t *testing.T) {
	userID := uuid.New()
	messages := []*domain.RawMessage{message("m1", "Interview", "interview details", time.Now())}
	h := newHarness(userID, messages, &fakeInference{response: acmeInterview})

	if _, err := h.orch.Sync(context.Background(), userID, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	summary, err := h.orch.Sync(context.Background(), userID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.NewApplications != 0 || summary.Duplicates != 1 {
		t.Errorf("expected second run to find only a duplicate, got %+v", summary)
	}
	if len(h.records.records) != 1 {
		t.Errorf("expected a single stored record, got %d", len(h.records.records))
	}
}

func TestSync_CancelledContextKeepsStoredRecords(t *testing.T) {
	userID := uuid.New()
	now := time.Now()
	messages := []*domain.RawMessage{
		message("m1", "Interview", "interview at Acme", now),
		message("m2", "Offer", "offer from Globex", now),
	}
	h := newHarness(userID, messages, &fakeInference{response: acmeInterview})

	ctx, cancel := context.WithCancel(context.Background())
	h.orch.deps.Extractor = cancelAfterFirst{inner: h.orch.deps.Extractor, cancel: cancel}

	summary, err := h.orch.Sync(ctx, userID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !summary.Truncated {
		t.Error("expected summary to be marked truncated")
	}
	if summary.NewApplications != 1 || len(h.records.records) != 1 {
		t.Errorf("expected first record to remain, got %+v", summary)
	}
}

type cancelAfterFirst struct {
	inner  MessageExtractor
	cancel context.CancelFunc
}

func (c cancelAfterFirst) Extract(ctx context.Context, sender, subject, body string) domain.ExtractionOutcome {
	defer c.cancel()
	return c.inner.Extract(ctx, sender, subject, body)
}

// =============================================================================
// Options and status
// =============================================================================

func TestSync_MaxResultsDefaultsAndCap(t *testing.T) {
	userID := uuid.New()
	h := newHarness(userID, nil, &fakeInference{})

	h.orch.Sync(context.Background(), userID, nil)
	if h.fetcher.lastQ.MaxResults != defaultMaxResults {
		t.Errorf("expected default %d, got %d", defaultMaxResults, h.fetcher.lastQ.MaxResults)
	}

	h.orch.Sync(context.Background(), userID, &domain.SyncOptions{MaxResults: 10000})
	if h.fetcher.lastQ.MaxResults != maxResultsCap {
		t.Errorf("expected cap %d, got %d", maxResultsCap, h.fetcher.lastQ.MaxResults)
	}
}

func TestSync_ResumeFromLastSync(t *testing.T) {
	userID := uuid.New()
	h := newHarness(userID, nil, &fakeInference{})
	h.orch.cfg.ResumeFromLastSync = true

	last := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.syncState.runs = append(h.syncState.runs, &out.SyncRunEntity{UserID: userID.String(), FinishedAt: last})

	h.orch.Sync(context.Background(), userID, nil)
	if h.fetcher.lastQ.AfterDate == nil || !h.fetcher.lastQ.AfterDate.Equal(last) {
		t.Errorf("expected after date %v, got %v", last, h.fetcher.lastQ.AfterDate)
	}
}

func TestStatus(t *testing.T) {
	userID := uuid.New()
	h := newHarness(userID, nil, &fakeInference{})

	status, err := h.orch.Status(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Connected || status.Email != "me@example.com" || status.LastSync != nil {
		t.Errorf("unexpected status before sync: %+v", status)
	}

	if _, err := h.orch.Sync(context.Background(), userID, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status, _ = h.orch.Status(context.Background(), userID)
	if status.LastSync == nil {
		t.Error("expected last sync after a completed run")
	}
}

func TestStatus_NotConnected(t *testing.T) {
	orch := NewOrchestrator(Deps{Credentials: &staticCredentials{}}, Config{})

	status, err := orch.Status(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Connected {
		t.Error("expected disconnected status")
	}
}
