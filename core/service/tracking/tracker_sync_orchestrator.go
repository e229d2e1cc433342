// Package tracking runs a user's mail sync end to end and records new job applications.
package tracking

import (
	"context"
	"errors"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/core/port/out"
	"tracker_server/core/service/mailfetch"
	"tracker_server/pkg/logger"

	"github.com/google/uuid"
)

const (
	defaultMaxResults = 50
	maxResultsCap     = 500
)

type CredentialProvider interface {
	EnsureValid(ctx context.Context, userID uuid.UUID) (*domain.Credential, error)
	Lookup(ctx context.Context, userID uuid.UUID) (*domain.Credential, error)
}

type MessageFetcher interface {
	Fetch(ctx context.Context, cred *domain.Credential, q mailfetch.FetchQuery) ([]*domain.RawMessage, error)
}

type CandidateFilter interface {
	IsCandidate(subject, body string) bool
}

type MessageExtractor interface {
	Extract(ctx context.Context, sender, subject, body string) domain.ExtractionOutcome
}

type Scorer interface {
	Score(result *domain.ExtractionResult, fromCache bool) int
}

type DuplicateChecker interface {
	Check(ctx context.Context, candidate *domain.CandidateRecord, userID uuid.UUID) (*domain.DuplicateVerdict, error)
}

type Config struct {
	DefaultMaxResults int
	MaxResultsCap     int
	SyncTimeout       time.Duration

	// ResumeFromLastSync bounds the search by the previous sync time when the caller gives no date.
	ResumeFromLastSync bool
}

// Deps wires the pipeline stages. SyncState is optional.
type Deps struct {
	Credentials CredentialProvider
	Fetcher     MessageFetcher
	Filter      CandidateFilter
	Extractor   MessageExtractor
	Scorer      Scorer
	Duplicates  DuplicateChecker
	Records     out.ApplicationRepository
	SyncState   out.SyncStateRepository
}

// Orchestrator implements in.SyncUseCase.
type Orchestrator struct {
	deps Deps
	cfg  Config
	now  func() time.Time
}

var _ in.SyncUseCase = (*Orchestrator)(nil)

func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = defaultMaxResults
	}
	if cfg.MaxResultsCap <= 0 {
		cfg.MaxResultsCap = maxResultsCap
	}
	return &Orchestrator{deps: deps, cfg: cfg, now: time.Now}
}

// Sync fetches the user's recent mail and persists every new job application found.
// Only credential and mail provider failures abort the run; per-message failures are
// counted in Errors. Cancelling ctx stops before the next message and keeps what was stored.
func (o *Orchestrator) Sync(ctx context.Context, userID uuid.UUID, opts *domain.SyncOptions) (*domain.SyncSummary, error) {
	started := o.now()
	log := logger.WithField("user_id", userID.String())

	cred, err := o.deps.Credentials.EnsureValid(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("[Orchestrator.Sync] no usable credential")
		return nil, err
	}

	if o.cfg.SyncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.SyncTimeout)
		defer cancel()
	}

	query := o.buildQuery(ctx, userID, opts)
	messages, err := o.deps.Fetcher.Fetch(ctx, cred, query)
	if err != nil {
		log.WithError(err).Error("[Orchestrator.Sync] mail fetch failed")
		return nil, err
	}

	summary := &domain.SyncSummary{TotalEmails: len(messages)}
	for i, msg := range messages {
		if ctx.Err() != nil {
			summary.Truncated = true
			log.Warn("[Orchestrator.Sync] stopped after %d of %d messages: %v", i, len(messages), ctx.Err())
			break
		}
		o.processMessage(ctx, userID, msg, summary)
	}

	o.recordSync(ctx, userID, started, summary)

	log.WithDuration(o.now().Sub(started)).Info(
		"[Orchestrator.Sync] total=%d job=%d new=%d duplicates=%d errors=%d",
		summary.TotalEmails, summary.JobEmails, summary.NewApplications, summary.Duplicates, summary.Errors)
	return summary, nil
}

// Status reports the user's connection without refreshing anything.
func (o *Orchestrator) Status(ctx context.Context, userID uuid.UUID) (*domain.SyncStatus, error) {
	cred, err := o.deps.Credentials.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := &domain.SyncStatus{}
	if cred != nil {
		status.Connected = cred.IsConnected
		status.Email = cred.Email
	}
	if o.deps.SyncState != nil {
		last, err := o.deps.SyncState.GetLastSync(ctx, userID.String())
		if err != nil {
			return nil, &domain.PersistenceError{Op: "get last sync", Err: err}
		}
		status.LastSync = last
	}
	return status, nil
}

func (o *Orchestrator) buildQuery(ctx context.Context, userID uuid.UUID, opts *domain.SyncOptions) mailfetch.FetchQuery {
	q := mailfetch.FetchQuery{MaxResults: o.cfg.DefaultMaxResults}
	if opts != nil {
		if opts.MaxResults > 0 {
			q.MaxResults = opts.MaxResults
		}
		q.AfterDate = opts.AfterDate
	}
	if q.MaxResults > o.cfg.MaxResultsCap {
		q.MaxResults = o.cfg.MaxResultsCap
	}

	if q.AfterDate == nil && o.cfg.ResumeFromLastSync && o.deps.SyncState != nil {
		last, err := o.deps.SyncState.GetLastSync(ctx, userID.String())
		if err != nil {
			logger.Warn("[Orchestrator.buildQuery] failed to read last sync for %s: %v", userID, err)
		} else if last != nil {
			q.AfterDate = last
		}
	}
	return q
}

// processMessage runs one message through filter, extraction, scoring, dedup and storage.
func (o *Orchestrator) processMessage(ctx context.Context, userID uuid.UUID, msg *domain.RawMessage, summary *domain.SyncSummary) {
	defer func() {
		if r := recover(); r != nil {
			summary.Errors++
			logger.Error("[Orchestrator.processMessage] message %s: recovered from panic: %v", msg.ExternalID, r)
		}
	}()

	if !o.deps.Filter.IsCandidate(msg.Subject, msg.Body) {
		return
	}

	outcome := o.deps.Extractor.Extract(ctx, msg.Sender, msg.Subject, msg.Body)
	if !outcome.IsJobApplication() {
		if outcome.Kind == domain.ExtractionUnavailable {
			logger.Debug("[Orchestrator.processMessage] message %s skipped: %s", msg.ExternalID, outcome.Reason)
		}
		return
	}

	candidate := o.buildCandidate(userID, msg, outcome)

	verdict, err := o.deps.Duplicates.Check(ctx, candidate, userID)
	if err != nil {
		summary.Errors++
		logger.WithError(err).Warn("[Orchestrator.processMessage] duplicate check failed for %s", msg.ExternalID)
		return
	}
	if verdict.IsDuplicate {
		candidate.IsDuplicateOf = verdict.MatchedRecordID
		summary.Duplicates++
		summary.MatchedDuplicates = append(summary.MatchedDuplicates, candidate)
		return
	}

	record, err := o.persist(ctx, candidate)
	switch {
	case errors.Is(err, out.ErrRecordExists):
		// Same source message stored by an earlier run.
		summary.Duplicates++
	case err != nil:
		summary.JobEmails++
		summary.Errors++
		logger.WithError(err).Error("[Orchestrator.processMessage] failed to store application from %s", msg.ExternalID)
	default:
		summary.JobEmails++
		summary.NewApplications++
		summary.CreatedRecords = append(summary.CreatedRecords, record)
	}
}

func (o *Orchestrator) buildCandidate(userID uuid.UUID, msg *domain.RawMessage, outcome domain.ExtractionOutcome) *domain.CandidateRecord {
	received := msg.ReceivedAt
	if received.IsZero() {
		received = o.now()
	}
	r := outcome.Result
	return &domain.CandidateRecord{
		UserID:          userID,
		Company:         r.Company,
		Title:           r.Title,
		Status:          r.Status,
		Location:        r.Location,
		DateApplied:     domain.DateOnly(received),
		SourceMessageID: msg.ExternalID,
		Confidence:      o.deps.Scorer.Score(r, outcome.FromCache),
	}
}

func (o *Orchestrator) persist(ctx context.Context, c *domain.CandidateRecord) (*domain.ApplicationRecord, error) {
	entity := &out.ApplicationEntity{
		UserID:            c.UserID.String(),
		Company:           c.Company,
		Title:             c.Title,
		Status:            string(c.Status),
		Location:          c.Location,
		NormalizedCompany: domain.NormalizeText(c.Company),
		NormalizedTitle:   domain.NormalizeText(c.Title),
		DateApplied:       c.DateApplied,
		SourceMessageID:   c.SourceMessageID,
		Confidence:        c.Confidence,
		CreatedAt:         o.now(),
	}

	id, err := o.deps.Records.CreateRecord(ctx, entity)
	if err != nil {
		if errors.Is(err, out.ErrRecordExists) {
			return nil, err
		}
		return nil, &domain.PersistenceError{Op: "create record", Err: err}
	}

	return &domain.ApplicationRecord{ID: id, CandidateRecord: *c, CreatedAt: entity.CreatedAt}, nil
}

func (o *Orchestrator) recordSync(ctx context.Context, userID uuid.UUID, started time.Time, s *domain.SyncSummary) {
	if o.deps.SyncState == nil {
		return
	}
	// The run may have been cancelled; the bookkeeping write still gets a short window.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := o.deps.SyncState.RecordSync(writeCtx, &out.SyncRunEntity{
		UserID:          userID.String(),
		StartedAt:       started,
		FinishedAt:      o.now(),
		TotalEmails:     s.TotalEmails,
		JobEmails:       s.JobEmails,
		NewApplications: s.NewApplications,
		Duplicates:      s.Duplicates,
		Errors:          s.Errors,
	})
	if err != nil {
		logger.Warn("[Orchestrator.recordSync] failed to record sync for %s: %v", userID, err)
	}
}
