// Package dedup decides whether a candidate application is already recorded.
package dedup

import (
	"context"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/pkg/logger"

	"github.com/google/uuid"
)

const (
	DefaultSimilarityThreshold = 0.85
	DefaultLookback            = 90 * 24 * time.Hour
	DefaultLookbackLimit       = 200
)

type Config struct {
	SimilarityThreshold float64
	Lookback            time.Duration
	LookbackLimit       int
}

// DuplicateDetector checks candidates against a user's stored records, first by exact
// normalized match and then by fuzzy company+title similarity over a bounded window.
type DuplicateDetector struct {
	repo      out.ApplicationRepository
	threshold float64
	lookback  time.Duration
	limit     int
	now       func() time.Time
}

func NewDuplicateDetector(repo out.ApplicationRepository, cfg Config) *DuplicateDetector {
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.LookbackLimit <= 0 {
		cfg.LookbackLimit = DefaultLookbackLimit
	}
	return &DuplicateDetector{
		repo:      repo,
		threshold: cfg.SimilarityThreshold,
		lookback:  cfg.Lookback,
		limit:     cfg.LookbackLimit,
		now:       time.Now,
	}
}

// Check returns a verdict, or a *domain.DuplicateCheckError if the store cannot be read.
func (d *DuplicateDetector) Check(ctx context.Context, candidate *domain.CandidateRecord, userID uuid.UUID) (*domain.DuplicateVerdict, error) {
	company := domain.NormalizeText(candidate.Company)
	title := domain.NormalizeText(candidate.Title)

	exact, err := d.repo.FindDuplicateCandidate(ctx, userID.String(), company, title, domain.DateOnly(candidate.DateApplied))
	if err != nil {
		return nil, &domain.DuplicateCheckError{Err: err}
	}
	if exact != nil {
		id := exact.ID
		return &domain.DuplicateVerdict{
			IsDuplicate:     true,
			MatchedRecordID: &id,
			Similarity:      1.0,
			Reason:          "exact match",
		}, nil
	}

	recent, err := d.repo.FindRecentRecords(ctx, userID.String(), out.LookbackWindow{
		Since: d.now().Add(-d.lookback),
		Limit: d.limit,
	})
	if err != nil {
		return nil, &domain.DuplicateCheckError{Err: err}
	}

	key := candidate.MatchKey()
	verdict := &domain.DuplicateVerdict{}
	for _, rec := range recent {
		sim := Similarity(key, matchKey(rec))
		if sim > verdict.Similarity {
			id := rec.ID
			verdict.Similarity = sim
			verdict.MatchedRecordID = &id
		}
	}

	if verdict.Similarity >= d.threshold {
		verdict.IsDuplicate = true
		verdict.Reason = "similar to recent record"
		logger.Debug("[DuplicateDetector.Check] %q matches record %d (%.2f)", key, *verdict.MatchedRecordID, verdict.Similarity)
		return verdict, nil
	}

	verdict.MatchedRecordID = nil
	return verdict, nil
}

func matchKey(e *out.ApplicationEntity) string {
	company, title := e.NormalizedCompany, e.NormalizedTitle
	if company == "" && title == "" {
		return domain.NormalizeText(e.Company + " " + e.Title)
	}
	return domain.NormalizeText(company + " " + title)
}
