// Package extraction turns one mail message into structured job-application fields.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/metrics"

	"github.com/sony/gobreaker"
)

const (
	defaultCallTimeout = 30 * time.Second
	maxAuditedResponse = 2000
)

type ExtractorConfig struct {
	CallTimeout time.Duration

	// Breaker opens after this many consecutive inference failures. Zero uses 5.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Extractor classifies a message and extracts its fields, consulting the cache first.
// Extract never returns an error; every failure becomes ExtractionUnavailable.
type Extractor struct {
	inference   out.InferencePort
	cache       out.ExtractionCache
	audit       out.ExtractionAuditStore
	cb          *gobreaker.CircuitBreaker
	callTimeout time.Duration
	latency     *metrics.LatencyTracker

	calls    int64
	failures int64
}

// NewExtractor builds an extractor. A nil inference port means no model is configured and
// every cache miss is reported unavailable.
func NewExtractor(inference out.InferencePort, cache out.ExtractionCache, cfg ExtractorConfig) *Extractor {
	if cache == nil {
		cache = NewMemoryCache(DefaultCacheEntries)
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	threshold := cfg.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "inference",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	})

	return &Extractor{
		inference:   inference,
		cache:       cache,
		cb:          cb,
		callTimeout: cfg.CallTimeout,
		latency:     metrics.NewLatencyTracker(1000),
	}
}

// SetAuditStore enables recording of rejected and failed inference responses.
func (e *Extractor) SetAuditStore(audit out.ExtractionAuditStore) {
	e.audit = audit
}

func (e *Extractor) Extract(ctx context.Context, sender, subject, body string) (outcome domain.ExtractionOutcome) {
	hash := ContentHash(sender, subject, body)

	if cached, ok := e.cache.Get(ctx, hash); ok {
		return outcomeFor(cached, true)
	}

	if e.inference == nil {
		return unavailable("inference not configured")
	}

	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&e.failures, 1)
			logger.Error("[Extractor.Extract] recovered from panic: %v", r)
			outcome = unavailable(fmt.Sprintf("panic: %v", r))
		}
	}()

	raw, err := e.call(ctx, &out.InferenceRequest{Sender: sender, Subject: subject, Body: body})
	if err != nil {
		atomic.AddInt64(&e.failures, 1)
		reason := "inference failed: " + err.Error()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			reason = "inference circuit open"
		}
		logger.WithError(err).Warn("[Extractor.Extract] %s", reason)
		e.recordAudit(ctx, hash, sender, subject, "failed", reason, "")
		return unavailable(reason)
	}

	result, err := ParseExtractionResponse(raw)
	if err != nil {
		logger.Warn("[Extractor.Extract] rejected inference response: %v", err)
		e.recordAudit(ctx, hash, sender, subject, "rejected", err.Error(), raw)
		return unavailable(err.Error())
	}

	e.cache.Put(ctx, hash, result)
	return outcomeFor(result, false)
}

func (e *Extractor) call(ctx context.Context, req *out.InferenceRequest) (string, error) {
	atomic.AddInt64(&e.calls, 1)

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	start := time.Now()
	defer func() { e.latency.Record(time.Since(start)) }()

	raw, err := e.cb.Execute(func() (interface{}, error) {
		return e.inference.ExtractJobFields(callCtx, req)
	})
	if err != nil {
		return "", err
	}
	return raw.(string), nil
}

func (e *Extractor) recordAudit(ctx context.Context, hash, sender, subject, kind, reason, raw string) {
	if e.audit == nil {
		return
	}
	if len(raw) > maxAuditedResponse {
		raw = raw[:maxAuditedResponse]
	}
	entry := &out.ExtractionAuditEntry{
		ContentHash: hash,
		Sender:      sender,
		Subject:     subject,
		Outcome:     kind,
		Reason:      reason,
		RawResponse: raw,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.audit.RecordExtraction(ctx, entry); err != nil {
		logger.Debug("[Extractor.recordAudit] failed to store audit entry: %v", err)
	}
}

// ExtractorStats is a snapshot of extractor activity.
type ExtractorStats struct {
	InferenceCalls int64                `json:"inference_calls"`
	Failures       int64                `json:"failures"`
	BreakerState   string               `json:"breaker_state"`
	Cache          out.CacheStats       `json:"cache"`
	Latency        metrics.LatencyStats `json:"latency"`
}

func (e *Extractor) Stats() ExtractorStats {
	return ExtractorStats{
		InferenceCalls: atomic.LoadInt64(&e.calls),
		Failures:       atomic.LoadInt64(&e.failures),
		BreakerState:   e.cb.State().String(),
		Cache:          e.cache.Stats(),
		Latency:        e.latency.Stats(),
	}
}

// ClearCache drops all cached results.
func (e *Extractor) ClearCache(ctx context.Context) {
	e.cache.Clear(ctx)
}

func outcomeFor(result *domain.ExtractionResult, fromCache bool) domain.ExtractionOutcome {
	if !result.IsJobRelated {
		return domain.ExtractionOutcome{Kind: domain.ExtractionNotJobRelated, Result: result, FromCache: fromCache}
	}
	return domain.ExtractionOutcome{Kind: domain.ExtractionExtracted, Result: result, FromCache: fromCache}
}

func unavailable(reason string) domain.ExtractionOutcome {
	return domain.ExtractionOutcome{Kind: domain.ExtractionUnavailable, Reason: reason}
}
