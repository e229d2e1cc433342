package extraction

import (
	"context"
	"errors"
	"sync"
	"testing"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
)

type scriptedInference struct {
	mu       sync.Mutex
	response string
	err      error
	panicMsg string
	calls    int
}

func (s *scriptedInference) ExtractJobFields(ctx context.Context, req *out.InferenceRequest) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.response, s.err
}

type memAudit struct {
	entries []*out.ExtractionAuditEntry
}

func (a *memAudit) RecordExtraction(ctx context.Context, entry *out.ExtractionAuditEntry) error {
	a.entries = append(a.entries, entry)
	return nil
}

const acmeResponse = `{"isJobRelated": true, "company": "Acme", "title": "Backend Engineer", "status": "interview", "location": "Remote"}`

func TestExtract_ValidResponse(t *testing.T) {
	inf := &scriptedInference{response: acmeResponse}
	e := NewExtractor(inf, NewMemoryCache(10), ExtractorConfig{})

	outcome := e.Extract(context.Background(), "hr@acme.com", "Interview", "Let's talk")
	if outcome.Kind != domain.ExtractionExtracted {
		t.Fatalf("expected extracted, got %s (%s)", outcome.Kind, outcome.Reason)
	}
	if outcome.FromCache {
		t.Error("expected first call not to come from cache")
	}
	if outcome.Result.Status != domain.StatusInterview {
		t.Errorf("expected canonical status, got %q", outcome.Result.Status)
	}
	if outcome.Result.Source != domain.SourceModel {
		t.Errorf("expected model source, got %q", outcome.Result.Source)
	}
}

func TestExtract_CacheHitSkipsInference(t *testing.T) {
	inf := &scriptedInference{response: acmeResponse}
	e := NewExtractor(inf, NewMemoryCache(10), ExtractorConfig{})

	first := e.Extract(context.Background(), "hr@acme.com", "Interview", "Let's talk")
	second := e.Extract(context.Background(), "HR@acme.com", "  interview ", "let's   talk")

	if inf.calls != 1 {
		t.Errorf("expected 1 inference call, got %d", inf.calls)
	}
	if !second.FromCache {
		t.Error("expected second call to come from cache")
	}
	if *second.Result != *first.Result {
		t.Errorf("expected identical results, got %+v and %+v", first.Result, second.Result)
	}

	stats := e.Stats()
	if stats.Cache.Hits != 1 || stats.Cache.Misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d/%d", stats.Cache.Hits, stats.Cache.Misses)
	}
	if stats.InferenceCalls != 1 {
		t.Errorf("expected 1 recorded call, got %d", stats.InferenceCalls)
	}
}

func TestExtract_NotJobRelated(t *testing.T) {
	inf := &scriptedInference{response: `{"isJobRelated": false}`}
	e := NewExtractor(inf, nil, ExtractorConfig{})

	outcome := e.Extract(context.Background(), "a@b.c", "Hello", "World")
	if outcome.Kind != domain.ExtractionNotJobRelated {
		t.Errorf("expected not job related, got %s", outcome.Kind)
	}
	if outcome.IsJobApplication() {
		t.Error("expected IsJobApplication to be false")
	}

	// Negative results are cached too.
	e.Extract(context.Background(), "a@b.c", "Hello", "World")
	if inf.calls != 1 {
		t.Errorf("expected 1 inference call, got %d", inf.calls)
	}
}

func TestExtract_FailuresAreUnavailable(t *testing.T) {
	tests := []struct {
		name string
		inf  *scriptedInference
	}{
		{"transport error", &scriptedInference{err: errors.New("connection refused")}},
		{"malformed json", &scriptedInference{response: `{"isJobRelated": tru`}},
		{"missing field", &scriptedInference{response: `{"isJobRelated": true, "company": "Acme", "title": "Eng", "status": "Offer"}`}},
		{"unknown status", &scriptedInference{response: `{"isJobRelated": true, "company": "Acme", "title": "Eng", "status": "Ghosted", "location": "NYC"}`}},
		{"panic", &scriptedInference{panicMsg: "boom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewMemoryCache(10)
			e := NewExtractor(tt.inf, cache, ExtractorConfig{})

			outcome := e.Extract(context.Background(), "hr@acme.com", "Offer", "Body")
			if outcome.Kind != domain.ExtractionUnavailable {
				t.Errorf("expected unavailable, got %s", outcome.Kind)
			}
			if outcome.Reason == "" {
				t.Error("expected a reason")
			}
			if cache.Stats().Size != 0 {
				t.Error("expected failure not to be cached")
			}
		})
	}
}

func TestExtract_NoInferenceConfigured(t *testing.T) {
	e := NewExtractor(nil, nil, ExtractorConfig{})

	outcome := e.Extract(context.Background(), "a", "b", "c")
	if outcome.Kind != domain.ExtractionUnavailable {
		t.Errorf("expected unavailable, got %s", outcome.Kind)
	}
}

func TestExtract_RejectedResponseIsAudited(t *testing.T) {
	audit := &memAudit{}
	e := NewExtractor(&scriptedInference{response: `not json`}, nil, ExtractorConfig{})
	e.SetAuditStore(audit)

	e.Extract(context.Background(), "hr@acme.com", "Offer", "Body")
	if len(audit.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(audit.entries))
	}
	if audit.entries[0].Outcome != "rejected" || audit.entries[0].RawResponse != "not json" {
		t.Errorf("unexpected audit entry: %+v", audit.entries[0])
	}
}

func TestExtract_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	inf := &scriptedInference{err: errors.New("timeout")}
	e := NewExtractor(inf, nil, ExtractorConfig{BreakerFailures: 2})

	for i := 0; i < 4; i++ {
		e.Extract(context.Background(), "a", "subject", string(rune('a'+i)))
	}
	if inf.calls != 2 {
		t.Errorf("expected breaker to stop calls after 2 failures, got %d calls", inf.calls)
	}
	if e.Stats().BreakerState != "open" {
		t.Errorf("expected open breaker, got %s", e.Stats().BreakerState)
	}
}
