package metrics

import (
	"testing"
	"time"
)

func TestLatencyTrackerStats(t *testing.T) {
	lt := NewLatencyTracker(100)
	if s := lt.Stats(); s.Count != 0 {
		t.Fatalf("expected empty stats, got %+v", s)
	}

	for i := 100; i >= 1; i-- {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	s := lt.Stats()
	if s.Count != 100 || s.Samples != 100 {
		t.Fatalf("count = %d, samples = %d", s.Count, s.Samples)
	}
	if s.Min != time.Millisecond || s.Max != 100*time.Millisecond {
		t.Errorf("min/max = %v/%v", s.Min, s.Max)
	}
	if s.P50 != 50*time.Millisecond {
		t.Errorf("p50 = %v, want 50ms", s.P50)
	}
	if s.P99 != 99*time.Millisecond {
		t.Errorf("p99 = %v, want 99ms", s.P99)
	}
}

func TestLatencyTrackerWindow(t *testing.T) {
	lt := NewLatencyTracker(10)
	for i := 0; i < 25; i++ {
		lt.Record(time.Millisecond)
	}
	if s := lt.Stats(); s.Samples > 10 {
		t.Errorf("window exceeded: %d samples", s.Samples)
	}

	lt.Reset()
	if s := lt.Stats(); s.Count != 0 {
		t.Errorf("expected reset tracker to be empty, got %+v", s)
	}
}
