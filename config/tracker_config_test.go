package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tracker")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DedupSimilarityThreshold != 0.85 {
		t.Errorf("threshold = %v, want 0.85", cfg.DedupSimilarityThreshold)
	}
	if cfg.DedupLookback() != 90*24*time.Hour {
		t.Errorf("lookback = %v, want 90 days", cfg.DedupLookback())
	}
	if cfg.ExtractionCacheSize != 1000 {
		t.Errorf("cache size = %d, want 1000", cfg.ExtractionCacheSize)
	}
	if cfg.TokenRefreshSkew != 5*time.Minute {
		t.Errorf("refresh skew = %v, want 5m", cfg.TokenRefreshSkew)
	}
	if cfg.SyncDefaultMaxResults != 50 || cfg.SyncMaxResultsCap != 500 {
		t.Errorf("max results default/cap = %d/%d", cfg.SyncDefaultMaxResults, cfg.SyncMaxResultsCap)
	}
	if cfg.ResumeFromLastSync {
		t.Error("resume from last sync should be off by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tracker")
	t.Setenv("DEDUP_SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("MAIL_FETCH_TIMEOUT_SEC", "5")
	t.Setenv("REDIS_CACHE_TTL", "48h")
	t.Setenv("RESUME_FROM_LAST_SYNC", "true")
	t.Setenv("WORKER_COUNT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DedupSimilarityThreshold != 0.9 {
		t.Errorf("threshold = %v", cfg.DedupSimilarityThreshold)
	}
	if cfg.MailFetchTimeout != 5*time.Second {
		t.Errorf("fetch timeout = %v", cfg.MailFetchTimeout)
	}
	if cfg.RedisCacheTTL != 48*time.Hour {
		t.Errorf("redis ttl = %v", cfg.RedisCacheTTL)
	}
	if !cfg.ResumeFromLastSync {
		t.Error("expected resume from last sync")
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.WorkerCount)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing database", map[string]string{"DATABASE_URL": ""}, "DATABASE_URL"},
		{"threshold above one", map[string]string{"DEDUP_SIMILARITY_THRESHOLD": "1.5"}, "DEDUP_SIMILARITY_THRESHOLD"},
		{"zero cache", map[string]string{"EXTRACTION_CACHE_SIZE": "0"}, "EXTRACTION_CACHE_SIZE"},
		{"default above cap", map[string]string{"SYNC_DEFAULT_MAX_RESULTS": "600"}, "SYNC_MAX_RESULTS_CAP"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/tracker")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}
