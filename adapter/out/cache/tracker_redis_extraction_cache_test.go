package cache

import (
	"context"
	"testing"
	"time"

	"tracker_server/core/domain"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestRedisExtractionCache_Key(t *testing.T) {
	c := NewRedisExtractionCache(unreachableClient(), 0)
	if got := c.key("abc123"); got != "tracker:extract:abc123" {
		t.Errorf("unexpected key %q", got)
	}
	if c.ttl != DefaultTTL {
		t.Errorf("expected default ttl, got %v", c.ttl)
	}
}

func TestRedisExtractionCache_UnreachableIsMiss(t *testing.T) {
	client := unreachableClient()
	defer client.Close()
	c := NewRedisExtractionCache(client, time.Hour)
	ctx := context.Background()

	c.Put(ctx, "h", &domain.ExtractionResult{IsJobRelated: false})
	if _, ok := c.Get(ctx, "h"); ok {
		t.Fatal("expected miss when redis is unreachable")
	}
	c.Clear(ctx)

	stats := c.Stats()
	if stats.Hits != 0 || stats.Misses != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

type rawEntryStore struct {
	entries map[string]string
}

func (s *rawEntryStore) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal([]byte(raw), dest)
}

func (s *rawEntryStore) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.entries[key] = string(data)
	return nil
}

func (s *rawEntryStore) DeletePrefix(context.Context, string) (int64, error) {
	n := int64(len(s.entries))
	s.entries = map[string]string{}
	return n, nil
}

func TestRedisExtractionCache_RevalidatesEntries(t *testing.T) {
	tests := []struct {
		name    string
		stored  string
		wantHit bool
	}{
		{"complete result", `{"isJobRelated":true,"company":"Acme","title":"Engineer","status":"Offer","location":"Remote"}`, true},
		{"not job related", `{"isJobRelated":false}`, true},
		{"fields missing", `{"isJobRelated":true}`, false},
		{"blank company", `{"isJobRelated":true,"company":" ","title":"Engineer","status":"Offer","location":"Remote"}`, false},
		{"unknown status", `{"isJobRelated":true,"company":"Acme","title":"Engineer","status":"Ghosted","location":"Remote"}`, false},
		{"corrupt bytes", `{"isJobRel`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewRedisExtractionCache(unreachableClient(), time.Hour)
			c.cache = &rawEntryStore{entries: map[string]string{c.key("h"): tt.stored}}

			result, ok := c.Get(context.Background(), "h")
			if ok != tt.wantHit {
				t.Fatalf("hit = %v, want %v", ok, tt.wantHit)
			}
			if !ok && result != nil {
				t.Errorf("expected nil result on miss, got %+v", result)
			}
			stats := c.Stats()
			if tt.wantHit && stats.Hits != 1 || !tt.wantHit && stats.Misses != 1 {
				t.Errorf("unexpected stats: %+v", stats)
			}
		})
	}
}
