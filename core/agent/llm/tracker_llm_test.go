package llm

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"tracker_server/core/port/out"
)

func TestTruncateBody(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		maxLen   int
		expected string
	}{
		{
			name:     "short body",
			body:     "Hello world",
			maxLen:   100,
			expected: "Hello world",
		},
		{
			name:     "exact length",
			body:     "Hello",
			maxLen:   5,
			expected: "Hello",
		},
		{
			name:     "truncated",
			body:     "Hello world, this is a long message",
			maxLen:   10,
			expected: "Hello worl...",
		},
		{
			name:     "multi-byte rune at the cut",
			body:     "Offre chez Société Générale",
			maxLen:   16,
			expected: "Offre chez Soci...",
		},
		{
			name:     "cjk body",
			body:     "面接のご案内です",
			maxLen:   4,
			expected: "面...",
		},
		{
			name:     "empty body",
			body:     "",
			maxLen:   100,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := truncateBody(tt.body, tt.maxLen)
			if !utf8.ValidString(result) {
				t.Errorf("truncated body is not valid UTF-8: %q", result)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestBuildUserPrompt(t *testing.T) {
	prompt := buildUserPrompt(&out.InferenceRequest{
		Sender:  "jobs@acme.com",
		Subject: "Interview invitation",
		Body:    strings.Repeat("x", maxPromptBody+50),
	})

	if !strings.HasPrefix(prompt, "From: jobs@acme.com\nSubject: Interview invitation\n") {
		t.Errorf("unexpected prompt header: %q", prompt[:60])
	}
	if !strings.HasSuffix(prompt, "...") {
		t.Error("expected long body to be truncated")
	}
}

func TestCalculateCost(t *testing.T) {
	got := CalculateCost("gpt-4o-mini", 1_000_000, 1_000_000)
	if math.Abs(got-0.75) > 1e-9 {
		t.Errorf("expected 0.75, got %f", got)
	}
	if CalculateCost("unknown-model", 1000, 1000) != 0 {
		t.Error("expected zero cost for unknown model")
	}
}

func TestCostTracker(t *testing.T) {
	tracker := NewCostTracker()
	tracker.Track("gpt-4o-mini", 1000, 200)
	tracker.Track("gpt-4o-mini", 3000, 800)

	stats := tracker.GetStats()
	if stats.RequestCount != 2 {
		t.Errorf("expected 2 requests, got %d", stats.RequestCount)
	}
	if stats.TotalTokens != 5000 {
		t.Errorf("expected 5000 tokens, got %d", stats.TotalTokens)
	}
	if stats.TodayCost != stats.TotalCost {
		t.Errorf("expected today's cost %f to equal total %f", stats.TodayCost, stats.TotalCost)
	}
}

func TestNewClientWithConfig_Defaults(t *testing.T) {
	c := NewClientWithConfig(ClientConfig{APIKey: "sk-test"})
	if c.Model() != DefaultModel {
		t.Errorf("expected default model %s, got %s", DefaultModel, c.Model())
	}
	if c.maxTokens != defaultMaxTokens {
		t.Errorf("expected %d max tokens, got %d", defaultMaxTokens, c.maxTokens)
	}
}
