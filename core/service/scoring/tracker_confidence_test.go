package scoring

import (
	"testing"

	"tracker_server/core/domain"
)

func TestScore(t *testing.T) {
	s := NewConfidenceScorer(DefaultWeights)

	full := &domain.ExtractionResult{
		IsJobRelated: true,
		Company:      "Acme",
		Title:        "Engineer",
		Status:       domain.StatusOffer,
		Location:     "Remote",
		Source:       domain.SourceModel,
	}

	tests := []struct {
		name     string
		result   *domain.ExtractionResult
		expected int
	}{
		{"nil", nil, 0},
		{"not job related", &domain.ExtractionResult{IsJobRelated: false}, 0},
		{"all fields from model", full, 100},
		{"heuristic gets no bonus", &domain.ExtractionResult{IsJobRelated: true, Company: "Acme", Title: "Eng", Status: domain.StatusApplied, Location: "X", Source: domain.SourceHeuristic}, 80},
		{"unset source counts as model", &domain.ExtractionResult{IsJobRelated: true, Company: "Acme"}, 45},
		{"invalid status ignored", &domain.ExtractionResult{IsJobRelated: true, Status: "Pending", Source: domain.SourceHeuristic}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Score(tt.result, false); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestScore_CacheHitScoresTheSame(t *testing.T) {
	s := NewConfidenceScorer(DefaultWeights)
	r := &domain.ExtractionResult{IsJobRelated: true, Company: "Acme", Title: "Eng", Status: domain.StatusApplied, Location: "X"}

	if s.Score(r, true) != s.Score(r, false) {
		t.Error("expected cache hits to score like fresh results")
	}
}

func TestScore_Monotonic(t *testing.T) {
	s := NewConfidenceScorer(DefaultWeights)

	steps := []func(r *domain.ExtractionResult){
		func(r *domain.ExtractionResult) { r.Company = "Acme" },
		func(r *domain.ExtractionResult) { r.Title = "Eng" },
		func(r *domain.ExtractionResult) { r.Status = domain.StatusInterview },
		func(r *domain.ExtractionResult) { r.Location = "NYC" },
		func(r *domain.ExtractionResult) { r.Source = domain.SourceModel },
	}

	r := &domain.ExtractionResult{IsJobRelated: true, Source: domain.SourceHeuristic}
	prev := s.Score(r, false)
	for i, step := range steps {
		step(r)
		got := s.Score(r, false)
		if got < prev {
			t.Errorf("step %d lowered score from %d to %d", i, prev, got)
		}
		prev = got
	}
	if prev != 100 {
		t.Errorf("expected full result to score 100, got %d", prev)
	}
}

func TestScore_ClampsOversizedWeights(t *testing.T) {
	s := NewConfidenceScorer(Weights{Company: 90, Title: 90, Status: -5})
	r := &domain.ExtractionResult{IsJobRelated: true, Company: "A", Title: "B", Status: domain.StatusApplied}

	if got := s.Score(r, false); got != 100 {
		t.Errorf("expected clamp to 100, got %d", got)
	}
}
