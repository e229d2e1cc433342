// Package scoring rates how complete an extraction result is.
package scoring

import (
	"strings"

	"tracker_server/core/domain"
)

// Weights assign points per populated field. Negative weights count as zero.
type Weights struct {
	Company        int
	Title          int
	Status         int
	Location       int
	ExtractorBonus int
}

var DefaultWeights = Weights{
	Company:        25,
	Title:          25,
	Status:         20,
	Location:       10,
	ExtractorBonus: 20,
}

// ConfidenceScorer maps an ExtractionResult to an integer in [0,100].
// Populating a field never lowers the score.
type ConfidenceScorer struct {
	weights Weights
}

func NewConfidenceScorer(w Weights) *ConfidenceScorer {
	return &ConfidenceScorer{weights: Weights{
		Company:        nonNegative(w.Company),
		Title:          nonNegative(w.Title),
		Status:         nonNegative(w.Status),
		Location:       nonNegative(w.Location),
		ExtractorBonus: nonNegative(w.ExtractorBonus),
	}}
}

// Score rates result. Cached results score like fresh ones: the cache only holds model output,
// so fromCache does not change the score.
func (s *ConfidenceScorer) Score(result *domain.ExtractionResult, fromCache bool) int {
	if result == nil || !result.IsJobRelated {
		return 0
	}

	score := 0
	if strings.TrimSpace(result.Company) != "" {
		score += s.weights.Company
	}
	if strings.TrimSpace(result.Title) != "" {
		score += s.weights.Title
	}
	if result.Status.IsValid() {
		score += s.weights.Status
	}
	if strings.TrimSpace(result.Location) != "" {
		score += s.weights.Location
	}
	if result.Source != domain.SourceHeuristic {
		score += s.weights.ExtractorBonus
	}

	if score > 100 {
		score = 100
	}
	return score
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
