package extraction

import (
	"strings"

	"tracker_server/core/domain"

	"github.com/goccy/go-json"
)

// inferencePayload mirrors the model's JSON contract. Pointers distinguish absent from empty.
type inferencePayload struct {
	IsJobRelated *bool   `json:"isJobRelated"`
	Company      *string `json:"company"`
	Title        *string `json:"title"`
	Status       *string `json:"status"`
	Location     *string `json:"location"`
}

// ParseExtractionResponse validates raw model output. A job-related result must carry
// non-blank company, title and location and a status from the canonical set.
// Anything else is a *domain.ValidationError.
func ParseExtractionResponse(raw string) (*domain.ExtractionResult, error) {
	cleaned := stripCodeFence(raw)
	if cleaned == "" {
		return nil, &domain.ValidationError{Reason: "empty response"}
	}

	var p inferencePayload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return nil, &domain.ValidationError{Reason: "malformed JSON: " + err.Error()}
	}
	if p.IsJobRelated == nil {
		return nil, &domain.ValidationError{Field: "isJobRelated", Reason: "missing"}
	}
	if !*p.IsJobRelated {
		return &domain.ExtractionResult{IsJobRelated: false, Source: domain.SourceModel}, nil
	}

	company, err := requiredField("company", p.Company)
	if err != nil {
		return nil, err
	}
	title, err := requiredField("title", p.Title)
	if err != nil {
		return nil, err
	}
	location, err := requiredField("location", p.Location)
	if err != nil {
		return nil, err
	}
	rawStatus, err := requiredField("status", p.Status)
	if err != nil {
		return nil, err
	}
	status, ok := domain.ParseApplicationStatus(rawStatus)
	if !ok {
		return nil, &domain.ValidationError{Field: "status", Reason: "not a canonical status: " + rawStatus}
	}

	return &domain.ExtractionResult{
		IsJobRelated: true,
		Company:      company,
		Title:        title,
		Status:       status,
		Location:     location,
		Source:       domain.SourceModel,
	}, nil
}

func requiredField(name string, v *string) (string, error) {
	if v == nil {
		return "", &domain.ValidationError{Field: name, Reason: "missing"}
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return "", &domain.ValidationError{Field: name, Reason: "blank"}
	}
	return s, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
