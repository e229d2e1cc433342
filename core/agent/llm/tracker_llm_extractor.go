package llm

import (
	"context"
	"fmt"
	"unicode/utf8"

	"tracker_server/core/port/out"
)

const maxPromptBody = 4000

const jobExtractionPrompt = `You extract job application details from emails a candidate received.

Decide whether the email is about one of the candidate's own job applications
(confirmation, interview invitation, offer, rejection). Newsletters, job alerts
and recruiter marketing are NOT job related.

Respond with this exact JSON format:
{
  "isJobRelated": true|false,
  "company": "hiring company name",
  "title": "position title",
  "status": "Applied|Interview|Offer|Rejected",
  "location": "city, country, or Remote"
}

When isJobRelated is false, return only {"isJobRelated": false}.
When a location is not mentioned, use "Unknown".`

// JobExtractor adapts Client to out.InferencePort.
type JobExtractor struct {
	client *Client
}

var _ out.InferencePort = (*JobExtractor)(nil)

func NewJobExtractor(client *Client) *JobExtractor {
	return &JobExtractor{client: client}
}

// ExtractJobFields returns the model's raw JSON answer; validation is the caller's job.
func (e *JobExtractor) ExtractJobFields(ctx context.Context, req *out.InferenceRequest) (string, error) {
	return e.client.CompleteJSON(ctx, jobExtractionPrompt, buildUserPrompt(req))
}

func buildUserPrompt(req *out.InferenceRequest) string {
	return fmt.Sprintf("From: %s\nSubject: %s\n\nBody:\n%s", req.Sender, req.Subject, truncateBody(req.Body, maxPromptBody))
}

// truncateBody cuts body to at most maxLen bytes on a rune boundary.
func truncateBody(body string, maxLen int) string {
	if len(body) <= maxLen {
		return body
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "..."
}
