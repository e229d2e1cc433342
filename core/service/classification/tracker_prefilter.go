package classification

import "strings"

// statusKeywords name the canonical application statuses. They are always matched,
// so a message that mentions a status is never dropped before extraction.
var statusKeywords = []string{"applied", "interview", "offer", "rejected"}

// DefaultKeywords widen the net beyond status words.
var DefaultKeywords = []string{
	"application",
	"applying",
	"position",
	"candidate",
	"recruit",
	"hiring",
	"job",
	"career",
	"opportunit",
	"assessment",
	"phone screen",
	"onsite",
	"unfortunately",
	"move forward",
	"next steps",
	"thank you for your interest",
}

// PreFilter is a cheap keyword gate in front of the extractor.
// It trades precision for recall: false positives only cost one extraction.
type PreFilter struct {
	keywords []string
}

// NewPreFilter builds a filter from the status keywords, DefaultKeywords and any extra terms.
func NewPreFilter(extra ...string) *PreFilter {
	seen := make(map[string]bool)
	var keywords []string
	add := func(list []string) {
		for _, kw := range list {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" || seen[kw] {
				continue
			}
			seen[kw] = true
			keywords = append(keywords, kw)
		}
	}
	add(statusKeywords)
	add(DefaultKeywords)
	add(extra)
	return &PreFilter{keywords: keywords}
}

// IsCandidate reports whether subject or body contains any keyword, case-insensitively.
func (f *PreFilter) IsCandidate(subject, body string) bool {
	subject = strings.ToLower(subject)
	body = strings.ToLower(body)
	for _, kw := range f.keywords {
		if strings.Contains(subject, kw) || strings.Contains(body, kw) {
			return true
		}
	}
	return false
}

// Keywords returns the active keyword list.
func (f *PreFilter) Keywords() []string {
	out := make([]string, len(f.keywords))
	copy(out, f.keywords)
	return out
}
