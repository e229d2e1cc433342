package out

import (
	"context"
	"time"

	"tracker_server/core/domain"
)

// InferencePort calls the structured-extraction model and returns its raw JSON text.
type InferencePort interface {
	ExtractJobFields(ctx context.Context, req *InferenceRequest) (string, error)
}

type InferenceRequest struct {
	Sender  string
	Subject string
	Body    string
}

// ExtractionCache maps a content hash to a validated extraction result.
type ExtractionCache interface {
	Get(ctx context.Context, hash string) (*domain.ExtractionResult, bool)
	Put(ctx context.Context, hash string, result *domain.ExtractionResult)
	Clear(ctx context.Context)
	Stats() CacheStats
}

type CacheStats struct {
	Size       int   `json:"size"`
	MaxEntries int   `json:"max_entries"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
}

// HitRate returns hits / (hits + misses).
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// ExtractionAuditStore keeps rejected or failed inference responses for inspection.
type ExtractionAuditStore interface {
	RecordExtraction(ctx context.Context, entry *ExtractionAuditEntry) error
}

type ExtractionAuditEntry struct {
	ContentHash string    `bson:"content_hash"`
	Sender      string    `bson:"sender"`
	Subject     string    `bson:"subject"`
	Outcome     string    `bson:"outcome"`
	Reason      string    `bson:"reason"`
	RawResponse string    `bson:"raw_response,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}
