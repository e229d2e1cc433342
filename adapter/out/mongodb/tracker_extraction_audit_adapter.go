package mongodb

import (
	"context"
	"time"

	"tracker_server/core/port/out"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// =============================================================================
// MongoDB Extraction Audit Adapter
// =============================================================================

const (
	collectionExtractionAudit = "extraction_audit"

	auditRetention   = 30 * 24 * time.Hour
	maxStoredRawSize = 8 * 1024
)

// ExtractionAuditAdapter implements out.ExtractionAuditStore using MongoDB.
type ExtractionAuditAdapter struct {
	collection *mongo.Collection
}

func NewExtractionAuditAdapter(db *mongo.Database) *ExtractionAuditAdapter {
	return &ExtractionAuditAdapter{collection: db.Collection(collectionExtractionAudit)}
}

// EnsureIndexes creates the lookup index and the retention TTL index.
func (a *ExtractionAuditAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "content_hash", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(auditRetention.Seconds())),
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (a *ExtractionAuditAdapter) RecordExtraction(ctx context.Context, entry *out.ExtractionAuditEntry) error {
	doc := *entry
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if len(doc.RawResponse) > maxStoredRawSize {
		doc.RawResponse = doc.RawResponse[:maxStoredRawSize]
	}

	_, err := a.collection.InsertOne(ctx, doc)
	return err
}

var _ out.ExtractionAuditStore = (*ExtractionAuditAdapter)(nil)
