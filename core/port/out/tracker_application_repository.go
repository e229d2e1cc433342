package out

import (
	"context"
	"errors"
	"time"
)

// ErrRecordExists is returned by CreateRecord when the user already has a record for the source message.
var ErrRecordExists = errors.New("application record already exists")

// ApplicationRepository defines the outbound port for job application records.
type ApplicationRepository interface {
	// CreateRecord inserts a record and returns its ID.
	CreateRecord(ctx context.Context, entity *ApplicationEntity) (int64, error)

	// FindDuplicateCandidate returns the record with the same normalized company, title
	// and application date, or nil when none exists.
	FindDuplicateCandidate(ctx context.Context, userID, normalizedCompany, normalizedTitle string, dateApplied time.Time) (*ApplicationEntity, error)

	// FindRecentRecords returns the user's records created inside the window, newest first.
	FindRecentRecords(ctx context.Context, userID string, window LookbackWindow) ([]*ApplicationEntity, error)
}

// LookbackWindow bounds the fuzzy duplicate scan.
type LookbackWindow struct {
	Since time.Time
	Limit int
}

// ApplicationEntity represents a job application in persistence.
type ApplicationEntity struct {
	ID                int64     `db:"id"`
	UserID            string    `db:"user_id"`
	Company           string    `db:"company"`
	Title             string    `db:"title"`
	Status            string    `db:"status"`
	Location          string    `db:"location"`
	NormalizedCompany string    `db:"normalized_company"`
	NormalizedTitle   string    `db:"normalized_title"`
	DateApplied       time.Time `db:"date_applied"`
	SourceMessageID   string    `db:"source_message_id"`
	Confidence        int       `db:"confidence"`
	CreatedAt         time.Time `db:"created_at"`
}
