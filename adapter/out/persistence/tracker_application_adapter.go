package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tracker_server/core/port/out"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// ApplicationAdapter implements out.ApplicationRepository using PostgreSQL.
type ApplicationAdapter struct {
	db *sqlx.DB
}

func NewApplicationAdapter(db *sqlx.DB) *ApplicationAdapter {
	return &ApplicationAdapter{db: db}
}

const applicationColumns = `
	id, user_id, company, title, status, location,
	normalized_company, normalized_title, date_applied,
	source_message_id, confidence, created_at`

// CreateRecord inserts the record. A second record for the same (user, source message)
// returns out.ErrRecordExists.
func (a *ApplicationAdapter) CreateRecord(ctx context.Context, entity *out.ApplicationEntity) (int64, error) {
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO job_applications (
			user_id, company, title, status, location,
			normalized_company, normalized_title, date_applied,
			source_message_id, confidence, created_at
		) VALUES (
			:user_id, :company, :title, :status, :location,
			:normalized_company, :normalized_title, :date_applied,
			:source_message_id, :confidence, :created_at
		) RETURNING id`

	rows, err := a.db.NamedQueryContext(ctx, query, entity)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, out.ErrRecordExists
		}
		return 0, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			if isUniqueViolation(err) {
				return 0, out.ErrRecordExists
			}
			return 0, err
		}
		return 0, sql.ErrNoRows
	}
	if err := rows.Scan(&entity.ID); err != nil {
		return 0, err
	}
	return entity.ID, nil
}

func (a *ApplicationAdapter) FindDuplicateCandidate(ctx context.Context, userID, normalizedCompany, normalizedTitle string, dateApplied time.Time) (*out.ApplicationEntity, error) {
	var entity out.ApplicationEntity
	query := `SELECT ` + applicationColumns + `
		FROM job_applications
		WHERE user_id = $1
		  AND normalized_company = $2
		  AND normalized_title = $3
		  AND date_applied = $4
		ORDER BY created_at DESC
		LIMIT 1`

	err := a.db.GetContext(ctx, &entity, query, userID, normalizedCompany, normalizedTitle, dateApplied)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (a *ApplicationAdapter) FindRecentRecords(ctx context.Context, userID string, window out.LookbackWindow) ([]*out.ApplicationEntity, error) {
	var entities []*out.ApplicationEntity
	query := `SELECT ` + applicationColumns + `
		FROM job_applications
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3`

	if err := a.db.SelectContext(ctx, &entities, query, userID, window.Since, window.Limit); err != nil {
		return nil, err
	}
	return entities, nil
}

// isUniqueViolation recognises SQLSTATE 23505 from both the pgx and lib/pq drivers.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}

var _ out.ApplicationRepository = (*ApplicationAdapter)(nil)
