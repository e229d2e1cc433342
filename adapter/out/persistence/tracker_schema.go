package persistence

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Schema creates the tables the adapters use. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS mail_credentials (
	user_id       UUID PRIMARY KEY,
	email         TEXT NOT NULL DEFAULT '',
	access_token  TEXT NOT NULL DEFAULT '',
	refresh_token TEXT NOT NULL DEFAULT '',
	expires_at    TIMESTAMPTZ NOT NULL,
	scopes        TEXT[] NOT NULL DEFAULT '{}',
	is_connected  BOOLEAN NOT NULL DEFAULT true,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS job_applications (
	id                 BIGSERIAL PRIMARY KEY,
	user_id            UUID NOT NULL,
	company            TEXT NOT NULL,
	title              TEXT NOT NULL,
	status             TEXT NOT NULL CHECK (status IN ('Applied', 'Interview', 'Offer', 'Rejected')),
	location           TEXT NOT NULL,
	normalized_company TEXT NOT NULL,
	normalized_title   TEXT NOT NULL,
	date_applied       DATE NOT NULL,
	source_message_id  TEXT NOT NULL,
	confidence         INTEGER NOT NULL CHECK (confidence BETWEEN 0 AND 100),
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, source_message_id)
);

CREATE INDEX IF NOT EXISTS idx_job_applications_match
	ON job_applications (user_id, normalized_company, normalized_title, date_applied);

CREATE INDEX IF NOT EXISTS idx_job_applications_recent
	ON job_applications (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS sync_runs (
	id               BIGSERIAL PRIMARY KEY,
	user_id          UUID NOT NULL,
	started_at       TIMESTAMPTZ NOT NULL,
	finished_at      TIMESTAMPTZ NOT NULL,
	total_emails     INTEGER NOT NULL,
	job_emails       INTEGER NOT NULL,
	new_applications INTEGER NOT NULL,
	duplicates       INTEGER NOT NULL,
	errors           INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_user ON sync_runs (user_id, finished_at DESC);
`

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}
