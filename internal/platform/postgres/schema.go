package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied at startup. Statements are idempotent so a restart
// against an existing database is a no-op.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS organizations (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		status     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS organizations_name_key
		ON organizations (lower(name))`,

	`CREATE TABLE IF NOT EXISTS employees (
		id            UUID PRIMARY KEY,
		org_id        UUID NOT NULL,
		full_name     TEXT NOT NULL,
		email         TEXT NOT NULL,
		title         TEXT NOT NULL DEFAULT '',
		department_id UUID,
		status        TEXT NOT NULL,
		joined_at     TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS employees_org_email_key
		ON employees (org_id, lower(email))`,
	`CREATE INDEX IF NOT EXISTS employees_org_department_idx
		ON employees (org_id, department_id)`,

	`CREATE TABLE IF NOT EXISTS departments (
		id          UUID PRIMARY KEY,
		org_id      UUID NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		head_id     UUID,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS departments_org_name_key
		ON departments (org_id, lower(name))`,

	`CREATE TABLE IF NOT EXISTS posts (
		id         UUID PRIMARY KEY,
		org_id     UUID NOT NULL,
		author_id  UUID NOT NULL,
		body       TEXT NOT NULL,
		poll       JSONB,
		edited     BOOLEAN NOT NULL DEFAULT FALSE,
		deleted    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS posts_org_created_idx
		ON posts (org_id, created_at DESC, id DESC)`,

	`CREATE TABLE IF NOT EXISTS comments (
		id         UUID PRIMARY KEY,
		post_id    UUID NOT NULL,
		org_id     UUID NOT NULL,
		author_id  UUID NOT NULL,
		body       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS comments_post_idx
		ON comments (post_id, org_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS reactions (
		post_id     UUID NOT NULL,
		org_id      UUID NOT NULL,
		employee_id UUID NOT NULL,
		kind        TEXT NOT NULL,
		set_at      TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (post_id, employee_id)
	)`,

	`CREATE TABLE IF NOT EXISTS poll_ballots (
		post_id     UUID NOT NULL,
		org_id      UUID NOT NULL,
		employee_id UUID NOT NULL,
		choices     BIGINT[] NOT NULL,
		cast_at     TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (post_id, employee_id)
	)`,

	`CREATE TABLE IF NOT EXISTS kudos (
		id         UUID PRIMARY KEY,
		org_id     UUID NOT NULL,
		from_id    UUID NOT NULL,
		to_id      UUID NOT NULL,
		badge      TEXT NOT NULL,
		message    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS kudos_org_to_idx ON kudos (org_id, to_id)`,
	`CREATE INDEX IF NOT EXISTS kudos_org_from_idx ON kudos (org_id, from_id)`,

	`CREATE TABLE IF NOT EXISTS leave_requests (
		id          UUID PRIMARY KEY,
		org_id      UUID NOT NULL,
		employee_id UUID NOT NULL,
		type        TEXT NOT NULL,
		from_day    TIMESTAMPTZ NOT NULL,
		to_day      TIMESTAMPTZ NOT NULL,
		note        TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL,
		decided_by  UUID,
		decided_at  TIMESTAMPTZ,
		reason      TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS leave_requests_org_employee_idx
		ON leave_requests (org_id, employee_id)`,

	`CREATE TABLE IF NOT EXISTS surveys (
		id         UUID PRIMARY KEY,
		org_id     UUID NOT NULL,
		title      TEXT NOT NULL,
		status     TEXT NOT NULL,
		questions  JSONB NOT NULL,
		next_qid   INTEGER NOT NULL,
		created_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		opened_at  TIMESTAMPTZ,
		closed_at  TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS survey_responses (
		survey_id    UUID NOT NULL,
		org_id       UUID NOT NULL,
		employee_id  UUID NOT NULL,
		answers      JSONB NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (survey_id, employee_id)
	)`,

	`CREATE TABLE IF NOT EXISTS listings (
		id          UUID PRIMARY KEY,
		org_id      UUID NOT NULL,
		seller_id   UUID NOT NULL,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price       BIGINT NOT NULL,
		currency    TEXT NOT NULL,
		status      TEXT NOT NULL,
		reserved_by UUID,
		buyer_id    UUID,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS listings_org_status_idx
		ON listings (org_id, status)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id           UUID PRIMARY KEY,
		org_id       UUID NOT NULL,
		recipient_id UUID NOT NULL,
		kind         TEXT NOT NULL,
		subject      TEXT NOT NULL DEFAULT '',
		message      TEXT NOT NULL,
		read         BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_recipient_idx
		ON notifications (org_id, recipient_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS audit_events (
		id         UUID PRIMARY KEY,
		category   TEXT NOT NULL,
		timestamp  TIMESTAMPTZ NOT NULL,
		org_id     UUID NOT NULL,
		actor_id   UUID,
		subject    TEXT NOT NULL DEFAULT '',
		action     TEXT NOT NULL,
		detail     TEXT NOT NULL DEFAULT '',
		request_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS audit_events_org_time_idx
		ON audit_events (org_id, timestamp DESC)`,

	`CREATE TABLE IF NOT EXISTS audit_outbox (
		id         UUID PRIMARY KEY,
		org_id     UUID NOT NULL,
		event_type TEXT NOT NULL,
		payload    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		shipped_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS audit_outbox_pending_idx
		ON audit_outbox (created_at) WHERE shipped_at IS NULL`,
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
