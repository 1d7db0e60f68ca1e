package notification

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "crewpulse/pkg/domain"
	"crewpulse/pkg/platform/sentinel"
)

// Postgres persists inbox entries.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, n *Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, org_id, recipient_id, kind, subject, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(n.ID), uuid.UUID(n.OrgID), uuid.UUID(n.Recipient), string(n.Kind),
		n.Subject, n.Message, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Postgres) Exists(ctx context.Context, orgID id.OrgID, recipient id.EmployeeID, kind Kind, subject string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE org_id = $1 AND recipient_id = $2 AND kind = $3 AND subject = $4
		)
	`, uuid.UUID(orgID), uuid.UUID(recipient), string(kind), subject).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	return exists, nil
}

func (s *Postgres) ListByRecipient(ctx context.Context, orgID id.OrgID, recipient id.EmployeeID,
	unreadOnly bool, limit int) ([]*Notification, error) {

	query := `
		SELECT id, org_id, recipient_id, kind, subject, message, read, created_at
		FROM notifications WHERE org_id = $1 AND recipient_id = $2`
	if unreadOnly {
		query += ` AND NOT read`
	}
	query += ` ORDER BY created_at DESC LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(orgID), uuid.UUID(recipient), limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var (
			n             Notification
			rawID, rawOrg uuid.UUID
			rawRecipient  uuid.UUID
			kind          string
		)
		if err := rows.Scan(&rawID, &rawOrg, &rawRecipient, &kind, &n.Subject,
			&n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.ID = id.NotificationID(rawID)
		n.OrgID = id.OrgID(rawOrg)
		n.Recipient = id.EmployeeID(rawRecipient)
		n.Kind = Kind(kind)
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *Postgres) MarkRead(ctx context.Context, orgID id.OrgID, recipient id.EmployeeID, notifID id.NotificationID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE id = $1 AND org_id = $2 AND recipient_id = $3
	`, uuid.UUID(notifID), uuid.UUID(orgID), uuid.UUID(recipient))
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) MarkAllRead(ctx context.Context, orgID id.OrgID, recipient id.EmployeeID) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE org_id = $1 AND recipient_id = $2 AND NOT read
	`, uuid.UUID(orgID), uuid.UUID(recipient))
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
