package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "crewpulse/pkg/domain"
	audit "crewpulse/pkg/platform/audit"
	txcontext "crewpulse/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern. Events
// are written to the outbox table in the caller's transaction when one is on
// the context; the relay publishes rows to Kafka and marks them shipped.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON document shipped to Kafka.
type outboxPayload struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	OrgID     string `json:"org_id"`
	ActorID   string `json:"actor_id,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Action    string `json:"action"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Append writes an audit event to the outbox and materializes it into
// audit_events for querying.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	category := event.Category
	if category == "" {
		category = audit.Action(event.Action).Category()
	}

	payload := outboxPayload{
		ID:        eventID.String(),
		Category:  string(category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		OrgID:     event.OrgID.String(),
		Subject:   event.Subject,
		Action:    event.Action,
		Detail:    event.Detail,
		RequestID: event.RequestID,
	}
	if !event.ActorID.IsNil() {
		payload.ActorID = event.ActorID.String()
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	exec := s.execer(ctx)
	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_outbox (id, org_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, eventID, uuid.UUID(event.OrgID), event.Action, payloadBytes, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}

	var actorID *uuid.UUID
	if !event.ActorID.IsNil() {
		a := uuid.UUID(event.ActorID)
		actorID = &a
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_events (id, category, timestamp, org_id, actor_id, subject, action, detail, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, eventID, string(category), event.Timestamp, uuid.UUID(event.OrgID), actorID,
		event.Subject, event.Action, event.Detail, event.RequestID)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByOrg returns the most recent events for an organization.
func (s *Store) ListByOrg(ctx context.Context, orgID id.OrgID, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, timestamp, org_id, actor_id, subject, action, detail, request_id
		FROM audit_events
		WHERE org_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`, uuid.UUID(orgID), limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			category string
			event    audit.Event
			orgRaw   uuid.UUID
			actorRaw *uuid.UUID
		)
		if err := rows.Scan(&category, &event.Timestamp, &orgRaw, &actorRaw,
			&event.Subject, &event.Action, &event.Detail, &event.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		event.OrgID = id.OrgID(orgRaw)
		if actorRaw != nil {
			event.ActorID = id.EmployeeID(*actorRaw)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// OutboxEntry is a pending row awaiting relay to Kafka.
type OutboxEntry struct {
	ID      uuid.UUID
	OrgID   uuid.UUID
	Type    string
	Payload []byte
}

// PendingOutbox returns unshipped entries oldest first.
func (s *Store) PendingOutbox(ctx context.Context, limit int) ([]OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, event_type, payload
		FROM audit_outbox
		WHERE shipped_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.OrgID, &e.Type, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkShipped stamps entries as relayed.
func (s *Store) MarkShipped(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE audit_outbox SET shipped_at = $1 WHERE id = ANY($2)
	`, time.Now().UTC(), pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark outbox shipped: %w", err)
	}
	return nil
}
