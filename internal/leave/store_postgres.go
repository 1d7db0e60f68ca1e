package leave

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "crewpulse/pkg/domain"
	"crewpulse/pkg/platform/sentinel"
)

// Postgres persists leave requests. Submissions serialize per employee on a
// transaction-scoped advisory lock before the overlap check: row locks cannot
// guard the no-overlap rule when the employee has no rows yet.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreateIfNoOverlap(ctx context.Context, r *Request) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1::text || $2::text, 0))`,
		uuid.UUID(r.OrgID), uuid.UUID(r.Employee))
	if err != nil {
		return fmt.Errorf("lock employee leave: %w", err)
	}

	var overlaps bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM leave_requests
			WHERE org_id = $1 AND employee_id = $2
			  AND status IN ('requested', 'approved')
			  AND from_day < $4 AND $3 < to_day
		)
	`, uuid.UUID(r.OrgID), uuid.UUID(r.Employee), r.From, r.To).Scan(&overlaps)
	if err != nil {
		return fmt.Errorf("check overlap: %w", err)
	}
	if overlaps {
		return sentinel.ErrConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO leave_requests
			(id, org_id, employee_id, type, from_day, to_day, note, status,
			 decided_by, decided_at, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, NULL, '', $9, $10)
	`, uuid.UUID(r.ID), uuid.UUID(r.OrgID), uuid.UUID(r.Employee), string(r.Type),
		r.From, r.To, r.Note, string(r.Status), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert leave request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit leave request: %w", err)
	}
	return nil
}

func (s *Postgres) FindRequest(ctx context.Context, orgID id.OrgID, reqID id.LeaveRequestID) (*Request, error) {
	row := s.db.QueryRowContext(ctx, requestSelect+` WHERE id = $1 AND org_id = $2`,
		uuid.UUID(reqID), uuid.UUID(orgID))
	return scanRequest(row)
}

// ExecuteRequest loads the row FOR UPDATE, runs validate and mutate, and
// writes the result back inside one transaction.
func (s *Postgres) ExecuteRequest(ctx context.Context, orgID id.OrgID, reqID id.LeaveRequestID,
	validate func(*Request) error, mutate func(*Request) error) (*Request, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, requestSelect+` WHERE id = $1 AND org_id = $2 FOR UPDATE`,
		uuid.UUID(reqID), uuid.UUID(orgID))
	req, err := scanRequest(row)
	if err != nil {
		return nil, err
	}

	if err := validate(req); err != nil {
		return nil, err
	}
	if err := mutate(req); err != nil {
		return nil, err
	}

	var decidedBy any
	if !req.DecidedBy.IsNil() {
		decidedBy = uuid.UUID(req.DecidedBy)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE leave_requests
		SET status = $2, decided_by = $3, decided_at = $4, reason = $5, updated_at = $6
		WHERE id = $1
	`, uuid.UUID(req.ID), string(req.Status), decidedBy, req.DecidedAt, req.Reason, req.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update leave request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit leave update: %w", err)
	}
	return req, nil
}

func (s *Postgres) ListByEmployee(ctx context.Context, orgID id.OrgID, employee id.EmployeeID) ([]*Request, error) {
	return s.list(ctx, requestSelect+`
		WHERE org_id = $1 AND employee_id = $2
		ORDER BY created_at DESC
	`, uuid.UUID(orgID), uuid.UUID(employee))
}

func (s *Postgres) ListPending(ctx context.Context, orgID id.OrgID) ([]*Request, error) {
	return s.list(ctx, requestSelect+`
		WHERE org_id = $1 AND status = 'requested'
		ORDER BY created_at DESC
	`, uuid.UUID(orgID))
}

func (s *Postgres) list(ctx context.Context, query string, args ...any) ([]*Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leave requests: %w", err)
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

const requestSelect = `
	SELECT id, org_id, employee_id, type, from_day, to_day, note, status,
	       decided_by, decided_at, reason, created_at, updated_at
	FROM leave_requests`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var (
		r                    Request
		rawID, rawOrg        uuid.UUID
		rawEmployee          uuid.UUID
		rawDecidedBy         *uuid.UUID
		leaveType, status    string
	)
	err := row.Scan(&rawID, &rawOrg, &rawEmployee, &leaveType, &r.From, &r.To, &r.Note,
		&status, &rawDecidedBy, &r.DecidedAt, &r.Reason, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan leave request: %w", err)
	}
	r.ID = id.LeaveRequestID(rawID)
	r.OrgID = id.OrgID(rawOrg)
	r.Employee = id.EmployeeID(rawEmployee)
	if rawDecidedBy != nil {
		r.DecidedBy = id.EmployeeID(*rawDecidedBy)
	}
	r.Type = LeaveType(leaveType)
	r.Status = Status(status)
	return &r, nil
}
