package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"crewpulse/internal/org/models"
	id "crewpulse/pkg/domain"
	"crewpulse/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres persists organizations. Name uniqueness is enforced by a unique
// index on lower(name); the store translates that violation into
// sentinel.ErrConflict so services stay driver-agnostic.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreateIfNameAvailable(ctx context.Context, org *models.Organization) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(org.ID), org.Name, string(org.Status), org.CreatedAt, org.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, orgID id.OrgID) (*models.Organization, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, created_at, updated_at
		FROM organizations WHERE id = $1
	`, uuid.UUID(orgID))
	return scanOrg(row)
}

func (s *Postgres) FindByName(ctx context.Context, name string) (*models.Organization, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, created_at, updated_at
		FROM organizations WHERE lower(name) = lower($1)
	`, strings.TrimSpace(name))
	return scanOrg(row)
}

// Execute loads the row FOR UPDATE, runs validate and mutate, and writes the
// result back inside one transaction.
func (s *Postgres) Execute(ctx context.Context, orgID id.OrgID,
	validate func(*models.Organization) error,
	mutate func(*models.Organization)) (*models.Organization, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, name, status, created_at, updated_at
		FROM organizations WHERE id = $1
		FOR UPDATE
	`, uuid.UUID(orgID))
	org, err := scanOrg(row)
	if err != nil {
		return nil, err
	}

	if err := validate(org); err != nil {
		return nil, err
	}
	mutate(org)

	_, err = tx.ExecContext(ctx, `
		UPDATE organizations SET status = $2, updated_at = $3 WHERE id = $1
	`, uuid.UUID(org.ID), string(org.Status), org.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update organization: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit organization update: %w", err)
	}
	return org, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrg(row rowScanner) (*models.Organization, error) {
	var (
		org    models.Organization
		rawID  uuid.UUID
		status string
	)
	err := row.Scan(&rawID, &org.Name, &status, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan organization: %w", err)
	}
	org.ID = id.OrgID(rawID)
	org.Status = models.OrgStatus(status)
	return &org, nil
}
