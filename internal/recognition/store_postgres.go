package recognition

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "crewpulse/pkg/domain"
)

// Postgres persists kudos. Rows are immutable once written.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreateKudos(ctx context.Context, k *Kudos) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kudos (id, org_id, from_id, to_id, badge, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(k.ID), uuid.UUID(k.OrgID), uuid.UUID(k.From), uuid.UUID(k.To),
		string(k.Badge), k.Message, k.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert kudos: %w", err)
	}
	return nil
}

func (s *Postgres) ListReceived(ctx context.Context, orgID id.OrgID, employee id.EmployeeID, limit int) ([]*Kudos, error) {
	return s.list(ctx, `to_id`, orgID, employee, limit)
}

func (s *Postgres) ListGiven(ctx context.Context, orgID id.OrgID, employee id.EmployeeID, limit int) ([]*Kudos, error) {
	return s.list(ctx, `from_id`, orgID, employee, limit)
}

func (s *Postgres) list(ctx context.Context, column string, orgID id.OrgID, employee id.EmployeeID, limit int) ([]*Kudos, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, from_id, to_id, badge, message, created_at
		FROM kudos WHERE org_id = $1 AND `+column+` = $2
		ORDER BY created_at DESC LIMIT $3
	`, uuid.UUID(orgID), uuid.UUID(employee), limit)
	if err != nil {
		return nil, fmt.Errorf("query kudos: %w", err)
	}
	defer rows.Close()

	var out []*Kudos
	for rows.Next() {
		var (
			k                      Kudos
			rawID, rawOrg          uuid.UUID
			rawFrom, rawTo         uuid.UUID
			badge                  string
		)
		if err := rows.Scan(&rawID, &rawOrg, &rawFrom, &rawTo, &badge, &k.Message, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan kudos: %w", err)
		}
		k.ID = id.KudosID(rawID)
		k.OrgID = id.OrgID(rawOrg)
		k.From = id.EmployeeID(rawFrom)
		k.To = id.EmployeeID(rawTo)
		k.Badge = Badge(badge)
		out = append(out, &k)
	}
	return out, rows.Err()
}

func (s *Postgres) CountBadges(ctx context.Context, orgID id.OrgID, employee id.EmployeeID) (map[Badge]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT badge, count(*) FROM kudos
		WHERE org_id = $1 AND to_id = $2
		GROUP BY badge
	`, uuid.UUID(orgID), uuid.UUID(employee))
	if err != nil {
		return nil, fmt.Errorf("count badges: %w", err)
	}
	defer rows.Close()

	counts := make(map[Badge]int)
	for rows.Next() {
		var (
			badge string
			n     int
		)
		if err := rows.Scan(&badge, &n); err != nil {
			return nil, fmt.Errorf("scan badge count: %w", err)
		}
		counts[Badge(badge)] = n
	}
	return counts, rows.Err()
}
