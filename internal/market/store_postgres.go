package market

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "crewpulse/pkg/domain"
	"crewpulse/pkg/platform/sentinel"
)

// Postgres persists marketplace listings.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreateListing(ctx context.Context, l *Listing) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO listings
			(id, org_id, seller_id, title, description, price, currency, status,
			 reserved_by, buyer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, NULL, $9, $10)
	`, uuid.UUID(l.ID), uuid.UUID(l.OrgID), uuid.UUID(l.Seller), l.Title, l.Description,
		l.Price, l.Currency, string(l.Status), l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (s *Postgres) FindListing(ctx context.Context, orgID id.OrgID, listingID id.ListingID) (*Listing, error) {
	row := s.db.QueryRowContext(ctx, listingSelect+` WHERE id = $1 AND org_id = $2`,
		uuid.UUID(listingID), uuid.UUID(orgID))
	return scanListing(row)
}

// ExecuteListing loads the row FOR UPDATE, runs validate and mutate, and
// writes the result back inside one transaction.
func (s *Postgres) ExecuteListing(ctx context.Context, orgID id.OrgID, listingID id.ListingID,
	validate func(*Listing) error, mutate func(*Listing) error) (*Listing, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, listingSelect+` WHERE id = $1 AND org_id = $2 FOR UPDATE`,
		uuid.UUID(listingID), uuid.UUID(orgID))
	listing, err := scanListing(row)
	if err != nil {
		return nil, err
	}

	if err := validate(listing); err != nil {
		return nil, err
	}
	if err := mutate(listing); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE listings
		SET status = $2, reserved_by = $3, buyer_id = $4, updated_at = $5
		WHERE id = $1
	`, uuid.UUID(listing.ID), string(listing.Status),
		nullableUUID(uuid.UUID(listing.ReservedBy)), nullableUUID(uuid.UUID(listing.Buyer)),
		listing.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update listing: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit listing update: %w", err)
	}
	return listing, nil
}

func (s *Postgres) ListOpen(ctx context.Context, orgID id.OrgID, limit int) ([]*Listing, error) {
	rows, err := s.db.QueryContext(ctx, listingSelect+`
		WHERE org_id = $1 AND status = 'open'
		ORDER BY created_at DESC LIMIT $2
	`, uuid.UUID(orgID), limit)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var out []*Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, listing)
	}
	return out, rows.Err()
}

const listingSelect = `
	SELECT id, org_id, seller_id, title, description, price, currency, status,
	       reserved_by, buyer_id, created_at, updated_at
	FROM listings`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*Listing, error) {
	var (
		l                  Listing
		rawID, rawOrg      uuid.UUID
		rawSeller          uuid.UUID
		rawReserved        *uuid.UUID
		rawBuyer           *uuid.UUID
		status             string
	)
	err := row.Scan(&rawID, &rawOrg, &rawSeller, &l.Title, &l.Description, &l.Price,
		&l.Currency, &status, &rawReserved, &rawBuyer, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	l.ID = id.ListingID(rawID)
	l.OrgID = id.OrgID(rawOrg)
	l.Seller = id.EmployeeID(rawSeller)
	if rawReserved != nil {
		l.ReservedBy = id.EmployeeID(*rawReserved)
	}
	if rawBuyer != nil {
		l.Buyer = id.EmployeeID(*rawBuyer)
	}
	l.Status = Status(status)
	return &l, nil
}

func nullableUUID(u uuid.UUID) any {
	if u == uuid.Nil {
		return nil
	}
	return u
}
