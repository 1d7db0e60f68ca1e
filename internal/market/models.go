// Package market is the internal marketplace: employees list items for sale
// inside their org. A listing moves open → reserved → sold, or is withdrawn
// while still open.
package market

import (
	"regexp"
	"strings"
	"time"

	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusReserved  Status = "reserved"
	StatusSold      Status = "sold"
	StatusWithdrawn Status = "withdrawn"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Listing prices are integer minor units (cents, pence) to keep arithmetic
// exact.
type Listing struct {
	ID          id.ListingID  `json:"id"`
	OrgID       id.OrgID      `json:"org_id"`
	Seller      id.EmployeeID `json:"seller_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Price       int64         `json:"price"`
	Currency    string        `json:"currency"`
	Status      Status        `json:"status"`
	ReservedBy  id.EmployeeID `json:"reserved_by,omitzero"`
	Buyer       id.EmployeeID `json:"buyer_id,omitzero"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func NewListing(listingID id.ListingID, orgID id.OrgID, seller id.EmployeeID,
	title, description string, price int64, currency string, now time.Time) (*Listing, error) {

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "listing title cannot be empty")
	}
	if len(title) > 200 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "listing title must be 200 characters or less")
	}
	if price <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "price must be positive")
	}
	if !currencyPattern.MatchString(currency) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "currency must be an uppercase ISO 4217 code")
	}
	return &Listing{
		ID:          listingID,
		OrgID:       orgID,
		Seller:      seller,
		Title:       title,
		Description: strings.TrimSpace(description),
		Price:       price,
		Currency:    currency,
		Status:      StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (l *Listing) CanReserve(buyer id.EmployeeID) error {
	if l.Status != StatusOpen {
		return dErrors.Newf(dErrors.CodeConflict, "listing is %s", l.Status)
	}
	if buyer == l.Seller {
		return dErrors.New(dErrors.CodeForbidden, "sellers cannot reserve their own listing")
	}
	return nil
}

func (l *Listing) ApplyReservation(buyer id.EmployeeID, now time.Time) {
	l.Status = StatusReserved
	l.ReservedBy = buyer
	l.UpdatedAt = now
}

// CanRelease allows the reserving buyer or the seller to drop a reservation.
func (l *Listing) CanRelease(actor id.EmployeeID) error {
	if l.Status != StatusReserved {
		return dErrors.Newf(dErrors.CodeConflict, "listing is %s, not reserved", l.Status)
	}
	if actor != l.ReservedBy && actor != l.Seller {
		return dErrors.New(dErrors.CodeForbidden, "only the buyer or seller can release a reservation")
	}
	return nil
}

func (l *Listing) ApplyRelease(now time.Time) {
	l.Status = StatusOpen
	l.ReservedBy = id.EmployeeID{}
	l.UpdatedAt = now
}

func (l *Listing) CanComplete(seller id.EmployeeID) error {
	if l.Status != StatusReserved {
		return dErrors.Newf(dErrors.CodeConflict, "listing is %s, not reserved", l.Status)
	}
	if seller != l.Seller {
		return dErrors.New(dErrors.CodeForbidden, "only the seller can complete a sale")
	}
	return nil
}

func (l *Listing) ApplySale(now time.Time) {
	l.Status = StatusSold
	l.Buyer = l.ReservedBy
	l.ReservedBy = id.EmployeeID{}
	l.UpdatedAt = now
}

func (l *Listing) CanWithdraw(seller id.EmployeeID) error {
	if l.Status != StatusOpen {
		return dErrors.Newf(dErrors.CodeConflict, "listing is %s, only open listings can be withdrawn", l.Status)
	}
	if seller != l.Seller {
		return dErrors.New(dErrors.CodeForbidden, "only the seller can withdraw a listing")
	}
	return nil
}

func (l *Listing) ApplyWithdrawal(now time.Time) {
	l.Status = StatusWithdrawn
	l.UpdatedAt = now
}
