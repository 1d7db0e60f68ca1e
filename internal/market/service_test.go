package market

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewpulse/internal/directory"
	"crewpulse/internal/events"
	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
	"crewpulse/pkg/requestcontext"
)

type openDirectory struct {
	orgID id.OrgID
}

func (d openDirectory) RequireActiveEmployee(_ context.Context, orgID id.OrgID, employeeID id.EmployeeID) (*directory.Employee, error) {
	if orgID != d.orgID {
		return nil, dErrors.New(dErrors.CodeNotFound, "employee not found")
	}
	return &directory.Employee{ID: employeeID, OrgID: orgID, Status: directory.EmployeeActive}, nil
}

type capturingPublisher struct {
	events []events.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event events.Event) {
	p.events = append(p.events, event)
}

type marketFixture struct {
	svc       *Service
	publisher *capturingPublisher
	orgID     id.OrgID
	seller    id.EmployeeID
	buyer     id.EmployeeID
}

func newMarketFixture(t *testing.T) *marketFixture {
	t.Helper()
	orgID := id.OrgID(uuid.New())
	publisher := &capturingPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &marketFixture{
		svc:       NewService(NewInMemory(), openDirectory{orgID: orgID}, publisher, logger),
		publisher: publisher,
		orgID:     orgID,
		seller:    id.EmployeeID(uuid.New()),
		buyer:     id.EmployeeID(uuid.New()),
	}
}

func marketCtx() context.Context {
	return requestcontext.WithTime(context.Background(),
		time.Date(2026, 7, 15, 16, 0, 0, 0, time.UTC))
}

func (f *marketFixture) listing(t *testing.T) *Listing {
	t.Helper()
	listing, err := f.svc.Create(marketCtx(), f.orgID, f.seller, "Standing desk", "barely used", 12500, "EUR")
	require.NoError(t, err)
	return listing
}

func TestCreateListing_Validation(t *testing.T) {
	f := newMarketFixture(t)
	ctx := marketCtx()

	tests := []struct {
		name     string
		title    string
		price    int64
		currency string
	}{
		{"empty title", "  ", 100, "EUR"},
		{"zero price", "desk", 0, "EUR"},
		{"negative price", "desk", -5, "EUR"},
		{"lowercase currency", "desk", 100, "eur"},
		{"bogus currency", "desk", 100, "EURO"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, f.orgID, f.seller, tt.title, "", tt.price, tt.currency)
			require.Error(t, err)
			assert.Equal(t, dErrors.CodeInvariantViolation, dErrors.CodeOf(err))
		})
	}
}

func TestListingSaleFlow(t *testing.T) {
	f := newMarketFixture(t)
	ctx := marketCtx()
	listing := f.listing(t)

	t.Run("seller cannot reserve own listing", func(t *testing.T) {
		_, err := f.svc.Reserve(ctx, f.orgID, f.seller, listing.ID)
		assert.Equal(t, dErrors.CodeForbidden, dErrors.CodeOf(err))
	})

	t.Run("completing an open listing conflicts", func(t *testing.T) {
		_, err := f.svc.CompleteSale(ctx, f.orgID, f.seller, listing.ID)
		assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
	})

	reserved, err := f.svc.Reserve(ctx, f.orgID, f.buyer, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReserved, reserved.Status)
	assert.Equal(t, f.buyer, reserved.ReservedBy)

	t.Run("reserved listing cannot be reserved again", func(t *testing.T) {
		_, err := f.svc.Reserve(ctx, f.orgID, id.EmployeeID(uuid.New()), listing.ID)
		assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
	})

	t.Run("only the seller completes", func(t *testing.T) {
		_, err := f.svc.CompleteSale(ctx, f.orgID, f.buyer, listing.ID)
		assert.Equal(t, dErrors.CodeForbidden, dErrors.CodeOf(err))
	})

	sold, err := f.svc.CompleteSale(ctx, f.orgID, f.seller, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSold, sold.Status)
	assert.Equal(t, f.buyer, sold.Buyer)
	assert.True(t, sold.ReservedBy.IsNil())

	require.Len(t, f.publisher.events, 1)
	event := f.publisher.events[0].(events.ListingSold)
	assert.Equal(t, f.seller, event.Seller)
	assert.Equal(t, f.buyer, event.Buyer)

	t.Run("sold is terminal", func(t *testing.T) {
		_, err := f.svc.Withdraw(ctx, f.orgID, f.seller, listing.ID)
		assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
	})
}

func TestReservationRelease(t *testing.T) {
	f := newMarketFixture(t)
	ctx := marketCtx()
	listing := f.listing(t)

	_, err := f.svc.Reserve(ctx, f.orgID, f.buyer, listing.ID)
	require.NoError(t, err)

	t.Run("a third party cannot release", func(t *testing.T) {
		_, err := f.svc.Release(ctx, f.orgID, id.EmployeeID(uuid.New()), listing.ID)
		assert.Equal(t, dErrors.CodeForbidden, dErrors.CodeOf(err))
	})

	released, err := f.svc.Release(ctx, f.orgID, f.buyer, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, released.Status)
	assert.True(t, released.ReservedBy.IsNil())

	// Back on the market for anyone.
	_, err = f.svc.Reserve(ctx, f.orgID, id.EmployeeID(uuid.New()), listing.ID)
	assert.NoError(t, err)
}

func TestWithdraw(t *testing.T) {
	f := newMarketFixture(t)
	ctx := marketCtx()
	listing := f.listing(t)

	t.Run("only the seller withdraws", func(t *testing.T) {
		_, err := f.svc.Withdraw(ctx, f.orgID, f.buyer, listing.ID)
		assert.Equal(t, dErrors.CodeForbidden, dErrors.CodeOf(err))
	})

	withdrawn, err := f.svc.Withdraw(ctx, f.orgID, f.seller, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusWithdrawn, withdrawn.Status)

	_, err = f.svc.Reserve(ctx, f.orgID, f.buyer, listing.ID)
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
}

func TestListOpen_ScopedAndFiltered(t *testing.T) {
	f := newMarketFixture(t)
	ctx := marketCtx()

	open := f.listing(t)
	reservedListing := f.listing(t)
	_, err := f.svc.Reserve(ctx, f.orgID, f.buyer, reservedListing.ID)
	require.NoError(t, err)

	listings, err := f.svc.ListOpen(ctx, f.orgID, 0)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, open.ID, listings[0].ID)

	other, err := f.svc.ListOpen(ctx, id.OrgID(uuid.New()), 0)
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = f.svc.Get(ctx, id.OrgID(uuid.New()), open.ID)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}
