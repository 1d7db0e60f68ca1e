package market

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"crewpulse/internal/directory"
	"crewpulse/internal/events"
	"crewpulse/internal/platform/metrics"
	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
	"crewpulse/pkg/platform/sentinel"
	"crewpulse/pkg/requestcontext"
)

// Store is the marketplace persistence contract.
type Store interface {
	CreateListing(ctx context.Context, l *Listing) error
	FindListing(ctx context.Context, orgID id.OrgID, listingID id.ListingID) (*Listing, error)
	ExecuteListing(ctx context.Context, orgID id.OrgID, listingID id.ListingID,
		validate func(*Listing) error, mutate func(*Listing) error) (*Listing, error)
	ListOpen(ctx context.Context, orgID id.OrgID, limit int) ([]*Listing, error)
}

type DirectoryResolver interface {
	RequireActiveEmployee(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID) (*directory.Employee, error)
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event)
}

type Service struct {
	store     Store
	directory DirectoryResolver
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, dir DirectoryResolver, publisher Publisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, directory: dir, publisher: publisher, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, orgID id.OrgID, seller id.EmployeeID,
	title, description string, price int64, currency string) (*Listing, error) {

	if _, err := s.directory.RequireActiveEmployee(ctx, orgID, seller); err != nil {
		return nil, err
	}
	listing, err := NewListing(id.ListingID(uuid.New()), orgID, seller, title, description,
		price, currency, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateListing(ctx, listing); err != nil {
		return nil, wrapMarketErr(err)
	}
	return listing, nil
}

func (s *Service) Get(ctx context.Context, orgID id.OrgID, listingID id.ListingID) (*Listing, error) {
	listing, err := s.store.FindListing(ctx, orgID, listingID)
	if err != nil {
		return nil, wrapMarketErr(err)
	}
	return listing, nil
}

func (s *Service) ListOpen(ctx context.Context, orgID id.OrgID, limit int) ([]*Listing, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	listings, err := s.store.ListOpen(ctx, orgID, limit)
	if err != nil {
		return nil, wrapMarketErr(err)
	}
	return listings, nil
}

func (s *Service) Reserve(ctx context.Context, orgID id.OrgID, buyer id.EmployeeID, listingID id.ListingID) (*Listing, error) {
	if _, err := s.directory.RequireActiveEmployee(ctx, orgID, buyer); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	listing, err := s.store.ExecuteListing(ctx, orgID, listingID,
		func(l *Listing) error { return l.CanReserve(buyer) },
		func(l *Listing) error { l.ApplyReservation(buyer, now); return nil },
	)
	if err != nil {
		return nil, wrapMarketErr(err)
	}
	return listing, nil
}

func (s *Service) Release(ctx context.Context, orgID id.OrgID, actor id.EmployeeID, listingID id.ListingID) (*Listing, error) {
	now := requestcontext.Now(ctx)
	listing, err := s.store.ExecuteListing(ctx, orgID, listingID,
		func(l *Listing) error { return l.CanRelease(actor) },
		func(l *Listing) error { l.ApplyRelease(now); return nil },
	)
	if err != nil {
		return nil, wrapMarketErr(err)
	}
	return listing, nil
}

func (s *Service) CompleteSale(ctx context.Context, orgID id.OrgID, seller id.EmployeeID, listingID id.ListingID) (*Listing, error) {
	now := requestcontext.Now(ctx)
	listing, err := s.store.ExecuteListing(ctx, orgID, listingID,
		func(l *Listing) error { return l.CanComplete(seller) },
		func(l *Listing) error { l.ApplySale(now); return nil },
	)
	if err != nil {
		return nil, wrapMarketErr(err)
	}
	if s.metrics != nil {
		s.metrics.ListingsSold.Inc()
	}
	s.publisher.Publish(ctx, events.ListingSold{
		Base:      events.Base{OrgID: orgID, Actor: seller, At: now},
		ListingID: listing.ID,
		Seller:    listing.Seller,
		Buyer:     listing.Buyer,
	})
	return listing, nil
}

func (s *Service) Withdraw(ctx context.Context, orgID id.OrgID, seller id.EmployeeID, listingID id.ListingID) (*Listing, error) {
	now := requestcontext.Now(ctx)
	listing, err := s.store.ExecuteListing(ctx, orgID, listingID,
		func(l *Listing) error { return l.CanWithdraw(seller) },
		func(l *Listing) error { l.ApplyWithdrawal(now); return nil },
	)
	if err != nil {
		return nil, wrapMarketErr(err)
	}
	return listing, nil
}

func wrapMarketErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "listing not found")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "market store failure")
	}
}
