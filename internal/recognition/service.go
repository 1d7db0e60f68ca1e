package recognition

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

// Store is the kudos persistence contract.
type Store interface {
	CreateKudos(ctx context.Context, k *Kudos) error
	ListReceived(ctx context.Context, orgID id.OrgID, employee id.EmployeeID, limit int) ([]*Kudos, error)
	ListGiven(ctx context.Context, orgID id.OrgID, employee id.EmployeeID, limit int) ([]*Kudos, error)
	CountBadges(ctx context.Context, orgID id.OrgID, employee id.EmployeeID) (map[Badge]int, error)
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

func (s *Service) GiveKudos(ctx context.Context, orgID id.OrgID, from, to id.EmployeeID, badge Badge, message string) (*Kudos, error) {
	if _, err := s.directory.RequireActiveEmployee(ctx, orgID, from); err != nil {
		return nil, err
	}
	if _, err := s.directory.RequireActiveEmployee(ctx, orgID, to); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	kudos, err := NewKudos(id.KudosID(uuid.New()), orgID, from, to, badge, message, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateKudos(ctx, kudos); err != nil {
		return nil, wrapKudosErr(err)
	}
	if s.metrics != nil {
		s.metrics.KudosGiven.Inc()
	}
	s.publisher.Publish(ctx, events.KudosGiven{
		Base:      events.Base{OrgID: orgID, Actor: from, At: now},
		KudosID:   kudos.ID,
		Recipient: to,
		Badge:     string(badge),
	})
	return kudos, nil
}

func (s *Service) ListReceived(ctx context.Context, orgID id.OrgID, employee id.EmployeeID, limit int) ([]*Kudos, error) {
	kudos, err := s.store.ListReceived(ctx, orgID, employee, normalizeLimit(limit))
	if err != nil {
		return nil, wrapKudosErr(err)
	}
	return kudos, nil
}

func (s *Service) ListGiven(ctx context.Context, orgID id.OrgID, employee id.EmployeeID, limit int) ([]*Kudos, error) {
	kudos, err := s.store.ListGiven(ctx, orgID, employee, normalizeLimit(limit))
	if err != nil {
		return nil, wrapKudosErr(err)
	}
	return kudos, nil
}

func (s *Service) Tally(ctx context.Context, orgID id.OrgID, employee id.EmployeeID) (*BadgeTally, error) {
	if _, err := s.directory.RequireActiveEmployee(ctx, orgID, employee); err != nil {
		return nil, err
	}
	badges, err := s.store.CountBadges(ctx, orgID, employee)
	if err != nil {
		return nil, wrapKudosErr(err)
	}
	tally := &BadgeTally{Employee: employee, Badges: badges}
	for _, n := range badges {
		tally.Total += n
	}
	return tally, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}

func wrapKudosErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "kudos not found")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "recognition store failure")
	}
}
