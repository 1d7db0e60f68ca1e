package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"crewpulse/internal/events"
	"crewpulse/internal/org/models"
	"crewpulse/internal/platform/metrics"
	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
	"crewpulse/pkg/platform/sentinel"
	"crewpulse/pkg/requestcontext"
)

// OrgStore is what the service needs from persistence. Implementations live
// in the store package (memory and postgres).
type OrgStore interface {
	CreateIfNameAvailable(ctx context.Context, org *models.Organization) error
	FindByID(ctx context.Context, orgID id.OrgID) (*models.Organization, error)
	FindByName(ctx context.Context, name string) (*models.Organization, error)
	// Execute runs validate then mutate under the store's lock (mutex or
	// SELECT ... FOR UPDATE) so status checks cannot race.
	Execute(ctx context.Context, orgID id.OrgID,
		validate func(*models.Organization) error,
		mutate func(*models.Organization)) (*models.Organization, error)
}

// MemberCounter is implemented by the directory store.
type MemberCounter interface {
	CountEmployees(ctx context.Context, orgID id.OrgID) (int, error)
	CountDepartments(ctx context.Context, orgID id.OrgID) (int, error)
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event)
}

// Service orchestrates organization lifecycle management.
type Service struct {
	orgs      OrgStore
	counter   MemberCounter
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithMemberCounter(c MemberCounter) Option {
	return func(s *Service) { s.counter = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(orgs OrgStore, publisher Publisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{orgs: orgs, publisher: publisher, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, name string) (*models.Organization, error) {
	name = strings.TrimSpace(name)

	org, err := models.NewOrganization(id.OrgID(uuid.New()), name, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}

	if err := s.orgs.CreateIfNameAvailable(ctx, org); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "organization name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create organization")
	}

	s.publisher.Publish(ctx, events.OrgCreated{
		Base: events.Base{OrgID: org.ID, At: org.CreatedAt},
		Name: org.Name,
	})
	if s.metrics != nil {
		s.metrics.OrgsCreated.Inc()
	}
	return org, nil
}

// Get fetches org metadata with member counts.
func (s *Service) Get(ctx context.Context, orgID id.OrgID) (*models.OrgDetails, error) {
	if orgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "org id is required")
	}
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return nil, wrapOrgErr(err)
	}

	details := &models.OrgDetails{Organization: org}
	if s.counter != nil {
		if details.EmployeeCount, err = s.counter.CountEmployees(ctx, orgID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count employees")
		}
		if details.DepartmentCount, err = s.counter.CountDepartments(ctx, orgID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count departments")
		}
	}
	return details, nil
}

// GetByName retrieves an organization by name (case-insensitive).
func (s *Service) GetByName(ctx context.Context, name string) (*models.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "organization name is required")
	}
	org, err := s.orgs.FindByName(ctx, name)
	if err != nil {
		return nil, wrapOrgErr(err)
	}
	return org, nil
}

// Suspend transitions an organization to suspended. All authenticated
// operations for the org fail from this point until reinstatement.
func (s *Service) Suspend(ctx context.Context, orgID id.OrgID) (*models.Organization, error) {
	if orgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "org id is required")
	}

	now := requestcontext.Now(ctx)
	org, err := s.orgs.Execute(ctx, orgID,
		func(o *models.Organization) error {
			if err := o.CanSuspend(); err != nil {
				return dErrors.New(dErrors.CodeConflict, "organization is already suspended")
			}
			return nil
		},
		func(o *models.Organization) {
			o.ApplySuspension(now)
		},
	)
	if err != nil {
		return nil, wrapOrgErr(err)
	}

	s.publisher.Publish(ctx, events.OrgSuspended{Base: events.Base{OrgID: org.ID, At: now}})
	if s.metrics != nil {
		s.metrics.OrgsSuspended.Inc()
	}
	return org, nil
}

// Reinstate transitions a suspended organization back to active.
func (s *Service) Reinstate(ctx context.Context, orgID id.OrgID) (*models.Organization, error) {
	if orgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "org id is required")
	}

	now := requestcontext.Now(ctx)
	org, err := s.orgs.Execute(ctx, orgID,
		func(o *models.Organization) error {
			if err := o.CanReinstate(); err != nil {
				return dErrors.New(dErrors.CodeConflict, "organization is already active")
			}
			return nil
		},
		func(o *models.Organization) {
			o.ApplyReinstatement(now)
		},
	)
	if err != nil {
		return nil, wrapOrgErr(err)
	}

	s.publisher.Publish(ctx, events.OrgReinstated{Base: events.Base{OrgID: org.ID, At: now}})
	if s.metrics != nil {
		s.metrics.OrgsReinstated.Inc()
	}
	return org, nil
}

// RequireActive backs the router's org gate: every authenticated module
// request passes through it before reaching a handler. A suspended or
// unknown org never reaches domain logic.
func (s *Service) RequireActive(ctx context.Context, orgID id.OrgID) error {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return wrapOrgErr(err)
	}
	if !org.IsActive() {
		return dErrors.New(dErrors.CodeForbidden, "organization is suspended")
	}
	return nil
}

func wrapOrgErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "organization not found")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "organization store failure")
	}
}
