package leave

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"crewpulse/internal/directory"
	"crewpulse/internal/events"
	"crewpulse/internal/platform/metrics"
	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
	"crewpulse/pkg/platform/sentinel"
	"crewpulse/pkg/requestcontext"
)

// Store is the leave persistence contract. CreateIfNoOverlap must check the
// employee's pending and approved requests and the insert atomically.
type Store interface {
	CreateIfNoOverlap(ctx context.Context, r *Request) error
	FindRequest(ctx context.Context, orgID id.OrgID, reqID id.LeaveRequestID) (*Request, error)
	ExecuteRequest(ctx context.Context, orgID id.OrgID, reqID id.LeaveRequestID,
		validate func(*Request) error, mutate func(*Request) error) (*Request, error)
	ListByEmployee(ctx context.Context, orgID id.OrgID, employee id.EmployeeID) ([]*Request, error)
	ListPending(ctx context.Context, orgID id.OrgID) ([]*Request, error)
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

// Submit rejects requests that overlap the employee's own pending or
// approved leave.
func (s *Service) Submit(ctx context.Context, orgID id.OrgID, employee id.EmployeeID,
	leaveType LeaveType, from, to time.Time, note string) (*Request, error) {

	if _, err := s.directory.RequireActiveEmployee(ctx, orgID, employee); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	req, err := NewRequest(id.LeaveRequestID(uuid.New()), orgID, employee, leaveType, from, to, note, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateIfNoOverlap(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "leave overlaps an existing request")
		}
		return nil, wrapLeaveErr(err)
	}
	if s.metrics != nil {
		s.metrics.LeaveRequested.Inc()
	}
	s.publisher.Publish(ctx, events.LeaveRequested{
		Base:      events.Base{OrgID: orgID, Actor: employee, At: now},
		RequestID: req.ID,
		Employee:  employee,
	})
	return req, nil
}

func (s *Service) Approve(ctx context.Context, orgID id.OrgID, manager id.EmployeeID, reqID id.LeaveRequestID) (*Request, error) {
	return s.decide(ctx, orgID, manager, reqID, true, "")
}

func (s *Service) Reject(ctx context.Context, orgID id.OrgID, manager id.EmployeeID, reqID id.LeaveRequestID, reason string) (*Request, error) {
	return s.decide(ctx, orgID, manager, reqID, false, reason)
}

func (s *Service) decide(ctx context.Context, orgID id.OrgID, manager id.EmployeeID,
	reqID id.LeaveRequestID, approved bool, reason string) (*Request, error) {

	if _, err := s.directory.RequireActiveEmployee(ctx, orgID, manager); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	req, err := s.store.ExecuteRequest(ctx, orgID, reqID,
		func(r *Request) error { return r.CanDecide(manager) },
		func(r *Request) error {
			if approved {
				r.ApplyApproval(manager, now)
				return nil
			}
			return r.ApplyRejection(manager, reason, now)
		},
	)
	if err != nil {
		return nil, wrapLeaveErr(err)
	}

	outcome := "rejected"
	if approved {
		outcome = "approved"
	}
	if s.metrics != nil {
		s.metrics.LeaveDecided.WithLabelValues(outcome).Inc()
	}
	s.publisher.Publish(ctx, events.LeaveDecided{
		Base:      events.Base{OrgID: orgID, Actor: manager, At: now},
		RequestID: req.ID,
		Employee:  req.Employee,
		Approved:  approved,
		Reason:    req.Reason,
	})
	return req, nil
}

func (s *Service) Cancel(ctx context.Context, orgID id.OrgID, actor id.EmployeeID, reqID id.LeaveRequestID) (*Request, error) {
	now := requestcontext.Now(ctx)
	req, err := s.store.ExecuteRequest(ctx, orgID, reqID,
		func(r *Request) error { return r.CanCancel(actor) },
		func(r *Request) error { r.ApplyCancellation(now); return nil },
	)
	if err != nil {
		return nil, wrapLeaveErr(err)
	}
	return req, nil
}

func (s *Service) Get(ctx context.Context, orgID id.OrgID, reqID id.LeaveRequestID) (*Request, error) {
	req, err := s.store.FindRequest(ctx, orgID, reqID)
	if err != nil {
		return nil, wrapLeaveErr(err)
	}
	return req, nil
}

func (s *Service) ListByEmployee(ctx context.Context, orgID id.OrgID, employee id.EmployeeID) ([]*Request, error) {
	reqs, err := s.store.ListByEmployee(ctx, orgID, employee)
	if err != nil {
		return nil, wrapLeaveErr(err)
	}
	return reqs, nil
}

func (s *Service) ListPending(ctx context.Context, orgID id.OrgID) ([]*Request, error) {
	reqs, err := s.store.ListPending(ctx, orgID)
	if err != nil {
		return nil, wrapLeaveErr(err)
	}
	return reqs, nil
}

func wrapLeaveErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "leave request not found")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "leave store failure")
	}
}
