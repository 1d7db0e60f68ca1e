package leave

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

type rosterDirectory struct {
	orgID  id.OrgID
	active map[id.EmployeeID]bool
}

func (d *rosterDirectory) RequireActiveEmployee(_ context.Context, orgID id.OrgID, employeeID id.EmployeeID) (*directory.Employee, error) {
	active, ok := d.active[employeeID]
	if !ok || orgID != d.orgID {
		return nil, dErrors.New(dErrors.CodeNotFound, "employee not found")
	}
	if !active {
		return nil, dErrors.New(dErrors.CodeConflict, "employee is not active")
	}
	return &directory.Employee{ID: employeeID, OrgID: orgID, Status: directory.EmployeeActive}, nil
}

type capturingPublisher struct {
	events []events.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event events.Event) {
	p.events = append(p.events, event)
}

type leaveFixture struct {
	svc       *Service
	publisher *capturingPublisher
	orgID     id.OrgID
	employee  id.EmployeeID
	manager   id.EmployeeID
}

func newLeaveFixture(t *testing.T) *leaveFixture {
	t.Helper()
	orgID := id.OrgID(uuid.New())
	employee := id.EmployeeID(uuid.New())
	manager := id.EmployeeID(uuid.New())
	dir := &rosterDirectory{orgID: orgID, active: map[id.EmployeeID]bool{employee: true, manager: true}}
	publisher := &capturingPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &leaveFixture{
		svc:       NewService(NewInMemory(), dir, publisher, logger),
		publisher: publisher,
		orgID:     orgID,
		employee:  employee,
		manager:   manager,
	}
}

func leaveCtx() context.Context {
	return requestcontext.WithTime(context.Background(),
		time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))
}

func days(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSubmit_Validation(t *testing.T) {
	f := newLeaveFixture(t)
	ctx := leaveCtx()

	t.Run("unknown type", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, f.orgID, f.employee, "sabbatical", days(2026, 7, 1), days(2026, 7, 5), "")
		assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
	})

	t.Run("empty range", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, f.orgID, f.employee, TypeVacation, days(2026, 7, 1), days(2026, 7, 1), "")
		assert.Equal(t, dErrors.CodeInvariantViolation, dErrors.CodeOf(err))
	})

	t.Run("too long", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, f.orgID, f.employee, TypeVacation, days(2026, 7, 1), days(2026, 9, 15), "")
		assert.Equal(t, dErrors.CodeInvariantViolation, dErrors.CodeOf(err))
	})

	t.Run("unknown employee", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, f.orgID, id.EmployeeID(uuid.New()), TypeVacation, days(2026, 7, 1), days(2026, 7, 5), "")
		assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
	})
}

func TestSubmit_OverlapRejected(t *testing.T) {
	f := newLeaveFixture(t)
	ctx := leaveCtx()

	_, err := f.svc.Submit(ctx, f.orgID, f.employee, TypeVacation, days(2026, 7, 6), days(2026, 7, 11), "beach")
	require.NoError(t, err)

	// Any shared day conflicts.
	_, err = f.svc.Submit(ctx, f.orgID, f.employee, TypeSick, days(2026, 7, 10), days(2026, 7, 12), "")
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))

	// Half-open ranges: starting the day the first one ends is fine.
	_, err = f.svc.Submit(ctx, f.orgID, f.employee, TypePersonal, days(2026, 7, 11), days(2026, 7, 12), "")
	assert.NoError(t, err)

	// A different employee can take the same days.
	_, err = f.svc.Submit(ctx, f.orgID, f.manager, TypeVacation, days(2026, 7, 6), days(2026, 7, 11), "")
	assert.NoError(t, err)
}

func TestDecide_Lifecycle(t *testing.T) {
	f := newLeaveFixture(t)
	ctx := leaveCtx()

	req, err := f.svc.Submit(ctx, f.orgID, f.employee, TypeVacation, days(2026, 8, 3), days(2026, 8, 7), "")
	require.NoError(t, err)

	t.Run("own request cannot be decided", func(t *testing.T) {
		_, err := f.svc.Approve(ctx, f.orgID, f.employee, req.ID)
		assert.Equal(t, dErrors.CodeForbidden, dErrors.CodeOf(err))
	})

	t.Run("rejection needs a reason", func(t *testing.T) {
		_, err := f.svc.Reject(ctx, f.orgID, f.manager, req.ID, "  ")
		assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
	})

	approved, err := f.svc.Approve(ctx, f.orgID, f.manager, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.Equal(t, f.manager, approved.DecidedBy)
	require.NotNil(t, approved.DecidedAt)

	t.Run("terminal states stay terminal", func(t *testing.T) {
		_, err := f.svc.Reject(ctx, f.orgID, f.manager, req.ID, "nope")
		assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
		_, err = f.svc.Cancel(ctx, f.orgID, f.employee, req.ID)
		assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
	})

	decided := f.publisher.events[len(f.publisher.events)-1].(events.LeaveDecided)
	assert.True(t, decided.Approved)
	assert.Equal(t, f.employee, decided.Employee)

	// Approved leave still blocks overlapping submissions.
	_, err = f.svc.Submit(ctx, f.orgID, f.employee, TypeSick, days(2026, 8, 5), days(2026, 8, 6), "")
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
}

func TestReject_CarriesReason(t *testing.T) {
	f := newLeaveFixture(t)
	ctx := leaveCtx()

	req, err := f.svc.Submit(ctx, f.orgID, f.employee, TypePersonal, days(2026, 9, 1), days(2026, 9, 3), "")
	require.NoError(t, err)

	rejected, err := f.svc.Reject(ctx, f.orgID, f.manager, req.ID, "blackout period")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, "blackout period", rejected.Reason)

	decided := f.publisher.events[len(f.publisher.events)-1].(events.LeaveDecided)
	assert.False(t, decided.Approved)
	assert.Equal(t, "blackout period", decided.Reason)

	// Rejected leave frees the days up again.
	_, err = f.svc.Submit(ctx, f.orgID, f.employee, TypePersonal, days(2026, 9, 1), days(2026, 9, 3), "")
	assert.NoError(t, err)
}

func TestCancel(t *testing.T) {
	f := newLeaveFixture(t)
	ctx := leaveCtx()

	req, err := f.svc.Submit(ctx, f.orgID, f.employee, TypeVacation, days(2026, 10, 1), days(2026, 10, 8), "")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.orgID, f.manager, req.ID)
	assert.Equal(t, dErrors.CodeForbidden, dErrors.CodeOf(err), "only the requester can cancel")

	cancelled, err := f.svc.Cancel(ctx, f.orgID, f.employee, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	// Cancelled leave frees the days.
	_, err = f.svc.Submit(ctx, f.orgID, f.employee, TypeVacation, days(2026, 10, 1), days(2026, 10, 8), "")
	assert.NoError(t, err)
}

func TestListings(t *testing.T) {
	f := newLeaveFixture(t)
	ctx := leaveCtx()

	first, err := f.svc.Submit(ctx, f.orgID, f.employee, TypeVacation, days(2026, 11, 2), days(2026, 11, 6), "")
	require.NoError(t, err)
	second, err := f.svc.Submit(ctx, f.orgID, f.manager, TypeSick, days(2026, 11, 2), days(2026, 11, 4), "")
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.orgID, f.manager, first.ID)
	require.NoError(t, err)

	mine, err := f.svc.ListByEmployee(ctx, f.orgID, f.employee)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)

	pending, err := f.svc.ListPending(ctx, f.orgID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	_, err = f.svc.Get(ctx, id.OrgID(uuid.New()), first.ID)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err), "cross-org id reads as missing")
}
