package recognition

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

type kudosFixture struct {
	svc       *Service
	publisher *capturingPublisher
	orgID     id.OrgID
	giver     id.EmployeeID
	receiver  id.EmployeeID
}

func newKudosFixture(t *testing.T) *kudosFixture {
	t.Helper()
	orgID := id.OrgID(uuid.New())
	giver := id.EmployeeID(uuid.New())
	receiver := id.EmployeeID(uuid.New())
	dir := &rosterDirectory{orgID: orgID, active: map[id.EmployeeID]bool{giver: true, receiver: true}}
	publisher := &capturingPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &kudosFixture{
		svc:       NewService(NewInMemory(), dir, publisher, logger),
		publisher: publisher,
		orgID:     orgID,
		giver:     giver,
		receiver:  receiver,
	}
}

func kudosCtx() context.Context {
	return requestcontext.WithTime(context.Background(),
		time.Date(2026, 5, 20, 14, 0, 0, 0, time.UTC))
}

func TestGiveKudos(t *testing.T) {
	f := newKudosFixture(t)
	ctx := kudosCtx()

	kudos, err := f.svc.GiveKudos(ctx, f.orgID, f.giver, f.receiver, BadgeTeamwork, "carried the launch")
	require.NoError(t, err)
	assert.Equal(t, BadgeTeamwork, kudos.Badge)

	require.Len(t, f.publisher.events, 1)
	given := f.publisher.events[0].(events.KudosGiven)
	assert.Equal(t, f.receiver, given.Recipient)
	assert.Equal(t, "teamwork", given.Badge)

	t.Run("self kudos rejected", func(t *testing.T) {
		_, err := f.svc.GiveKudos(ctx, f.orgID, f.giver, f.giver, BadgeImpact, "")
		assert.Equal(t, dErrors.CodeInvariantViolation, dErrors.CodeOf(err))
	})

	t.Run("unknown badge rejected", func(t *testing.T) {
		_, err := f.svc.GiveKudos(ctx, f.orgID, f.giver, f.receiver, Badge("legend"), "")
		assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
	})

	t.Run("unknown recipient rejected", func(t *testing.T) {
		_, err := f.svc.GiveKudos(ctx, f.orgID, f.giver, id.EmployeeID(uuid.New()), BadgeImpact, "")
		assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
	})
}

func TestKudosListsAndTally(t *testing.T) {
	f := newKudosFixture(t)
	ctx := kudosCtx()

	for _, badge := range []Badge{BadgeTeamwork, BadgeTeamwork, BadgeMentor} {
		_, err := f.svc.GiveKudos(ctx, f.orgID, f.giver, f.receiver, badge, "")
		require.NoError(t, err)
	}
	_, err := f.svc.GiveKudos(ctx, f.orgID, f.receiver, f.giver, BadgeImpact, "right back at you")
	require.NoError(t, err)

	received, err := f.svc.ListReceived(ctx, f.orgID, f.receiver, 0)
	require.NoError(t, err)
	assert.Len(t, received, 3)

	given, err := f.svc.ListGiven(ctx, f.orgID, f.receiver, 0)
	require.NoError(t, err)
	assert.Len(t, given, 1)

	tally, err := f.svc.Tally(ctx, f.orgID, f.receiver)
	require.NoError(t, err)
	assert.Equal(t, 3, tally.Total)
	assert.Equal(t, map[Badge]int{BadgeTeamwork: 2, BadgeMentor: 1}, tally.Badges)
}
