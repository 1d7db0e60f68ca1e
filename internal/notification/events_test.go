package notification

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewpulse/internal/directory"
	"crewpulse/internal/events"
	id "crewpulse/pkg/domain"
)

type fakeDirectory struct {
	head    id.EmployeeID
	headErr error
	active  []*directory.Employee
}

func (d *fakeDirectory) DepartmentHead(context.Context, id.OrgID, id.EmployeeID) (id.EmployeeID, error) {
	return d.head, d.headErr
}

func (d *fakeDirectory) ListEmployees(context.Context, id.OrgID, directory.EmployeeFilter) ([]*directory.Employee, error) {
	return d.active, nil
}

type inboxFixture struct {
	handler *EventHandler
	svc     *Service
	dir     *fakeDirectory
	orgID   id.OrgID
	actor   id.EmployeeID
}

func newInboxFixture(t *testing.T) *inboxFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(NewInMemory(), logger)
	dir := &fakeDirectory{}
	return &inboxFixture{
		handler: NewEventHandler(svc, dir, logger),
		svc:     svc,
		dir:     dir,
		orgID:   id.OrgID(uuid.New()),
		actor:   id.EmployeeID(uuid.New()),
	}
}

func (f *inboxFixture) base(at time.Time) events.Base {
	return events.Base{OrgID: f.orgID, Actor: f.actor, At: at}
}

func (f *inboxFixture) inboxOf(t *testing.T, recipient id.EmployeeID) []*Notification {
	t.Helper()
	list, err := f.svc.List(context.Background(), f.orgID, recipient, false, 0)
	require.NoError(t, err)
	return list
}

var inboxNow = time.Date(2026, 4, 14, 9, 30, 0, 0, time.UTC)

func TestHandle_Mentions(t *testing.T) {
	f := newInboxFixture(t)
	first := id.EmployeeID(uuid.New())
	second := id.EmployeeID(uuid.New())

	f.handler.Handle(context.Background(), events.MembersMentioned{
		Base:      f.base(inboxNow),
		PostID:    id.PostID(uuid.New()),
		Mentioned: []id.EmployeeID{first, second},
	})

	require.Len(t, f.inboxOf(t, first), 1)
	require.Len(t, f.inboxOf(t, second), 1)
	assert.Equal(t, KindMention, f.inboxOf(t, first)[0].Kind)
}

func TestHandle_MentionsDedupePerPost(t *testing.T) {
	f := newInboxFixture(t)
	recipient := id.EmployeeID(uuid.New())
	postID := id.PostID(uuid.New())

	// Mentioned in the post body, then again in a comment under it.
	f.handler.Handle(context.Background(), events.MembersMentioned{
		Base:      f.base(inboxNow),
		PostID:    postID,
		Mentioned: []id.EmployeeID{recipient},
	})
	f.handler.Handle(context.Background(), events.MembersMentioned{
		Base:      f.base(inboxNow.Add(time.Minute)),
		PostID:    postID,
		Mentioned: []id.EmployeeID{recipient},
	})
	require.Len(t, f.inboxOf(t, recipient), 1)

	// A different post is a fresh mention.
	f.handler.Handle(context.Background(), events.MembersMentioned{
		Base:      f.base(inboxNow.Add(2 * time.Minute)),
		PostID:    id.PostID(uuid.New()),
		Mentioned: []id.EmployeeID{recipient},
	})
	assert.Len(t, f.inboxOf(t, recipient), 2)
}

func TestHandle_CommentSkipsSelf(t *testing.T) {
	f := newInboxFixture(t)
	author := id.EmployeeID(uuid.New())
	postID := id.PostID(uuid.New())

	f.handler.Handle(context.Background(), events.CommentAdded{
		Base:       f.base(inboxNow),
		PostID:     postID,
		PostAuthor: author,
	})
	require.Len(t, f.inboxOf(t, author), 1)
	assert.Equal(t, postID.String(), f.inboxOf(t, author)[0].Subject)

	// Commenting on your own post stays silent.
	f.handler.Handle(context.Background(), events.CommentAdded{
		Base:       f.base(inboxNow),
		PostID:     postID,
		PostAuthor: f.actor,
	})
	assert.Empty(t, f.inboxOf(t, f.actor))
}

func TestHandle_LeaveRequested(t *testing.T) {
	requestID := id.LeaveRequestID(uuid.New())

	t.Run("department head is notified", func(t *testing.T) {
		f := newInboxFixture(t)
		head := id.EmployeeID(uuid.New())
		f.dir.head = head

		f.handler.Handle(context.Background(), events.LeaveRequested{
			Base:      f.base(inboxNow),
			RequestID: requestID,
			Employee:  f.actor,
		})
		inbox := f.inboxOf(t, head)
		require.Len(t, inbox, 1)
		assert.Equal(t, KindLeaveRequested, inbox[0].Kind)
	})

	t.Run("no head means no notification", func(t *testing.T) {
		f := newInboxFixture(t)
		f.handler.Handle(context.Background(), events.LeaveRequested{
			Base:      f.base(inboxNow),
			RequestID: requestID,
			Employee:  f.actor,
		})
		assert.Empty(t, f.inboxOf(t, f.actor))
	})

	t.Run("heads do not notify themselves", func(t *testing.T) {
		f := newInboxFixture(t)
		f.dir.head = f.actor
		f.handler.Handle(context.Background(), events.LeaveRequested{
			Base:      f.base(inboxNow),
			RequestID: requestID,
			Employee:  f.actor,
		})
		assert.Empty(t, f.inboxOf(t, f.actor))
	})
}

func TestHandle_LeaveDecided(t *testing.T) {
	f := newInboxFixture(t)
	employee := id.EmployeeID(uuid.New())

	f.handler.Handle(context.Background(), events.LeaveDecided{
		Base:      f.base(inboxNow),
		RequestID: id.LeaveRequestID(uuid.New()),
		Employee:  employee,
		Approved:  false,
		Reason:    "blackout period",
	})

	inbox := f.inboxOf(t, employee)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Your leave request was rejected: blackout period", inbox[0].Message)
}

func TestHandle_SurveyOpened(t *testing.T) {
	f := newInboxFixture(t)
	other := id.EmployeeID(uuid.New())
	f.dir.active = []*directory.Employee{
		{ID: f.actor, OrgID: f.orgID},
		{ID: other, OrgID: f.orgID},
	}

	f.handler.Handle(context.Background(), events.SurveyOpened{
		Base:     f.base(inboxNow),
		SurveyID: id.SurveyID(uuid.New()),
		Title:    "Quarterly pulse",
	})

	assert.Empty(t, f.inboxOf(t, f.actor), "the opener is not notified")
	inbox := f.inboxOf(t, other)
	require.Len(t, inbox, 1)
	assert.Equal(t, "New survey open: Quarterly pulse", inbox[0].Message)
}

func TestHandle_ListingSold(t *testing.T) {
	f := newInboxFixture(t)
	buyer := id.EmployeeID(uuid.New())

	// The seller completes the sale, so only the buyer hears about it.
	f.handler.Handle(context.Background(), events.ListingSold{
		Base:      f.base(inboxNow),
		ListingID: id.ListingID(uuid.New()),
		Seller:    f.actor,
		Buyer:     buyer,
	})

	assert.Empty(t, f.inboxOf(t, f.actor))
	require.Len(t, f.inboxOf(t, buyer), 1)
}

func TestHandle_KudosAndPolls(t *testing.T) {
	f := newInboxFixture(t)
	recipient := id.EmployeeID(uuid.New())

	f.handler.Handle(context.Background(), events.KudosGiven{
		Base:      f.base(inboxNow),
		KudosID:   id.KudosID(uuid.New()),
		Recipient: recipient,
		Badge:     "teamwork",
	})
	inbox := f.inboxOf(t, recipient)
	require.Len(t, inbox, 1)
	assert.Equal(t, "You received a teamwork badge", inbox[0].Message)

	f.handler.Handle(context.Background(), events.PollClosed{
		Base:   f.base(inboxNow),
		PostID: id.PostID(uuid.New()),
	})
	require.Len(t, f.inboxOf(t, f.actor), 1, "poll results go to the poll author")
	assert.Equal(t, KindPollClosed, f.inboxOf(t, f.actor)[0].Kind)
}

func TestInboxReadTracking(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()
	recipient := id.EmployeeID(uuid.New())

	for _, at := range []time.Time{inboxNow, inboxNow.Add(time.Minute), inboxNow.Add(2 * time.Minute)} {
		f.svc.Notify(ctx, f.orgID, recipient, KindMention, uuid.NewString(), "hello", at)
	}

	all, err := f.svc.List(ctx, f.orgID, recipient, false, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt), "newest first")

	require.NoError(t, f.svc.MarkRead(ctx, f.orgID, recipient, all[0].ID))

	unread, err := f.svc.List(ctx, f.orgID, recipient, true, 0)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	t.Run("someone else's notification reads as missing", func(t *testing.T) {
		err := f.svc.MarkRead(ctx, f.orgID, id.EmployeeID(uuid.New()), all[1].ID)
		require.Error(t, err)
	})

	marked, err := f.svc.MarkAllRead(ctx, f.orgID, recipient)
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	unread, err = f.svc.List(ctx, f.orgID, recipient, true, 0)
	require.NoError(t, err)
	assert.Empty(t, unread)

	ids := lo.Map(all, func(n *Notification, _ int) id.NotificationID { return n.ID })
	assert.Len(t, lo.Uniq(ids), 3)
}
