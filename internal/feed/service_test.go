package feed

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
	dErrors "crewpulse/pkg/domain-errors"
	"crewpulse/pkg/requestcontext"
)

// fakeDirectory resolves against a fixed roster keyed by handle.
type fakeDirectory struct {
	orgID  id.OrgID
	roster map[string]*directory.Employee
}

func newFakeDirectory(orgID id.OrgID, handles ...string) *fakeDirectory {
	d := &fakeDirectory{orgID: orgID, roster: make(map[string]*directory.Employee)}
	for _, h := range handles {
		d.roster[h] = &directory.Employee{
			ID:     id.EmployeeID(uuid.New()),
			OrgID:  orgID,
			Email:  h + "@example.com",
			Status: directory.EmployeeActive,
		}
	}
	return d
}

func (d *fakeDirectory) employee(handle string) id.EmployeeID { return d.roster[handle].ID }

func (d *fakeDirectory) ResolveHandles(_ context.Context, orgID id.OrgID, handles []string) ([]id.EmployeeID, error) {
	if orgID != d.orgID {
		return nil, nil
	}
	return lo.FilterMap(handles, func(h string, _ int) (id.EmployeeID, bool) {
		emp, ok := d.roster[h]
		if !ok || !emp.IsActive() {
			return id.EmployeeID{}, false
		}
		return emp.ID, true
	}), nil
}

func (d *fakeDirectory) RequireActiveEmployee(_ context.Context, orgID id.OrgID, employeeID id.EmployeeID) (*directory.Employee, error) {
	for _, emp := range d.roster {
		if emp.ID == employeeID && emp.OrgID == orgID {
			if !emp.IsActive() {
				return nil, dErrors.New(dErrors.CodeInvariantViolation, "employee is not active")
			}
			return emp, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "employee not found")
}

// capturingPublisher records every published event.
type capturingPublisher struct {
	events []events.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event events.Event) {
	p.events = append(p.events, event)
}

func (p *capturingPublisher) ofKind(kind events.Kind) []events.Event {
	return lo.Filter(p.events, func(e events.Event, _ int) bool { return e.Kind() == kind })
}

type feedFixture struct {
	svc       *Service
	dir       *fakeDirectory
	publisher *capturingPublisher
	orgID     id.OrgID
	now       time.Time
}

func newFeedFixture(t *testing.T, handles ...string) *feedFixture {
	t.Helper()
	orgID := id.OrgID(uuid.New())
	dir := newFakeDirectory(orgID, handles...)
	publisher := &capturingPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &feedFixture{
		svc:       NewService(NewInMemory(), dir, publisher, logger),
		dir:       dir,
		publisher: publisher,
		orgID:     orgID,
		now:       time.Date(2026, 4, 10, 15, 0, 0, 0, time.UTC),
	}
}

func (f *feedFixture) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), f.now)
}

func (f *feedFixture) ctxAt(at time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), at)
}

func TestPublishPost_MentionsFanOut(t *testing.T) {
	f := newFeedFixture(t, "alice", "bob", "carol")
	author := f.dir.employee("alice")

	post, err := f.svc.PublishPost(f.ctx(), f.orgID, author,
		"@bob and @Carol please review, cc @bob @alice @ghost", nil)
	require.NoError(t, err)
	assert.Equal(t, f.orgID, post.OrgID)

	published := f.publisher.ofKind(events.KindPostPublished)
	require.Len(t, published, 1)
	assert.False(t, published[0].(events.PostPublished).HasPoll)

	mentions := f.publisher.ofKind(events.KindMembersMentioned)
	require.Len(t, mentions, 1, "one event per post, however many handles")
	got := mentions[0].(events.MembersMentioned)
	assert.ElementsMatch(t, []id.EmployeeID{f.dir.employee("bob"), f.dir.employee("carol")}, got.Mentioned,
		"deduplicated, author excluded, unknown handles dropped")
}

func TestPublishPost_UnknownAuthorRejected(t *testing.T) {
	f := newFeedFixture(t, "alice")

	_, err := f.svc.PublishPost(f.ctx(), f.orgID, id.EmployeeID(uuid.New()), "hello", nil)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func TestEditPost_AuthorOnly(t *testing.T) {
	f := newFeedFixture(t, "alice", "bob")
	author := f.dir.employee("alice")
	post, err := f.svc.PublishPost(f.ctx(), f.orgID, author, "v1", nil)
	require.NoError(t, err)

	_, err = f.svc.EditPost(f.ctx(), f.orgID, f.dir.employee("bob"), post.ID, "hijacked")
	assert.Equal(t, dErrors.CodeForbidden, dErrors.CodeOf(err))

	edited, err := f.svc.EditPost(f.ctx(), f.orgID, author, post.ID, "v2")
	require.NoError(t, err)
	assert.Equal(t, "v2", edited.Body)
	assert.True(t, edited.Edited)
}

func TestDeletePost_HidesFromReads(t *testing.T) {
	f := newFeedFixture(t, "alice")
	author := f.dir.employee("alice")
	post, err := f.svc.PublishPost(f.ctx(), f.orgID, author, "soon gone", nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeletePost(f.ctx(), f.orgID, author, post.ID))

	_, err = f.svc.GetPost(f.ctx(), f.orgID, post.ID)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))

	_, err = f.svc.AddComment(f.ctx(), f.orgID, author, post.ID, "too late")
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func TestCrossOrgAccessReadsAsMissing(t *testing.T) {
	f := newFeedFixture(t, "alice")
	post, err := f.svc.PublishPost(f.ctx(), f.orgID, f.dir.employee("alice"), "internal", nil)
	require.NoError(t, err)

	otherOrg := id.OrgID(uuid.New())
	_, err = f.svc.GetPost(f.ctx(), otherOrg, post.ID)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err), "cross-org ids surface as not found, never forbidden")

	err = f.svc.DeletePost(f.ctx(), otherOrg, f.dir.employee("alice"), post.ID)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func TestSetReaction_SingleReactionPerEmployee(t *testing.T) {
	f := newFeedFixture(t, "alice", "bob")
	author := f.dir.employee("alice")
	reactor := f.dir.employee("bob")
	post, err := f.svc.PublishPost(f.ctx(), f.orgID, author, "announcement", nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.SetReaction(f.ctx(), f.orgID, reactor, post.ID, ReactionLike))
	require.NoError(t, f.svc.SetReaction(f.ctx(), f.orgID, reactor, post.ID, ReactionCelebrate))

	details, err := f.svc.GetPost(f.ctx(), f.orgID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, map[ReactionKind]int{ReactionCelebrate: 1}, details.Reactions,
		"the second reaction replaces the first")

	set := f.publisher.ofKind(events.KindReactionSet)
	require.Len(t, set, 2)
	assert.False(t, set[0].(events.ReactionSet).Replaced)
	assert.True(t, set[1].(events.ReactionSet).Replaced)

	// Same kind again is a silent no-op.
	require.NoError(t, f.svc.SetReaction(f.ctx(), f.orgID, reactor, post.ID, ReactionCelebrate))
	assert.Len(t, f.publisher.ofKind(events.KindReactionSet), 2)

	err = f.svc.SetReaction(f.ctx(), f.orgID, reactor, post.ID, ReactionKind("meh"))
	assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
}

func TestClearReaction(t *testing.T) {
	f := newFeedFixture(t, "alice", "bob")
	post, err := f.svc.PublishPost(f.ctx(), f.orgID, f.dir.employee("alice"), "post", nil)
	require.NoError(t, err)
	reactor := f.dir.employee("bob")

	require.NoError(t, f.svc.SetReaction(f.ctx(), f.orgID, reactor, post.ID, ReactionLove))
	require.NoError(t, f.svc.ClearReaction(f.ctx(), f.orgID, reactor, post.ID))

	details, err := f.svc.GetPost(f.ctx(), f.orgID, post.ID)
	require.NoError(t, err)
	assert.Empty(t, details.Reactions)
}

func TestVote_Lifecycle(t *testing.T) {
	f := newFeedFixture(t, "alice", "bob")
	author := f.dir.employee("alice")
	voter := f.dir.employee("bob")

	closesAt := f.now.Add(time.Hour)
	post, err := f.svc.PublishPost(f.ctx(), f.orgID, author, "where to?", &PollInput{
		Question: "where to?",
		Options:  []string{"thai", "pizza", "sushi"},
		ClosesAt: closesAt,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Vote(f.ctx(), f.orgID, voter, post.ID, []int{0}))

	// Re-voting replaces the previous ballot wholesale.
	require.NoError(t, f.svc.Vote(f.ctx(), f.orgID, voter, post.ID, []int{2}))
	res, err := f.svc.PollResults(f.ctx(), f.orgID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalBallots)
	assert.Equal(t, 0, res.Options[0].Votes)
	assert.Equal(t, 1, res.Options[2].Votes)

	// At the deadline instant the vote still counts.
	require.NoError(t, f.svc.Vote(f.ctxAt(closesAt), f.orgID, author, post.ID, []int{1}))

	err = f.svc.Vote(f.ctxAt(closesAt.Add(time.Second)), f.orgID, voter, post.ID, []int{1})
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
	assert.Equal(t, "poll is closed", dErrors.MessageOf(err))
}

func TestVote_PostWithoutPoll(t *testing.T) {
	f := newFeedFixture(t, "alice")
	author := f.dir.employee("alice")
	post, err := f.svc.PublishPost(f.ctx(), f.orgID, author, "no poll here", nil)
	require.NoError(t, err)

	err = f.svc.Vote(f.ctx(), f.orgID, author, post.ID, []int{0})
	assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))

	_, err = f.svc.PollResults(f.ctx(), f.orgID, post.ID)
	assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))
}

func TestCloseDuePolls(t *testing.T) {
	f := newFeedFixture(t, "alice")
	author := f.dir.employee("alice")

	post, err := f.svc.PublishPost(f.ctx(), f.orgID, author, "quick poll", &PollInput{
		Question: "quick poll",
		Options:  []string{"yes", "no"},
		ClosesAt: f.now.Add(time.Minute),
	})
	require.NoError(t, err)

	// Before the deadline the sweep finds nothing.
	closed, err := f.svc.CloseDuePolls(f.ctx(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, closed)

	after := f.ctxAt(f.now.Add(2 * time.Minute))
	closed, err = f.svc.CloseDuePolls(after, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	closedEvents := f.publisher.ofKind(events.KindPollClosed)
	require.Len(t, closedEvents, 1)
	assert.Equal(t, post.ID, closedEvents[0].(events.PollClosed).PostID)

	err = f.svc.Vote(after, f.orgID, author, post.ID, []int{0})
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))

	// Results stay readable and the sweep is idempotent.
	res, err := f.svc.PollResults(after, f.orgID, post.ID)
	require.NoError(t, err)
	assert.True(t, res.Closed)

	closed, err = f.svc.CloseDuePolls(after, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
}

func TestAddComment_NotifiesPostAuthorAndMentions(t *testing.T) {
	f := newFeedFixture(t, "alice", "bob", "carol")
	author := f.dir.employee("alice")
	post, err := f.svc.PublishPost(f.ctx(), f.orgID, author, "thoughts?", nil)
	require.NoError(t, err)

	_, err = f.svc.AddComment(f.ctx(), f.orgID, f.dir.employee("bob"), post.ID, "looping in @carol")
	require.NoError(t, err)

	added := f.publisher.ofKind(events.KindCommentAdded)
	require.Len(t, added, 1)
	assert.Equal(t, author, added[0].(events.CommentAdded).PostAuthor)

	mentions := f.publisher.ofKind(events.KindMembersMentioned)
	require.Len(t, mentions, 1)
	assert.Equal(t, []id.EmployeeID{f.dir.employee("carol")}, mentions[0].(events.MembersMentioned).Mentioned)

	comments, err := f.svc.ListComments(f.ctx(), f.orgID, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "looping in @carol", comments[0].Body)
}

func TestListFeed_Pagination(t *testing.T) {
	f := newFeedFixture(t, "alice")
	author := f.dir.employee("alice")

	for i := 0; i < 5; i++ {
		at := f.now.Add(time.Duration(i) * time.Minute)
		_, err := f.svc.PublishPost(f.ctxAt(at), f.orgID, author, "post", nil)
		require.NoError(t, err)
	}

	first, err := f.svc.ListFeed(f.ctx(), f.orgID, "", 2)
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.ListFeed(f.ctx(), f.orgID, first.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	require.NotEmpty(t, second.NextCursor)

	last, err := f.svc.ListFeed(f.ctx(), f.orgID, second.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
	assert.Empty(t, last.NextCursor)

	// Newest first across pages, no repeats.
	var seen []id.PostID
	prev := f.now.Add(time.Hour)
	for _, page := range []*FeedPage{first, second, last} {
		for _, item := range page.Items {
			assert.False(t, item.CreatedAt.After(prev))
			prev = item.CreatedAt
			seen = append(seen, item.ID)
		}
	}
	assert.Len(t, lo.Uniq(seen), 5)

	_, err = f.svc.ListFeed(f.ctx(), f.orgID, "garbage-cursor", 2)
	assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
}

func TestListFeed_ScopedToOrg(t *testing.T) {
	f := newFeedFixture(t, "alice")
	_, err := f.svc.PublishPost(f.ctx(), f.orgID, f.dir.employee("alice"), "ours", nil)
	require.NoError(t, err)

	page, err := f.svc.ListFeed(f.ctx(), id.OrgID(uuid.New()), "", 0)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}
