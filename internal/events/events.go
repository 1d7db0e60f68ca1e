// Package events is the in-process publish/subscribe layer. Domain services
// publish facts about state changes; cross-cutting handlers (notifications,
// audit) subscribe without the services knowing who listens.
package events

import (
	"time"

	id "crewpulse/pkg/domain"
)

type Kind string

const (
	KindOrgCreated       Kind = "org.created"
	KindOrgSuspended     Kind = "org.suspended"
	KindOrgReinstated    Kind = "org.reinstated"
	KindEmployeeJoined   Kind = "directory.employee_joined"
	KindPostPublished    Kind = "feed.post_published"
	KindCommentAdded     Kind = "feed.comment_added"
	KindReactionSet      Kind = "feed.reaction_set"
	KindMembersMentioned Kind = "feed.members_mentioned"
	KindPollClosed       Kind = "feed.poll_closed"
	KindKudosGiven       Kind = "kudos.given"
	KindLeaveRequested   Kind = "leave.requested"
	KindLeaveDecided     Kind = "leave.decided"
	KindSurveyOpened     Kind = "survey.opened"
	KindListingSold      Kind = "listing.sold"
)

// Event is the contract between publishers and handlers. Every event is
// org-scoped; handlers must never cross that boundary.
type Event interface {
	Kind() Kind
	Org() id.OrgID
	OccurredAt() time.Time
}

// Base carries the fields every event shares. Embed it and implement Kind.
type Base struct {
	OrgID id.OrgID
	Actor id.EmployeeID
	At    time.Time
}

func (b Base) Org() id.OrgID         { return b.OrgID }
func (b Base) OccurredAt() time.Time { return b.At }

type OrgCreated struct {
	Base
	Name string
}

func (OrgCreated) Kind() Kind { return KindOrgCreated }

type OrgSuspended struct{ Base }

func (OrgSuspended) Kind() Kind { return KindOrgSuspended }

type OrgReinstated struct{ Base }

func (OrgReinstated) Kind() Kind { return KindOrgReinstated }

type EmployeeJoined struct {
	Base
	EmployeeID id.EmployeeID
	FullName   string
}

func (EmployeeJoined) Kind() Kind { return KindEmployeeJoined }

type PostPublished struct {
	Base
	PostID  id.PostID
	HasPoll bool
}

func (PostPublished) Kind() Kind { return KindPostPublished }

type CommentAdded struct {
	Base
	PostID     id.PostID
	CommentID  id.CommentID
	PostAuthor id.EmployeeID
}

func (CommentAdded) Kind() Kind { return KindCommentAdded }

type ReactionSet struct {
	Base
	PostID   id.PostID
	Reaction string
	Replaced bool
}

func (ReactionSet) Kind() Kind { return KindReactionSet }

// MembersMentioned is published once per post or comment, already deduplicated
// against the author and repeated handles.
type MembersMentioned struct {
	Base
	PostID    id.PostID
	Mentioned []id.EmployeeID
}

func (MembersMentioned) Kind() Kind { return KindMembersMentioned }

type PollClosed struct {
	Base
	PostID id.PostID
}

func (PollClosed) Kind() Kind { return KindPollClosed }

type KudosGiven struct {
	Base
	KudosID   id.KudosID
	Recipient id.EmployeeID
	Badge     string
}

func (KudosGiven) Kind() Kind { return KindKudosGiven }

type LeaveRequested struct {
	Base
	RequestID id.LeaveRequestID
	Employee  id.EmployeeID
}

func (LeaveRequested) Kind() Kind { return KindLeaveRequested }

type LeaveDecided struct {
	Base
	RequestID id.LeaveRequestID
	Employee  id.EmployeeID
	Approved  bool
	Reason    string
}

func (LeaveDecided) Kind() Kind { return KindLeaveDecided }

type SurveyOpened struct {
	Base
	SurveyID id.SurveyID
	Title    string
}

func (SurveyOpened) Kind() Kind { return KindSurveyOpened }

type ListingSold struct {
	Base
	ListingID id.ListingID
	Seller    id.EmployeeID
	Buyer     id.EmployeeID
}

func (ListingSold) Kind() Kind { return KindListingSold }
