package audit

import (
	"context"
	"fmt"

	"crewpulse/internal/events"
)

// Forwarder bridges the domain event dispatcher to the audit publisher: every
// domain event becomes one audit row. It subscribes to all kinds.
type Forwarder struct {
	publisher *Publisher
}

func NewForwarder(publisher *Publisher) *Forwarder {
	return &Forwarder{publisher: publisher}
}

func (f *Forwarder) Name() string { return "audit-forwarder" }

func (f *Forwarder) Handle(ctx context.Context, event events.Event) {
	f.publisher.Emit(ctx, fromDomainEvent(event))
}

// fromDomainEvent flattens a typed domain event into an audit row. The
// subject is the most specific entity id the event names.
func fromDomainEvent(event events.Event) Event {
	out := Event{
		Timestamp: event.OccurredAt(),
		OrgID:     event.Org(),
		Action:    actionFor(event.Kind()),
	}

	switch e := event.(type) {
	case events.OrgCreated:
		out.ActorID = e.Actor
		out.Detail = e.Name
	case events.OrgSuspended:
		out.ActorID = e.Actor
	case events.OrgReinstated:
		out.ActorID = e.Actor
	case events.EmployeeJoined:
		out.ActorID = e.Actor
		out.Subject = e.EmployeeID.String()
		out.Detail = e.FullName
	case events.PostPublished:
		out.ActorID = e.Actor
		out.Subject = e.PostID.String()
	case events.CommentAdded:
		out.ActorID = e.Actor
		out.Subject = e.PostID.String()
	case events.ReactionSet:
		out.ActorID = e.Actor
		out.Subject = e.PostID.String()
		out.Detail = e.Reaction
	case events.MembersMentioned:
		out.ActorID = e.Actor
		out.Subject = e.PostID.String()
		out.Detail = fmt.Sprintf("%d mentioned", len(e.Mentioned))
	case events.PollClosed:
		out.Subject = e.PostID.String()
	case events.KudosGiven:
		out.ActorID = e.Actor
		out.Subject = e.Recipient.String()
		out.Detail = e.Badge
	case events.LeaveRequested:
		out.ActorID = e.Actor
		out.Subject = e.RequestID.String()
	case events.LeaveDecided:
		out.ActorID = e.Actor
		out.Subject = e.RequestID.String()
		if e.Approved {
			out.Detail = "approved"
		} else {
			out.Detail = "rejected: " + e.Reason
		}
	case events.SurveyOpened:
		out.ActorID = e.Actor
		out.Subject = e.SurveyID.String()
		out.Detail = e.Title
	case events.ListingSold:
		out.ActorID = e.Actor
		out.Subject = e.ListingID.String()
	}
	return out
}

var kindActions = map[events.Kind]Action{
	events.KindOrgCreated:       ActionOrgCreated,
	events.KindOrgSuspended:     ActionOrgSuspended,
	events.KindOrgReinstated:    ActionOrgReinstated,
	events.KindEmployeeJoined:   ActionEmployeeJoined,
	events.KindPostPublished:    ActionPostPublished,
	events.KindCommentAdded:     ActionCommentAdded,
	events.KindReactionSet:      ActionReactionSet,
	events.KindPollClosed:       ActionPollClosed,
	events.KindKudosGiven:       ActionKudosGiven,
	events.KindLeaveRequested:   ActionLeaveRequested,
	events.KindLeaveDecided:     ActionLeaveDecided,
	events.KindSurveyOpened:     ActionSurveyOpened,
	events.KindListingSold:      ActionListingSold,
	events.KindMembersMentioned: Action("members_mentioned"),
}

func actionFor(kind events.Kind) string {
	if a, ok := kindActions[kind]; ok {
		return string(a)
	}
	return string(kind)
}
