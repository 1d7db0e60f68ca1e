// Package audit captures who did what across the platform. Events flow from a
// non-blocking publisher through a worker into a store; when Kafka is
// configured the Postgres store acts as a transactional outbox and a relay
// ships rows to the audit topic.
package audit

import (
	"context"
	"time"

	id "crewpulse/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose, which
// drives retention and downstream routing.
type EventCategory string

const (
	// CategoryCompliance covers events HR and legal may need years later:
	// leave decisions, employee lifecycle, org suspension.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers boundary enforcement: rejected cross-org
	// access, admin token use, org suspension.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled:
	// posts, comments, reactions, votes.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Transport
// agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	OrgID     id.OrgID
	ActorID   id.EmployeeID
	Subject   string
	Action    string
	Detail    string
	RequestID string
}

type Action string

const (
	ActionOrgCreated       Action = "org_created"
	ActionOrgSuspended     Action = "org_suspended"
	ActionOrgReinstated    Action = "org_reinstated"
	ActionEmployeeJoined   Action = "employee_joined"
	ActionEmployeeLeft     Action = "employee_deactivated"
	ActionPostPublished    Action = "post_published"
	ActionPostDeleted      Action = "post_deleted"
	ActionCommentAdded     Action = "comment_added"
	ActionReactionSet      Action = "reaction_set"
	ActionPollClosed       Action = "poll_closed"
	ActionKudosGiven       Action = "kudos_given"
	ActionLeaveRequested   Action = "leave_requested"
	ActionLeaveDecided     Action = "leave_decided"
	ActionLeaveCancelled   Action = "leave_cancelled"
	ActionSurveyOpened     Action = "survey_opened"
	ActionSurveyClosed     Action = "survey_closed"
	ActionListingSold      Action = "listing_sold"
	ActionListingWithdrawn Action = "listing_withdrawn"
)

// actionCategories maps each action to its category. Unknown actions default
// to operations.
var actionCategories = map[Action]EventCategory{
	ActionOrgCreated:     CategoryCompliance,
	ActionOrgSuspended:   CategorySecurity,
	ActionOrgReinstated:  CategorySecurity,
	ActionEmployeeJoined: CategoryCompliance,
	ActionEmployeeLeft:   CategoryCompliance,
	ActionLeaveRequested: CategoryCompliance,
	ActionLeaveDecided:   CategoryCompliance,
	ActionLeaveCancelled: CategoryCompliance,

	ActionPostPublished:    CategoryOperations,
	ActionPostDeleted:      CategoryOperations,
	ActionCommentAdded:     CategoryOperations,
	ActionReactionSet:      CategoryOperations,
	ActionPollClosed:       CategoryOperations,
	ActionKudosGiven:       CategoryOperations,
	ActionSurveyOpened:     CategoryOperations,
	ActionSurveyClosed:     CategoryOperations,
	ActionListingSold:      CategoryOperations,
	ActionListingWithdrawn: CategoryOperations,
}

// Category returns the EventCategory for this action.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByOrg(ctx context.Context, orgID id.OrgID, limit int) ([]Event, error)
}
