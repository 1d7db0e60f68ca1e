// Package notification is the per-employee inbox. Entries are written only
// by event handlers reacting to domain events, never by request handlers
// directly.
package notification

import (
	"time"

	id "crewpulse/pkg/domain"
)

type Kind string

const (
	KindMention        Kind = "mention"
	KindComment        Kind = "comment"
	KindKudos          Kind = "kudos"
	KindLeaveRequested Kind = "leave_requested"
	KindLeaveDecided   Kind = "leave_decided"
	KindSurveyOpened   Kind = "survey_opened"
	KindListingSold    Kind = "listing_sold"
	KindPollClosed     Kind = "poll_closed"
)

// Notification references its subject entity by the id string so the inbox
// stays decoupled from every module's types.
type Notification struct {
	ID        id.NotificationID `json:"id"`
	OrgID     id.OrgID          `json:"org_id"`
	Recipient id.EmployeeID     `json:"recipient_id"`
	Kind      Kind              `json:"kind"`
	Subject   string            `json:"subject"`
	Message   string            `json:"message"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"created_at"`
}
