// Package recognition records kudos: badges one employee gives another.
package recognition

import (
	"strings"
	"time"

	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
)

type Badge string

const (
	BadgeTeamwork      Badge = "teamwork"
	BadgeImpact        Badge = "impact"
	BadgeMentor        Badge = "mentor"
	BadgeCustomerFirst Badge = "customer_first"
)

func (b Badge) Valid() bool {
	switch b {
	case BadgeTeamwork, BadgeImpact, BadgeMentor, BadgeCustomerFirst:
		return true
	}
	return false
}

type Kudos struct {
	ID        id.KudosID    `json:"id"`
	OrgID     id.OrgID      `json:"org_id"`
	From      id.EmployeeID `json:"from_id"`
	To        id.EmployeeID `json:"to_id"`
	Badge     Badge         `json:"badge"`
	Message   string        `json:"message,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

func NewKudos(kudosID id.KudosID, orgID id.OrgID, from, to id.EmployeeID, badge Badge, message string, now time.Time) (*Kudos, error) {
	if from == to {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "kudos cannot be given to yourself")
	}
	if !badge.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown badge %q", badge)
	}
	message = strings.TrimSpace(message)
	if len(message) > 500 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "kudos message must be 500 characters or less")
	}
	return &Kudos{
		ID:        kudosID,
		OrgID:     orgID,
		From:      from,
		To:        to,
		Badge:     badge,
		Message:   message,
		CreatedAt: now,
	}, nil
}

// BadgeTally is the per-employee count of each badge received.
type BadgeTally struct {
	Employee id.EmployeeID `json:"employee_id"`
	Badges   map[Badge]int `json:"badges"`
	Total    int           `json:"total"`
}
