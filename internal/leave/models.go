// Package leave manages time-off requests and their approval lifecycle.
package leave

import (
	"strings"
	"time"

	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
)

const maxLeaveDays = 60

type LeaveType string

const (
	TypeVacation LeaveType = "vacation"
	TypeSick     LeaveType = "sick"
	TypePersonal LeaveType = "personal"
)

func (t LeaveType) Valid() bool {
	switch t {
	case TypeVacation, TypeSick, TypePersonal:
		return true
	}
	return false
}

type Status string

const (
	StatusRequested Status = "requested"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Request is a half-open day range [From, To): the employee is away from the
// morning of From up to but not including To. Approved, rejected and
// cancelled are terminal.
type Request struct {
	ID        id.LeaveRequestID `json:"id"`
	OrgID     id.OrgID          `json:"org_id"`
	Employee  id.EmployeeID     `json:"employee_id"`
	Type      LeaveType         `json:"type"`
	From      time.Time         `json:"from"`
	To        time.Time         `json:"to"`
	Note      string            `json:"note,omitempty"`
	Status    Status            `json:"status"`
	DecidedBy id.EmployeeID     `json:"decided_by,omitzero"`
	DecidedAt *time.Time        `json:"decided_at,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func NewRequest(reqID id.LeaveRequestID, orgID id.OrgID, employee id.EmployeeID,
	leaveType LeaveType, from, to time.Time, note string, now time.Time) (*Request, error) {

	if !leaveType.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown leave type %q", leaveType)
	}
	from = day(from)
	to = day(to)
	if !from.Before(to) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "leave must cover at least one day")
	}
	if int(to.Sub(from).Hours()/24) > maxLeaveDays {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "leave cannot exceed 60 days")
	}
	return &Request{
		ID:        reqID,
		OrgID:     orgID,
		Employee:  employee,
		Type:      leaveType,
		From:      from,
		To:        to,
		Note:      strings.TrimSpace(note),
		Status:    StatusRequested,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Overlaps reports whether the two half-open ranges share a day. Only
// pending and approved requests count against new submissions.
func (r *Request) Overlaps(from, to time.Time) bool {
	if r.Status != StatusRequested && r.Status != StatusApproved {
		return false
	}
	return r.From.Before(day(to)) && day(from).Before(r.To)
}

func (r *Request) CanDecide(manager id.EmployeeID) error {
	if r.Status != StatusRequested {
		return dErrors.Newf(dErrors.CodeConflict, "leave request is already %s", r.Status)
	}
	if r.Employee == manager {
		return dErrors.New(dErrors.CodeForbidden, "employees cannot decide their own leave")
	}
	return nil
}

func (r *Request) ApplyApproval(manager id.EmployeeID, now time.Time) {
	r.Status = StatusApproved
	r.decide(manager, "", now)
}

func (r *Request) ApplyRejection(manager id.EmployeeID, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection needs a reason")
	}
	r.Status = StatusRejected
	r.decide(manager, reason, now)
	return nil
}

func (r *Request) CanCancel(actor id.EmployeeID) error {
	if r.Employee != actor {
		return dErrors.New(dErrors.CodeForbidden, "only the requester can cancel")
	}
	if r.Status != StatusRequested {
		return dErrors.Newf(dErrors.CodeConflict, "leave request is already %s", r.Status)
	}
	return nil
}

func (r *Request) ApplyCancellation(now time.Time) {
	r.Status = StatusCancelled
	r.UpdatedAt = now
}

func (r *Request) decide(manager id.EmployeeID, reason string, now time.Time) {
	r.DecidedBy = manager
	r.DecidedAt = &now
	r.Reason = reason
	r.UpdatedAt = now
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
