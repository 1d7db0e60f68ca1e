package models

import (
	"strings"
	"time"

	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
)

// Organization is the tenant boundary. Every other aggregate in the system
// carries an OrgID and every read or write resolves through it.
//
// Invariants:
//   - Name is non-empty, trimmed, at most 128 characters
//   - Status transitions: active ↔ suspended only
//   - CreatedAt is immutable after construction
//
// Suspension is enforced at the service layer: a suspended org fails every
// authenticated operation, without cascading status onto employees or posts.
// Reinstating is then a single status flip.
type Organization struct {
	ID        id.OrgID  `json:"id"`
	Name      string    `json:"name"`
	Status    OrgStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrgStatus string

const (
	OrgStatusActive    OrgStatus = "active"
	OrgStatusSuspended OrgStatus = "suspended"
)

func (s OrgStatus) Valid() bool {
	return s == OrgStatusActive || s == OrgStatusSuspended
}

// CanTransitionTo restricts status changes to the active↔suspended pair.
func (s OrgStatus) CanTransitionTo(next OrgStatus) bool {
	return s.Valid() && next.Valid() && s != next
}

func (o *Organization) IsActive() bool {
	return o.Status == OrgStatusActive
}

// CanSuspend checks if the org can transition to suspended.
func (o *Organization) CanSuspend() error {
	if !o.Status.CanTransitionTo(OrgStatusSuspended) {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization is already suspended")
	}
	return nil
}

// ApplySuspension transitions the org to suspended. Call CanSuspend first.
func (o *Organization) ApplySuspension(now time.Time) {
	o.Status = OrgStatusSuspended
	o.UpdatedAt = now
}

// CanReinstate checks if the org can transition back to active.
func (o *Organization) CanReinstate() error {
	if !o.Status.CanTransitionTo(OrgStatusActive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization is already active")
	}
	return nil
}

// ApplyReinstatement transitions the org to active. Call CanReinstate first.
func (o *Organization) ApplyReinstatement(now time.Time) {
	o.Status = OrgStatusActive
	o.UpdatedAt = now
}

func NewOrganization(orgID id.OrgID, name string, now time.Time) (*Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization name must be 128 characters or less")
	}
	return &Organization{
		ID:        orgID,
		Name:      name,
		Status:    OrgStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// OrgDetails pairs the org with counts the admin view shows.
type OrgDetails struct {
	*Organization
	EmployeeCount   int `json:"employee_count"`
	DepartmentCount int `json:"department_count"`
}
