// Package directory holds the employee and department aggregates. The
// directory is the reference data every other module resolves against:
// mentions, kudos recipients, leave approvers all have to be active employees
// of the acting org.
package directory

import (
	"strings"
	"time"

	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
)

type EmployeeStatus string

const (
	EmployeeActive   EmployeeStatus = "active"
	EmployeeInactive EmployeeStatus = "inactive"
)

// Employee is a member of one organization. Email is unique per org
// (lowercased); its local part doubles as the mention handle in the feed.
type Employee struct {
	ID         id.EmployeeID   `json:"id"`
	OrgID      id.OrgID        `json:"org_id"`
	FullName   string          `json:"full_name"`
	Email      string          `json:"email"`
	Title      string          `json:"title,omitempty"`
	Department id.DepartmentID `json:"department_id,omitzero"`
	Status     EmployeeStatus  `json:"status"`
	JoinedAt   time.Time       `json:"joined_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (e *Employee) IsActive() bool { return e.Status == EmployeeActive }

// Handle is the mention token for this employee: the local part of the email.
func (e *Employee) Handle() string {
	at := strings.IndexByte(e.Email, '@')
	if at < 0 {
		return e.Email
	}
	return e.Email[:at]
}

func NewEmployee(employeeID id.EmployeeID, orgID id.OrgID, fullName, email, title string, now time.Time) (*Employee, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "employee name cannot be empty")
	}
	if len(fullName) > 200 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "employee name must be 200 characters or less")
	}
	if !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "employee email is not valid")
	}
	return &Employee{
		ID:        employeeID,
		OrgID:     orgID,
		FullName:  fullName,
		Email:     email,
		Title:     strings.TrimSpace(title),
		Status:    EmployeeActive,
		JoinedAt:  now,
		UpdatedAt: now,
	}, nil
}

// Department groups employees inside one org. Head is optional and must be
// an active employee of the same org; deactivating the head clears it.
type Department struct {
	ID          id.DepartmentID `json:"id"`
	OrgID       id.OrgID        `json:"org_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Head        id.EmployeeID   `json:"head_id,omitzero"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func NewDepartment(deptID id.DepartmentID, orgID id.OrgID, name, description string, now time.Time) (*Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "department name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "department name must be 128 characters or less")
	}
	return &Department{
		ID:          deptID,
		OrgID:       orgID,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// DepartmentDetails pairs a department with its member count for listings.
type DepartmentDetails struct {
	*Department
	MemberCount int `json:"member_count"`
}

// EmployeeFilter narrows directory listings. Zero values mean "any".
type EmployeeFilter struct {
	NamePrefix string
	Department id.DepartmentID
	Status     EmployeeStatus
}

// UpdateEmployeeRequest carries the mutable profile fields. Nil means leave
// unchanged.
type UpdateEmployeeRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=200"`
	Title    *string `json:"title" validate:"omitempty,max=128"`
}
