package directory

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"crewpulse/internal/events"
	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
	"crewpulse/pkg/platform/sentinel"
	"crewpulse/pkg/requestcontext"
)

// Store is the persistence contract for the directory. Implementations:
// InMemory and Postgres.
type Store interface {
	CreateEmployee(ctx context.Context, e *Employee) error
	UpdateEmployee(ctx context.Context, e *Employee) error
	FindEmployee(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID) (*Employee, error)
	FindEmployeeByEmail(ctx context.Context, orgID id.OrgID, email string) (*Employee, error)
	// FindEmployeeByHandle matches the local part of the email.
	FindEmployeeByHandle(ctx context.Context, orgID id.OrgID, handle string) (*Employee, error)
	ListEmployees(ctx context.Context, orgID id.OrgID, filter EmployeeFilter) ([]*Employee, error)
	CountEmployees(ctx context.Context, orgID id.OrgID) (int, error)

	CreateDepartment(ctx context.Context, d *Department) error
	UpdateDepartment(ctx context.Context, d *Department) error
	FindDepartment(ctx context.Context, orgID id.OrgID, deptID id.DepartmentID) (*Department, error)
	ListDepartments(ctx context.Context, orgID id.OrgID) ([]*DepartmentDetails, error)
	CountDepartments(ctx context.Context, orgID id.OrgID) (int, error)
	ClearDepartmentHead(ctx context.Context, orgID id.OrgID, head id.EmployeeID) error
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event)
}

// Service orchestrates employee and department management for one org at a
// time; the org always comes from request context, never from the payload.
type Service struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
}

func NewService(store Store, publisher Publisher, logger *slog.Logger) *Service {
	return &Service{store: store, publisher: publisher, logger: logger}
}

func (s *Service) AddEmployee(ctx context.Context, orgID id.OrgID, fullName, email, title string) (*Employee, error) {
	emp, err := NewEmployee(id.EmployeeID(uuid.New()), orgID, fullName, email, title, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}

	if err := s.store.CreateEmployee(ctx, emp); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "an employee with this email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add employee")
	}

	s.publisher.Publish(ctx, events.EmployeeJoined{
		Base:       events.Base{OrgID: orgID, Actor: requestcontext.EmployeeID(ctx), At: emp.JoinedAt},
		EmployeeID: emp.ID,
		FullName:   emp.FullName,
	})
	return emp, nil
}

func (s *Service) GetEmployee(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID) (*Employee, error) {
	emp, err := s.store.FindEmployee(ctx, orgID, employeeID)
	if err != nil {
		return nil, wrapDirErr(err, "employee")
	}
	return emp, nil
}

func (s *Service) UpdateEmployee(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID, req UpdateEmployeeRequest) (*Employee, error) {
	emp, err := s.store.FindEmployee(ctx, orgID, employeeID)
	if err != nil {
		return nil, wrapDirErr(err, "employee")
	}

	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "employee name cannot be empty")
		}
		emp.FullName = name
	}
	if req.Title != nil {
		emp.Title = strings.TrimSpace(*req.Title)
	}
	emp.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.UpdateEmployee(ctx, emp); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update employee")
	}
	return emp, nil
}

// DeactivateEmployee marks the employee inactive and clears any department
// head reference pointing at them.
func (s *Service) DeactivateEmployee(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID) (*Employee, error) {
	emp, err := s.store.FindEmployee(ctx, orgID, employeeID)
	if err != nil {
		return nil, wrapDirErr(err, "employee")
	}
	if !emp.IsActive() {
		return nil, dErrors.New(dErrors.CodeConflict, "employee is already inactive")
	}

	emp.Status = EmployeeInactive
	emp.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.UpdateEmployee(ctx, emp); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate employee")
	}
	if err := s.store.ClearDepartmentHead(ctx, orgID, employeeID); err != nil {
		s.logger.ErrorContext(ctx, "clear department head failed",
			"employee_id", employeeID.String(), "error", err.Error())
	}
	return emp, nil
}

func (s *Service) ReactivateEmployee(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID) (*Employee, error) {
	emp, err := s.store.FindEmployee(ctx, orgID, employeeID)
	if err != nil {
		return nil, wrapDirErr(err, "employee")
	}
	if emp.IsActive() {
		return nil, dErrors.New(dErrors.CodeConflict, "employee is already active")
	}

	emp.Status = EmployeeActive
	emp.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.UpdateEmployee(ctx, emp); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reactivate employee")
	}
	return emp, nil
}

func (s *Service) ListEmployees(ctx context.Context, orgID id.OrgID, filter EmployeeFilter) ([]*Employee, error) {
	list, err := s.store.ListEmployees(ctx, orgID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list employees")
	}
	return list, nil
}

func (s *Service) CreateDepartment(ctx context.Context, orgID id.OrgID, name, description string) (*Department, error) {
	dept, err := NewDepartment(id.DepartmentID(uuid.New()), orgID, name, description, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	if err := s.store.CreateDepartment(ctx, dept); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a department with this name already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create department")
	}
	return dept, nil
}

// RenameDepartment updates name and description.
func (s *Service) RenameDepartment(ctx context.Context, orgID id.OrgID, deptID id.DepartmentID, name, description string) (*Department, error) {
	dept, err := s.store.FindDepartment(ctx, orgID, deptID)
	if err != nil {
		return nil, wrapDirErr(err, "department")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "department name cannot be empty")
	}
	dept.Name = name
	dept.Description = strings.TrimSpace(description)
	dept.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.UpdateDepartment(ctx, dept); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a department with this name already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to rename department")
	}
	return dept, nil
}

// AssignHead points a department at an active employee of the same org.
func (s *Service) AssignHead(ctx context.Context, orgID id.OrgID, deptID id.DepartmentID, head id.EmployeeID) (*Department, error) {
	dept, err := s.store.FindDepartment(ctx, orgID, deptID)
	if err != nil {
		return nil, wrapDirErr(err, "department")
	}
	emp, err := s.store.FindEmployee(ctx, orgID, head)
	if err != nil {
		return nil, wrapDirErr(err, "employee")
	}
	if !emp.IsActive() {
		return nil, dErrors.New(dErrors.CodeConflict, "department head must be an active employee")
	}

	dept.Head = head
	dept.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.UpdateDepartment(ctx, dept); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign department head")
	}
	return dept, nil
}

// MoveEmployee reassigns an employee to a department of the same org, or out
// of any department when deptID is nil.
func (s *Service) MoveEmployee(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID, deptID id.DepartmentID) (*Employee, error) {
	emp, err := s.store.FindEmployee(ctx, orgID, employeeID)
	if err != nil {
		return nil, wrapDirErr(err, "employee")
	}
	if !deptID.IsNil() {
		if _, err := s.store.FindDepartment(ctx, orgID, deptID); err != nil {
			return nil, wrapDirErr(err, "department")
		}
	}

	emp.Department = deptID
	emp.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.UpdateEmployee(ctx, emp); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to move employee")
	}
	return emp, nil
}

func (s *Service) ListDepartments(ctx context.Context, orgID id.OrgID) ([]*DepartmentDetails, error) {
	list, err := s.store.ListDepartments(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list departments")
	}
	return list, nil
}

// CountEmployees implements the org service's MemberCounter.
func (s *Service) CountEmployees(ctx context.Context, orgID id.OrgID) (int, error) {
	return s.store.CountEmployees(ctx, orgID)
}

// CountDepartments implements the org service's MemberCounter.
func (s *Service) CountDepartments(ctx context.Context, orgID id.OrgID) (int, error) {
	return s.store.CountDepartments(ctx, orgID)
}

// ResolveHandles maps mention handles to active employees of the org.
// Unknown handles are skipped; the feed treats them as plain text.
func (s *Service) ResolveHandles(ctx context.Context, orgID id.OrgID, handles []string) ([]id.EmployeeID, error) {
	resolved := make([]id.EmployeeID, 0, len(handles))
	for _, handle := range handles {
		emp, err := s.store.FindEmployeeByHandle(ctx, orgID, handle)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve mention")
		}
		if emp.IsActive() {
			resolved = append(resolved, emp.ID)
		}
	}
	return resolved, nil
}

// DepartmentHead resolves the head of the employee's department. Returns a
// nil id when the employee has no department or the department has no head.
func (s *Service) DepartmentHead(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID) (id.EmployeeID, error) {
	emp, err := s.store.FindEmployee(ctx, orgID, employeeID)
	if err != nil {
		return id.EmployeeID{}, wrapDirErr(err, "employee")
	}
	if emp.Department.IsNil() {
		return id.EmployeeID{}, nil
	}
	dept, err := s.store.FindDepartment(ctx, orgID, emp.Department)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.EmployeeID{}, nil
		}
		return id.EmployeeID{}, wrapDirErr(err, "department")
	}
	return dept.Head, nil
}

// RequireActiveEmployee verifies that the employee exists, belongs to the
// org, and is active. Cross-org ids surface as not_found.
func (s *Service) RequireActiveEmployee(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID) (*Employee, error) {
	emp, err := s.store.FindEmployee(ctx, orgID, employeeID)
	if err != nil {
		return nil, wrapDirErr(err, "employee")
	}
	if !emp.IsActive() {
		return nil, dErrors.New(dErrors.CodeConflict, "employee is not active")
	}
	return emp, nil
}

func wrapDirErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "directory store failure")
	}
}
