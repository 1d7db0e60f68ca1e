package directory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	id "crewpulse/pkg/domain"
	"crewpulse/pkg/platform/sentinel"
)

// InMemory keeps the directory in mutex-guarded maps. Lookups are org-scoped
// at the map-key level so a cross-org id can never match.
type InMemory struct {
	mu          sync.RWMutex
	employees   map[id.OrgID]map[id.EmployeeID]*Employee
	departments map[id.OrgID]map[id.DepartmentID]*Department
}

func NewInMemory() *InMemory {
	return &InMemory{
		employees:   make(map[id.OrgID]map[id.EmployeeID]*Employee),
		departments: make(map[id.OrgID]map[id.DepartmentID]*Department),
	}
}

func (s *InMemory) CreateEmployee(_ context.Context, e *Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.employees[e.OrgID]
	if !ok {
		byID = make(map[id.EmployeeID]*Employee)
		s.employees[e.OrgID] = byID
	}
	for _, existing := range byID {
		if existing.Email == e.Email {
			return sentinel.ErrConflict
		}
	}
	clone := *e
	byID[e.ID] = &clone
	return nil
}

func (s *InMemory) UpdateEmployee(_ context.Context, e *Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.employees[e.OrgID]
	if _, ok := byID[e.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *e
	byID[e.ID] = &clone
	return nil
}

func (s *InMemory) FindEmployee(_ context.Context, orgID id.OrgID, employeeID id.EmployeeID) (*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emp, ok := s.employees[orgID][employeeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *emp
	return &clone, nil
}

func (s *InMemory) FindEmployeeByEmail(_ context.Context, orgID id.OrgID, email string) (*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, emp := range s.employees[orgID] {
		if emp.Email == email {
			clone := *emp
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindEmployeeByHandle(_ context.Context, orgID id.OrgID, handle string) (*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handle = strings.ToLower(strings.TrimSpace(handle))
	for _, emp := range s.employees[orgID] {
		if emp.Handle() == handle {
			clone := *emp
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListEmployees(_ context.Context, orgID id.OrgID, filter EmployeeFilter) ([]*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := strings.ToLower(strings.TrimSpace(filter.NamePrefix))
	matches := lo.FilterMap(lo.Values(s.employees[orgID]), func(emp *Employee, _ int) (*Employee, bool) {
		if prefix != "" && !strings.HasPrefix(strings.ToLower(emp.FullName), prefix) {
			return nil, false
		}
		if !filter.Department.IsNil() && emp.Department != filter.Department {
			return nil, false
		}
		if filter.Status != "" && emp.Status != filter.Status {
			return nil, false
		}
		clone := *emp
		return &clone, true
	})

	sort.Slice(matches, func(i, j int) bool { return matches[i].FullName < matches[j].FullName })
	return matches, nil
}

func (s *InMemory) CountEmployees(_ context.Context, orgID id.OrgID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.employees[orgID]), nil
}

func (s *InMemory) CreateDepartment(_ context.Context, d *Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.departments[d.OrgID]
	if !ok {
		byID = make(map[id.DepartmentID]*Department)
		s.departments[d.OrgID] = byID
	}
	for _, existing := range byID {
		if strings.EqualFold(existing.Name, d.Name) {
			return sentinel.ErrConflict
		}
	}
	clone := *d
	byID[d.ID] = &clone
	return nil
}

func (s *InMemory) UpdateDepartment(_ context.Context, d *Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.departments[d.OrgID]
	if _, ok := byID[d.ID]; !ok {
		return sentinel.ErrNotFound
	}
	for _, existing := range byID {
		if existing.ID != d.ID && strings.EqualFold(existing.Name, d.Name) {
			return sentinel.ErrConflict
		}
	}
	clone := *d
	byID[d.ID] = &clone
	return nil
}

func (s *InMemory) FindDepartment(_ context.Context, orgID id.OrgID, deptID id.DepartmentID) (*Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dept, ok := s.departments[orgID][deptID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *dept
	return &clone, nil
}

func (s *InMemory) ListDepartments(_ context.Context, orgID id.OrgID) ([]*DepartmentDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := lo.CountValuesBy(lo.Values(s.employees[orgID]), func(emp *Employee) id.DepartmentID {
		return emp.Department
	})

	details := lo.Map(lo.Values(s.departments[orgID]), func(dept *Department, _ int) *DepartmentDetails {
		clone := *dept
		return &DepartmentDetails{Department: &clone, MemberCount: counts[dept.ID]}
	})
	sort.Slice(details, func(i, j int) bool { return details[i].Name < details[j].Name })
	return details, nil
}

func (s *InMemory) CountDepartments(_ context.Context, orgID id.OrgID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.departments[orgID]), nil
}

func (s *InMemory) ClearDepartmentHead(_ context.Context, orgID id.OrgID, head id.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, dept := range s.departments[orgID] {
		if dept.Head == head {
			dept.Head = id.EmployeeID{}
		}
	}
	return nil
}
