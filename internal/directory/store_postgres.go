package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "crewpulse/pkg/domain"
	"crewpulse/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres persists the directory. Email uniqueness per org and department
// name uniqueness per org are unique indexes; violations surface as
// sentinel.ErrConflict.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreateEmployee(ctx context.Context, e *Employee) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, org_id, full_name, email, title, department_id, status, joined_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(e.ID), uuid.UUID(e.OrgID), e.FullName, e.Email, e.Title,
		nullableUUID(uuid.UUID(e.Department)), string(e.Status), e.JoinedAt, e.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateEmployee(ctx context.Context, e *Employee) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE employees
		SET full_name = $3, title = $4, department_id = $5, status = $6, updated_at = $7
		WHERE id = $1 AND org_id = $2
	`, uuid.UUID(e.ID), uuid.UUID(e.OrgID), e.FullName, e.Title,
		nullableUUID(uuid.UUID(e.Department)), string(e.Status), e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) FindEmployee(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID) (*Employee, error) {
	row := s.db.QueryRowContext(ctx, employeeSelect+` WHERE id = $1 AND org_id = $2`,
		uuid.UUID(employeeID), uuid.UUID(orgID))
	return scanEmployee(row)
}

func (s *Postgres) FindEmployeeByEmail(ctx context.Context, orgID id.OrgID, email string) (*Employee, error) {
	row := s.db.QueryRowContext(ctx, employeeSelect+` WHERE org_id = $1 AND email = lower($2)`,
		uuid.UUID(orgID), strings.TrimSpace(email))
	return scanEmployee(row)
}

func (s *Postgres) FindEmployeeByHandle(ctx context.Context, orgID id.OrgID, handle string) (*Employee, error) {
	row := s.db.QueryRowContext(ctx, employeeSelect+` WHERE org_id = $1 AND split_part(email, '@', 1) = lower($2)`,
		uuid.UUID(orgID), strings.TrimSpace(handle))
	return scanEmployee(row)
}

func (s *Postgres) ListEmployees(ctx context.Context, orgID id.OrgID, filter EmployeeFilter) ([]*Employee, error) {
	query := employeeSelect + ` WHERE org_id = $1`
	args := []any{uuid.UUID(orgID)}

	if prefix := strings.TrimSpace(filter.NamePrefix); prefix != "" {
		args = append(args, strings.ToLower(prefix)+"%")
		query += fmt.Sprintf(" AND lower(full_name) LIKE $%d", len(args))
	}
	if !filter.Department.IsNil() {
		args = append(args, uuid.UUID(filter.Department))
		query += fmt.Sprintf(" AND department_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY full_name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	var out []*Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func (s *Postgres) CountEmployees(ctx context.Context, orgID id.OrgID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM employees WHERE org_id = $1`, uuid.UUID(orgID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count employees: %w", err)
	}
	return n, nil
}

func (s *Postgres) CreateDepartment(ctx context.Context, d *Department) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO departments (id, org_id, name, description, head_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(d.ID), uuid.UUID(d.OrgID), d.Name, d.Description,
		nullableUUID(uuid.UUID(d.Head)), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert department: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateDepartment(ctx context.Context, d *Department) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE departments
		SET name = $3, description = $4, head_id = $5, updated_at = $6
		WHERE id = $1 AND org_id = $2
	`, uuid.UUID(d.ID), uuid.UUID(d.OrgID), d.Name, d.Description,
		nullableUUID(uuid.UUID(d.Head)), d.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update department: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) FindDepartment(ctx context.Context, orgID id.OrgID, deptID id.DepartmentID) (*Department, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, name, description, head_id, created_at, updated_at
		FROM departments WHERE id = $1 AND org_id = $2
	`, uuid.UUID(deptID), uuid.UUID(orgID))
	return scanDepartment(row)
}

func (s *Postgres) ListDepartments(ctx context.Context, orgID id.OrgID) ([]*DepartmentDetails, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.org_id, d.name, d.description, d.head_id, d.created_at, d.updated_at,
		       count(e.id)
		FROM departments d
		LEFT JOIN employees e ON e.department_id = d.id AND e.org_id = d.org_id
		WHERE d.org_id = $1
		GROUP BY d.id
		ORDER BY d.name
	`, uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("query departments: %w", err)
	}
	defer rows.Close()

	var out []*DepartmentDetails
	for rows.Next() {
		var (
			dept    Department
			rawID   uuid.UUID
			rawOrg  uuid.UUID
			rawHead *uuid.UUID
			count   int
		)
		if err := rows.Scan(&rawID, &rawOrg, &dept.Name, &dept.Description, &rawHead,
			&dept.CreatedAt, &dept.UpdatedAt, &count); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		dept.ID = id.DepartmentID(rawID)
		dept.OrgID = id.OrgID(rawOrg)
		if rawHead != nil {
			dept.Head = id.EmployeeID(*rawHead)
		}
		out = append(out, &DepartmentDetails{Department: &dept, MemberCount: count})
	}
	return out, rows.Err()
}

func (s *Postgres) CountDepartments(ctx context.Context, orgID id.OrgID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM departments WHERE org_id = $1`, uuid.UUID(orgID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count departments: %w", err)
	}
	return n, nil
}

func (s *Postgres) ClearDepartmentHead(ctx context.Context, orgID id.OrgID, head id.EmployeeID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE departments SET head_id = NULL WHERE org_id = $1 AND head_id = $2
	`, uuid.UUID(orgID), uuid.UUID(head))
	if err != nil {
		return fmt.Errorf("clear department head: %w", err)
	}
	return nil
}

const employeeSelect = `
	SELECT id, org_id, full_name, email, title, department_id, status, joined_at, updated_at
	FROM employees`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*Employee, error) {
	var (
		emp     Employee
		rawID   uuid.UUID
		rawOrg  uuid.UUID
		rawDept *uuid.UUID
		status  string
	)
	err := row.Scan(&rawID, &rawOrg, &emp.FullName, &emp.Email, &emp.Title,
		&rawDept, &status, &emp.JoinedAt, &emp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan employee: %w", err)
	}
	emp.ID = id.EmployeeID(rawID)
	emp.OrgID = id.OrgID(rawOrg)
	if rawDept != nil {
		emp.Department = id.DepartmentID(*rawDept)
	}
	emp.Status = EmployeeStatus(status)
	return &emp, nil
}

func scanDepartment(row rowScanner) (*Department, error) {
	var (
		dept    Department
		rawID   uuid.UUID
		rawOrg  uuid.UUID
		rawHead *uuid.UUID
	)
	err := row.Scan(&rawID, &rawOrg, &dept.Name, &dept.Description, &rawHead,
		&dept.CreatedAt, &dept.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan department: %w", err)
	}
	dept.ID = id.DepartmentID(rawID)
	dept.OrgID = id.OrgID(rawOrg)
	if rawHead != nil {
		dept.Head = id.EmployeeID(*rawHead)
	}
	return &dept, nil
}

func nullableUUID(u uuid.UUID) any {
	if u == uuid.Nil {
		return nil
	}
	return u
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
