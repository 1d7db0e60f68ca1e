package directory

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewpulse/internal/events"
	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
	"crewpulse/pkg/requestcontext"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.Event) {}

func newTestService() *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(NewInMemory(), nopPublisher{}, logger)
}

func testCtx() context.Context {
	return requestcontext.WithTime(context.Background(),
		time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC))
}

func TestAddEmployee(t *testing.T) {
	svc := newTestService()
	orgID := id.OrgID(uuid.New())
	ctx := testCtx()

	emp, err := svc.AddEmployee(ctx, orgID, "Jane Doe", "Jane.Doe@Example.com", "Engineer")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", emp.Email, "email is stored lowercased")
	assert.Equal(t, "jane.doe", emp.Handle())
	assert.True(t, emp.IsActive())

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := svc.AddEmployee(ctx, orgID, "Other Jane", "jane.doe@example.com", "")
		assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
	})

	t.Run("same email in another org is fine", func(t *testing.T) {
		_, err := svc.AddEmployee(ctx, id.OrgID(uuid.New()), "Jane Doe", "jane.doe@example.com", "")
		assert.NoError(t, err)
	})

	t.Run("invalid email rejected as validation", func(t *testing.T) {
		_, err := svc.AddEmployee(ctx, orgID, "No Email", "not-an-address", "")
		assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
	})
}

func TestEmployeeLifecycle(t *testing.T) {
	svc := newTestService()
	orgID := id.OrgID(uuid.New())
	ctx := testCtx()

	emp, err := svc.AddEmployee(ctx, orgID, "Sam Lee", "sam@example.com", "")
	require.NoError(t, err)

	deactivated, err := svc.DeactivateEmployee(ctx, orgID, emp.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive())

	_, err = svc.DeactivateEmployee(ctx, orgID, emp.ID)
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err), "deactivating twice conflicts")

	_, err = svc.RequireActiveEmployee(ctx, orgID, emp.ID)
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))

	reactivated, err := svc.ReactivateEmployee(ctx, orgID, emp.ID)
	require.NoError(t, err)
	assert.True(t, reactivated.IsActive())

	_, err = svc.GetEmployee(ctx, id.OrgID(uuid.New()), emp.ID)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err), "cross-org lookup reads as missing")
}

func TestDeactivateEmployee_ClearsDepartmentHead(t *testing.T) {
	svc := newTestService()
	orgID := id.OrgID(uuid.New())
	ctx := testCtx()

	head, err := svc.AddEmployee(ctx, orgID, "Head Person", "head@example.com", "")
	require.NoError(t, err)
	dept, err := svc.CreateDepartment(ctx, orgID, "Platform", "")
	require.NoError(t, err)
	_, err = svc.AssignHead(ctx, orgID, dept.ID, head.ID)
	require.NoError(t, err)

	_, err = svc.DeactivateEmployee(ctx, orgID, head.ID)
	require.NoError(t, err)

	depts, err := svc.ListDepartments(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, depts, 1)
	assert.True(t, depts[0].Head.IsNil())
}

func TestDepartments(t *testing.T) {
	svc := newTestService()
	orgID := id.OrgID(uuid.New())
	ctx := testCtx()

	dept, err := svc.CreateDepartment(ctx, orgID, "Design", "makes things pretty")
	require.NoError(t, err)

	_, err = svc.CreateDepartment(ctx, orgID, "design", "")
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err), "names are unique case-insensitively")

	emp, err := svc.AddEmployee(ctx, orgID, "Ada", "ada@example.com", "")
	require.NoError(t, err)
	moved, err := svc.MoveEmployee(ctx, orgID, emp.ID, dept.ID)
	require.NoError(t, err)
	assert.Equal(t, dept.ID, moved.Department)

	depts, err := svc.ListDepartments(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, depts, 1)
	assert.Equal(t, 1, depts[0].MemberCount)

	// Moving out of any department.
	moved, err = svc.MoveEmployee(ctx, orgID, emp.ID, id.DepartmentID{})
	require.NoError(t, err)
	assert.True(t, moved.Department.IsNil())

	_, err = svc.MoveEmployee(ctx, orgID, emp.ID, id.DepartmentID(uuid.New()))
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func TestAssignHead_RequiresActiveEmployee(t *testing.T) {
	svc := newTestService()
	orgID := id.OrgID(uuid.New())
	ctx := testCtx()

	dept, err := svc.CreateDepartment(ctx, orgID, "Support", "")
	require.NoError(t, err)
	emp, err := svc.AddEmployee(ctx, orgID, "Max", "max@example.com", "")
	require.NoError(t, err)
	_, err = svc.DeactivateEmployee(ctx, orgID, emp.ID)
	require.NoError(t, err)

	_, err = svc.AssignHead(ctx, orgID, dept.ID, emp.ID)
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
}

func TestResolveHandles(t *testing.T) {
	svc := newTestService()
	orgID := id.OrgID(uuid.New())
	ctx := testCtx()

	alice, err := svc.AddEmployee(ctx, orgID, "Alice", "alice@example.com", "")
	require.NoError(t, err)
	bob, err := svc.AddEmployee(ctx, orgID, "Bob", "bob@example.com", "")
	require.NoError(t, err)
	_, err = svc.DeactivateEmployee(ctx, orgID, bob.ID)
	require.NoError(t, err)

	resolved, err := svc.ResolveHandles(ctx, orgID, []string{"alice", "bob", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, []id.EmployeeID{alice.ID}, resolved,
		"inactive employees and unknown handles resolve to nothing")
}

func TestDepartmentHead(t *testing.T) {
	svc := newTestService()
	orgID := id.OrgID(uuid.New())
	ctx := testCtx()

	head, err := svc.AddEmployee(ctx, orgID, "Head", "head@example.com", "")
	require.NoError(t, err)
	member, err := svc.AddEmployee(ctx, orgID, "Member", "member@example.com", "")
	require.NoError(t, err)

	got, err := svc.DepartmentHead(ctx, orgID, member.ID)
	require.NoError(t, err)
	assert.True(t, got.IsNil(), "no department means no head")

	dept, err := svc.CreateDepartment(ctx, orgID, "Ops", "")
	require.NoError(t, err)
	_, err = svc.MoveEmployee(ctx, orgID, member.ID, dept.ID)
	require.NoError(t, err)

	got, err = svc.DepartmentHead(ctx, orgID, member.ID)
	require.NoError(t, err)
	assert.True(t, got.IsNil(), "department without a head")

	_, err = svc.AssignHead(ctx, orgID, dept.ID, head.ID)
	require.NoError(t, err)
	got, err = svc.DepartmentHead(ctx, orgID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, head.ID, got)
}

func TestListEmployees_Filters(t *testing.T) {
	svc := newTestService()
	orgID := id.OrgID(uuid.New())
	ctx := testCtx()

	_, err := svc.AddEmployee(ctx, orgID, "Anna Smith", "anna@example.com", "")
	require.NoError(t, err)
	ben, err := svc.AddEmployee(ctx, orgID, "Ben Smith", "ben@example.com", "")
	require.NoError(t, err)
	_, err = svc.DeactivateEmployee(ctx, orgID, ben.ID)
	require.NoError(t, err)

	active, err := svc.ListEmployees(ctx, orgID, EmployeeFilter{Status: EmployeeActive})
	require.NoError(t, err)
	names := lo.Map(active, func(e *Employee, _ int) string { return e.FullName })
	assert.Equal(t, []string{"Anna Smith"}, names)

	prefixed, err := svc.ListEmployees(ctx, orgID, EmployeeFilter{NamePrefix: "ben"})
	require.NoError(t, err)
	require.Len(t, prefixed, 1)
	assert.Equal(t, "Ben Smith", prefixed[0].FullName)
}
