//go:build integration

package leave_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewpulse/internal/leave"
	id "crewpulse/pkg/domain"
	"crewpulse/pkg/platform/sentinel"
	"crewpulse/pkg/testutil/containers"
)

func mustRequest(t *testing.T, orgID id.OrgID, employee id.EmployeeID, from, to time.Time) *leave.Request {
	t.Helper()
	req, err := leave.NewRequest(id.LeaveRequestID(uuid.New()), orgID, employee,
		leave.TypeVacation, from, to, "", from.Add(-72*time.Hour))
	require.NoError(t, err)
	return req
}

func TestPostgresStore_LeaveLifecycle(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := leave.NewPostgres(pg.DB)
	ctx := context.Background()

	orgID := id.OrgID(uuid.New())
	employee := id.EmployeeID(uuid.New())
	manager := id.EmployeeID(uuid.New())
	from := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 5)

	req := mustRequest(t, orgID, employee, from, to)
	require.NoError(t, store.CreateIfNoOverlap(ctx, req))

	t.Run("overlapping span conflicts", func(t *testing.T) {
		err := store.CreateIfNoOverlap(ctx, mustRequest(t, orgID, employee, from.AddDate(0, 0, 2), to.AddDate(0, 0, 2)))
		assert.True(t, errors.Is(err, sentinel.ErrConflict))
	})

	t.Run("adjacent span is fine", func(t *testing.T) {
		require.NoError(t, store.CreateIfNoOverlap(ctx, mustRequest(t, orgID, employee, to, to.AddDate(0, 0, 2))))
	})

	t.Run("decision persists", func(t *testing.T) {
		decidedAt := to.Add(24 * time.Hour)
		decided, err := store.ExecuteRequest(ctx, orgID, req.ID,
			func(r *leave.Request) error { return r.CanDecide(manager) },
			func(r *leave.Request) error {
				r.ApplyApproval(manager, decidedAt)
				return nil
			})
		require.NoError(t, err)
		assert.Equal(t, leave.StatusApproved, decided.Status)

		found, err := store.FindRequest(ctx, orgID, req.ID)
		require.NoError(t, err)
		assert.Equal(t, leave.StatusApproved, found.Status)
		assert.Equal(t, manager, found.DecidedBy)
	})
}

func TestPostgresStore_ConcurrentOverlappingSubmissions(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := leave.NewPostgres(pg.DB)
	ctx := context.Background()

	orgID := id.OrgID(uuid.New())
	employee := id.EmployeeID(uuid.New())
	from := time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 3)

	const workers = 8
	requests := make([]*leave.Request, workers)
	for i := range requests {
		requests[i] = mustRequest(t, orgID, employee, from, to)
	}

	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = store.CreateIfNoOverlap(ctx, requests[i])
		}()
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.True(t, errors.Is(err, sentinel.ErrConflict), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, created, "exactly one of the racing submissions may land")

	pending, err := store.ListPending(ctx, orgID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
