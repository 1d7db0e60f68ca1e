package audit_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewpulse/internal/events"
	id "crewpulse/pkg/domain"
	audit "crewpulse/pkg/platform/audit"
	auditmemory "crewpulse/pkg/platform/audit/store/memory"
	auditworker "crewpulse/pkg/platform/audit/worker"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestForwarder_FlattensDomainEvents(t *testing.T) {
	orgID := id.OrgID(uuid.New())
	actor := id.EmployeeID(uuid.New())
	at := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)

	publisher := audit.NewPublisher(8, testLogger, nil)
	forwarder := audit.NewForwarder(publisher)

	requestID := id.LeaveRequestID(uuid.New())
	forwarder.Handle(context.Background(), events.LeaveDecided{
		Base:      events.Base{OrgID: orgID, Actor: actor, At: at},
		RequestID: requestID,
		Employee:  id.EmployeeID(uuid.New()),
		Approved:  false,
		Reason:    "blackout period",
	})

	row := <-publisher.Events()
	assert.Equal(t, "leave_decided", row.Action)
	assert.Equal(t, audit.CategoryCompliance, row.Category)
	assert.Equal(t, orgID, row.OrgID)
	assert.Equal(t, actor, row.ActorID)
	assert.Equal(t, requestID.String(), row.Subject)
	assert.Equal(t, "rejected: blackout period", row.Detail)
	assert.Equal(t, at, row.Timestamp)
}

func TestForwarder_CategoryDefaults(t *testing.T) {
	publisher := audit.NewPublisher(8, testLogger, nil)
	forwarder := audit.NewForwarder(publisher)
	base := events.Base{OrgID: id.OrgID(uuid.New()), At: time.Now()}

	forwarder.Handle(context.Background(), events.OrgSuspended{Base: base})
	assert.Equal(t, audit.CategorySecurity, (<-publisher.Events()).Category)

	forwarder.Handle(context.Background(), events.PostPublished{Base: base, PostID: id.PostID(uuid.New())})
	assert.Equal(t, audit.CategoryOperations, (<-publisher.Events()).Category)
}

func TestPublisher_DropsOnFullBuffer(t *testing.T) {
	publisher := audit.NewPublisher(1, testLogger, nil)
	ctx := context.Background()

	publisher.Emit(ctx, audit.Event{Action: "org_created"})
	require.NotPanics(t, func() {
		publisher.Emit(ctx, audit.Event{Action: "org_suspended"})
	})

	// Only the first event made it into the buffer.
	first := <-publisher.Events()
	assert.Equal(t, "org_created", first.Action)
	select {
	case row := <-publisher.Events():
		t.Fatalf("expected empty buffer, got %q", row.Action)
	default:
	}
}

func TestWorker_DrainsIntoStore(t *testing.T) {
	orgID := id.OrgID(uuid.New())
	store := auditmemory.New()
	publisher := audit.NewPublisher(8, testLogger, nil)
	worker := auditworker.New(store, publisher.Events(), testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	publisher.Emit(ctx, audit.Event{OrgID: orgID, Action: "kudos_given"})
	publisher.Emit(ctx, audit.Event{OrgID: orgID, Action: "post_published"})

	require.Eventually(t, func() bool {
		rows, err := store.ListByOrg(context.Background(), orgID, 0)
		return err == nil && len(rows) == 2
	}, time.Second, 5*time.Millisecond)

	rows, err := store.ListByOrg(context.Background(), orgID, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "post_published", rows[0].Action, "newest row first")

	cancel()
	<-done
}
