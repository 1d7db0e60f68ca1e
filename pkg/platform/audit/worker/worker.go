package worker

import (
	"context"
	"log/slog"

	audit "crewpulse/pkg/platform/audit"
)

// Worker consumes audit events from the publisher channel and persists them.
// Store failures are logged and the loop keeps going; losing one audit row is
// better than stopping the drain and losing all of them.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func New(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(context.WithoutCancel(ctx), event); err != nil {
				w.logger.Error("append audit event",
					"action", event.Action,
					"error", err.Error(),
				)
			}
		}
	}
}
