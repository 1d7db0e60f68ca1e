package audit

import (
	"context"
	"log/slog"
	"time"

	"crewpulse/internal/platform/metrics"
)

// Publisher accepts audit events without blocking request handling. Events go
// into a bounded channel drained by the worker; on overflow the event is
// dropped and counted. Audit here is best-effort visibility, not a ledger the
// request must wait on.
type Publisher struct {
	out     chan Event
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewPublisher(bufferSize int, logger *slog.Logger, m *metrics.Metrics) *Publisher {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &Publisher{
		out:     make(chan Event, bufferSize),
		logger:  logger,
		metrics: m,
	}
}

// Emit enqueues an event, stamping time and category when absent.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Category == "" {
		event.Category = Action(event.Action).Category()
	}
	select {
	case p.out <- event:
	default:
		if p.metrics != nil {
			p.metrics.AuditDropped.Inc()
		}
		p.logger.Warn("audit event dropped, buffer full",
			"action", event.Action,
			"org_id", event.OrgID.String(),
		)
	}
}

// Events exposes the receive side for the worker.
func (p *Publisher) Events() <-chan Event { return p.out }
