package events

import (
	"context"
	"log/slog"
	"sync"

	"crewpulse/internal/platform/metrics"
)

// Handler consumes events. Handlers must tolerate redelivery of semantically
// duplicate events and must not block for long; slow work belongs behind the
// handler's own queue.
type Handler interface {
	Name() string
	Handle(ctx context.Context, event Event)
}

// Dispatcher fans events out to subscribed handlers. Publish never blocks the
// caller: events go through a bounded inbox drained by Run. When the inbox is
// full the event is dropped and counted, the same trade the audit publisher
// makes; request handling is never held hostage by a listener.
type Dispatcher struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu   sync.RWMutex
	subs map[Kind][]Handler
	all  []Handler

	inbox chan Event
	sync  bool
}

type Option func(*Dispatcher)

// WithBufferSize sets the inbox capacity.
func WithBufferSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.inbox = make(chan Event, n)
		}
	}
}

// WithMetrics wires the shared metrics struct.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// Synchronous delivers events inline from Publish. For tests and CLI tools;
// the server always runs the async loop.
func Synchronous() Option {
	return func(d *Dispatcher) { d.sync = true }
}

func NewDispatcher(logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger: logger,
		subs:   make(map[Kind][]Handler),
		inbox:  make(chan Event, 1024),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers a handler for the given kinds. With no kinds the
// handler receives every event.
func (d *Dispatcher) Subscribe(h Handler, kinds ...Kind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(kinds) == 0 {
		d.all = append(d.all, h)
		return
	}
	for _, k := range kinds {
		d.subs[k] = append(d.subs[k], h)
	}
}

// Publish hands an event to the dispatcher. In async mode a full inbox drops
// the event rather than stalling the caller.
func (d *Dispatcher) Publish(ctx context.Context, event Event) {
	if d.metrics != nil {
		d.metrics.EventsPublished.WithLabelValues(string(event.Kind())).Inc()
	}
	if d.sync {
		d.deliver(ctx, event)
		return
	}
	select {
	case d.inbox <- event:
	default:
		if d.metrics != nil {
			d.metrics.EventsDropped.Inc()
		}
		d.logger.Warn("event dropped, dispatcher inbox full",
			"kind", string(event.Kind()),
			"org_id", event.Org().String(),
		)
	}
}

// Run drains the inbox until the context ends. Delivery uses a fresh context
// so canceled requests do not abort listeners mid-write.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-d.inbox:
			d.deliver(context.WithoutCancel(ctx), event)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	d.mu.RLock()
	handlers := make([]Handler, 0, len(d.all)+len(d.subs[event.Kind()]))
	handlers = append(handlers, d.subs[event.Kind()]...)
	handlers = append(handlers, d.all...)
	d.mu.RUnlock()

	for _, h := range handlers {
		d.safeHandle(ctx, h, event)
	}
}

// safeHandle isolates handler panics so one bad listener cannot take down the
// dispatch loop.
func (d *Dispatcher) safeHandle(ctx context.Context, h Handler, event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("event handler panic",
				"handler", h.Name(),
				"kind", string(event.Kind()),
				"panic", rec,
			)
		}
	}()
	h.Handle(ctx, event)
}
