// Package relay ships audit outbox rows to Kafka. The outbox write happens in
// the request transaction; this loop gives at-least-once delivery to the
// topic, so consumers must dedupe on event id.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"crewpulse/pkg/platform/audit/store/postgres"
)

const batchSize = 200

// Relay polls the outbox and produces pending entries to the audit topic.
type Relay struct {
	store  *postgres.Store
	client *kgo.Client
	topic  string
	every  time.Duration
	logger *slog.Logger
}

func New(store *postgres.Store, brokers []string, topic string, every time.Duration, logger *slog.Logger) (*Relay, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	if every <= 0 {
		every = 5 * time.Second
	}
	return &Relay{store: store, client: client, topic: topic, every: every, logger: logger}, nil
}

// Run polls until the context ends.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.every)
	defer ticker.Stop()
	defer r.client.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.shipOnce(ctx); err != nil {
				r.logger.Error("audit outbox relay pass failed", "error", err.Error())
			}
		}
	}
}

func (r *Relay) shipOnce(ctx context.Context) error {
	entries, err := r.store.PendingOutbox(ctx, batchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, &kgo.Record{
			Topic: r.topic,
			// Key by org so per-org ordering survives partitioning.
			Key:   []byte(e.OrgID.String()),
			Value: e.Payload,
		})
	}
	if err := r.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return r.store.MarkShipped(ctx, ids)
}
