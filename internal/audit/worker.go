package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"claimdesk/pkg/platform/circuit"
)

// OutboxSource lists unpublished audit rows and stamps them once produced.
// Implemented by the postgres audit store.
type OutboxSource interface {
	NextBatch(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// OutboxEntry is one unpublished audit row.
type OutboxEntry struct {
	ID      uuid.UUID
	Payload []byte
}

// Sink produces a serialized event downstream. Implemented by the Kafka
// producer.
type Sink interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// Worker drains the audit outbox to the sink. Events stay in the outbox until
// a produce succeeds, so a Kafka outage delays but never loses audit data.
type Worker struct {
	source   OutboxSource
	sink     Sink
	logger   *slog.Logger
	breaker  *circuit.Breaker
	interval time.Duration
	batch    int
}

func NewWorker(source OutboxSource, sink Sink, logger *slog.Logger) *Worker {
	return &Worker{
		source:   source,
		sink:     sink,
		logger:   logger,
		breaker:  circuit.New("audit-kafka"),
		interval: 2 * time.Second,
		batch:    100,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.logger.WarnContext(ctx, "audit outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	limit := w.batch
	if w.breaker.IsOpen() {
		// Probe with a single event while the sink is degraded.
		limit = 1
	}
	entries, err := w.source.NextBatch(ctx, limit)
	if err != nil {
		return err
	}
	published := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		if err := w.sink.Publish(ctx, entry.ID.String(), entry.Payload); err != nil {
			if _, change := w.breaker.RecordFailure(); change.Opened {
				w.logger.WarnContext(ctx, "audit sink circuit opened", "breaker", w.breaker.Name())
			}
			// Stop at the first failure to preserve ordering.
			break
		}
		if _, change := w.breaker.RecordSuccess(); change.Closed {
			w.logger.InfoContext(ctx, "audit sink circuit closed", "breaker", w.breaker.Name())
		}
		published = append(published, entry.ID)
	}
	if len(published) == 0 {
		return nil
	}
	return w.source.MarkPublished(ctx, published)
}
