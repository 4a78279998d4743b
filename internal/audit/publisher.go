package audit

import (
	"context"
	"time"

	"claimdesk/pkg/requestcontext"
)

// Store is the append-only audit sink. The postgres implementation writes an
// outbox row; the worker drains the outbox to Kafka.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByClaim(ctx context.Context, claimID string) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	if base.RequestID == "" {
		base.RequestID = requestcontext.RequestID(ctx)
	}
	if base.Actor == "" {
		base.Actor = requestcontext.Actor(ctx)
	}
	return p.store.Append(ctx, base)
}

func (p *Publisher) ListByClaim(ctx context.Context, claimID string) ([]Event, error) {
	return p.store.ListByClaim(ctx, claimID)
}
