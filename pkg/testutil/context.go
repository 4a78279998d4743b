package testutil

import (
	"context"
	"net/http"
	"time"

	"claimdesk/pkg/requestcontext"
)

// WithActor adds an actor and capability set to the request context, simulating
// what the auth middleware does for authenticated requests.
func WithActor(req *http.Request, actor string, caps ...requestcontext.Capability) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), actor, caps)
	return req.WithContext(ctx)
}

// ActorContext builds a bare context carrying an actor and capabilities, for
// service tests that bypass HTTP entirely.
func ActorContext(actor string, caps ...requestcontext.Capability) context.Context {
	return requestcontext.WithActor(context.Background(), actor, caps)
}

// FrozenContext builds a context with a fixed request time so transition
// timestamps are deterministic in tests.
func FrozenContext(actor string, at time.Time, caps ...requestcontext.Capability) context.Context {
	ctx := requestcontext.WithActor(context.Background(), actor, caps)
	return requestcontext.WithTime(ctx, at)
}
