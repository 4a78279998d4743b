// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// It defines context keys and getter/setter functions for values that are set
// by middleware but consumed by services. Keeping this package free of
// net/http lets services import only what they need.
//
// Usage in services (read values):
//
//	actor := requestcontext.Actor(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithActor(ctx, actor, capabilities)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// Capability names a role-gated permission carried by the current actor.
type Capability string

const (
	// CapabilityApprover allows moving a receipt from Pending to Validated.
	CapabilityApprover Capability = "approver"
	// CapabilityDisburser allows recording actual payment of a receipt.
	CapabilityDisburser Capability = "disburser"
)

type (
	actorKey        struct{}
	capabilitiesKey struct{}
	requestIDKey    struct{}
	requestTimeKey  struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyActor        = actorKey{}
	ContextKeyCapabilities = capabilitiesKey{}
	ContextKeyRequestID    = requestIDKey{}
	ContextKeyRequestTime  = requestTimeKey{}
)

// Actor retrieves the current actor identity (opaque string from the auth
// subsystem). Empty when unauthenticated.
func Actor(ctx context.Context) string {
	if actor, ok := ctx.Value(ContextKeyActor).(string); ok {
		return actor
	}
	return ""
}

// Capabilities retrieves the actor's capability set.
func Capabilities(ctx context.Context) []Capability {
	if caps, ok := ctx.Value(ContextKeyCapabilities).([]Capability); ok {
		return caps
	}
	return nil
}

// HasCapability reports whether the current actor carries the capability.
func HasCapability(ctx context.Context, want Capability) bool {
	for _, c := range Capabilities(ctx) {
		if c == want {
			return true
		}
	}
	return false
}

// WithActor injects an actor identity and its capabilities into the context.
func WithActor(ctx context.Context, actor string, caps []Capability) context.Context {
	ctx = context.WithValue(ctx, ContextKeyActor, actor)
	return context.WithValue(ctx, ContextKeyCapabilities, caps)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests that don't run the HTTP middleware chain, and for workers that need a
// consistent time across a batch.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
