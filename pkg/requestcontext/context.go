// Package requestcontext provides HTTP-independent accessors for
// request-scoped values. Middleware sets them, services read them, tests
// inject them; keeping the package free of net/http means services never pull
// in transport code just to know who is acting.
package requestcontext

import (
	"context"
	"time"

	id "crewpulse/pkg/domain"
)

type (
	orgIDKey       struct{}
	employeeIDKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

var (
	ContextKeyOrgID       = orgIDKey{}
	ContextKeyEmployeeID  = employeeIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// OrgID retrieves the acting organization from the context.
// Returns the zero value (nil UUID) if not set.
func OrgID(ctx context.Context) id.OrgID {
	if orgID, ok := ctx.Value(ContextKeyOrgID).(id.OrgID); ok {
		return orgID
	}
	return id.OrgID{}
}

// WithOrgID injects an organization id into the context.
func WithOrgID(ctx context.Context, orgID id.OrgID) context.Context {
	return context.WithValue(ctx, ContextKeyOrgID, orgID)
}

// EmployeeID retrieves the acting employee from the context.
// Returns the zero value (nil UUID) if not set.
func EmployeeID(ctx context.Context) id.EmployeeID {
	if employeeID, ok := ctx.Value(ContextKeyEmployeeID).(id.EmployeeID); ok {
		return employeeID
	}
	return id.EmployeeID{}
}

// WithEmployeeID injects an employee id into the context.
func WithEmployeeID(ctx context.Context, employeeID id.EmployeeID) context.Context {
	return context.WithValue(ctx, ContextKeyEmployeeID, employeeID)
}

// RequestID retrieves the correlation id from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a correlation id into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (workers, tests, CLI).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the clock for a context. Services that stamp entities read
// time through here, so tests and batch jobs get deterministic timestamps.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
