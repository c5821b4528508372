package shared

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/fcs-vault/internal/domain"
)

// ContextKey is the key type for request-scoped values.
type ContextKey string

const (
	// OwnerContextKey holds the domain.Owner resolved by the auth middleware.
	OwnerContextKey ContextKey = "owner"

	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"
)

// SetTraceID adds a fresh trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, uuid.NewString())
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// WithOwner stores the caller identity in ctx.
func WithOwner(ctx context.Context, owner domain.Owner) context.Context {
	return context.WithValue(ctx, OwnerContextKey, owner)
}

// GetOwner returns the caller identity, anonymous when none was set.
func GetOwner(ctx context.Context) domain.Owner {
	owner, ok := ctx.Value(OwnerContextKey).(domain.Owner)
	if !ok {
		return domain.Anonymous()
	}
	return owner
}

// GetUserID returns the authenticated user id, false for anonymous callers.
func GetUserID(ctx context.Context) (domain.UserID, bool) {
	return GetOwner(ctx).ID()
}
