// Package obscontext carries request-scoped correlation values.
package obscontext

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	identityKey  contextKey = "identity_id"
)

// WithRequestID attaches the request correlation id to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request correlation id, if any.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithIdentity attaches the authenticated caller's id to the context.
func WithIdentity(ctx context.Context, identityID string) context.Context {
	return context.WithValue(ctx, identityKey, identityID)
}

// IdentityFromContext returns the authenticated caller's id, if any.
func IdentityFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(identityKey).(string); ok {
		return v
	}
	return ""
}
