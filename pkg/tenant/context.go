package tenant

import (
	"context"
)

// contextKey is an unexported type for context keys to prevent collisions
type contextKey struct{}

var tenantKey = contextKey{}

// WithTenant returns a new context carrying the tenant ID.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// FromContext extracts the tenant ID from the context.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	tenantID, ok := ctx.Value(tenantKey).(string)
	return tenantID, ok && tenantID != ""
}
