// Package requestctx carries authenticated caller identity through request contexts.
package requestctx

import (
	"context"
	"strings"
)

// userIDContextKey is the context key for authenticated user identity.
type userIDContextKey struct{}

// adminContextKey marks callers allowed to change service configuration.
type adminContextKey struct{}

// WithUserID stores a user identifier in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDContextKey{}, strings.TrimSpace(userID))
}

// UserIDFromContext returns the user identifier stored in context.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(userIDContextKey{}).(string)
	return value
}

// WithAdmin marks the caller as an administrator.
func WithAdmin(ctx context.Context, admin bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, adminContextKey{}, admin)
}

// IsAdmin reports whether the caller was marked as an administrator.
func IsAdmin(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	value, _ := ctx.Value(adminContextKey{}).(bool)
	return value
}
