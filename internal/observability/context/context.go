// Package obscontext carries request-scoped correlation identifiers.
package obscontext

import "context"

type requestIDKey struct{}
type principalKey struct{}

type principalInfo struct {
	id       string
	username string
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID, or "" when unset.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithPrincipal stores the resolved principal identity in the context.
func WithPrincipal(ctx context.Context, id, username string) context.Context {
	return context.WithValue(ctx, principalKey{}, principalInfo{id: id, username: username})
}

// PrincipalFromContext returns the principal id and username, or empty strings.
func PrincipalFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(principalKey{}).(principalInfo); ok {
		return v.id, v.username
	}
	return "", ""
}
