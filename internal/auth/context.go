package auth

import "context"

type contextKey struct{}

var userIDKey = contextKey{}

// WithUserID returns a context carrying the verified subject identifier.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFrom extracts the verified subject identifier set by the auth
// middleware. The second return is false for unauthenticated contexts.
func UserIDFrom(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}
