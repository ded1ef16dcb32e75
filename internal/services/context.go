package services

import (
	"context"
)

type ctxKey string

const userIDKey ctxKey = "auth_user_id"

// WithUserContext stores the authenticated user on the request context.
func WithUserContext(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}
