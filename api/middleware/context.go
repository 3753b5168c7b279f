package middleware

import (
	"context"

	"github.com/vaultarc/archive-backend/pkg/db/models"
)

type contextKey string

const (
	ctxUser     contextKey = "user"
	ctxAccessID contextKey = "access_id"
)

// UserFromContext returns the authenticated user seeded by the Auth
// middleware, with role preloaded, or nil outside an authenticated request.
func UserFromContext(ctx context.Context) *models.User {
	if ctx == nil {
		return nil
	}
	if user, ok := ctx.Value(ctxUser).(*models.User); ok {
		return user
	}
	return nil
}

// AccessIDFromContext returns the session identifier of the current request.
func AccessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccessID).(string); ok {
		return v
	}
	return ""
}

// WithUser injects the authenticated user, used by handlers under test.
func WithUser(ctx context.Context, user *models.User) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUser, user)
}

// WithAccessID injects the session identifier.
func WithAccessID(ctx context.Context, accessID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAccessID, accessID)
}
