package auth

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is a custom type used for context keys to avoid collisions.
type contextKey string

const (
	ownerIDKey contextKey = "ownerID"
	claimsKey  contextKey = "claims"
)

// WithIdentity returns a copy of ctx carrying the authenticated owner and the token claims.
func WithIdentity(ctx context.Context, claims *CustomClaims) context.Context {
	ctx = context.WithValue(ctx, ownerIDKey, claims.UserID)
	return context.WithValue(ctx, claimsKey, claims)
}

// OwnerIDFromContext retrieves the authenticated owner id from the request context.
// Returns the ID and true if found, otherwise uuid.Nil and false.
func OwnerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ownerIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// ClaimsFromContext retrieves the validated token claims from the request context.
func ClaimsFromContext(ctx context.Context) (*CustomClaims, bool) {
	c, ok := ctx.Value(claimsKey).(*CustomClaims)
	return c, ok
}
