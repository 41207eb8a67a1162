// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Authentication methods recorded on the principal.
const (
	AuthMethodJWT    = "jwt"
	AuthMethodAPIKey = "api_key"
)

// UserContext describes the principal of the current request.
type UserContext struct {
	UserID     string
	Email      string
	APIKeyID   string // set when the request was authenticated with an API key
	AuthMethod string
	SessionID  string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// GetAPIKeyID returns the API key ID the request was authenticated with.
func GetAPIKeyID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.APIKeyID
	}
	return ""
}
