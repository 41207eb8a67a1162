// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"invoicegen/internal/infrastructure/http/v1/middleware"
)

// PublicAndProtectedRoutes is implemented by handlers that expose both
// anonymous and JWT-authenticated endpoints under one prefix.
type PublicAndProtectedRoutes interface {
	RegisterRoutes(public, protected *gin.RouterGroup)
}

// RegisterSplitRoutes mounts handler under path twice: once without
// authentication and once behind the JWT middleware.
//
// Usage:
//
//	h := handlers.NewAPIKeyHandler(base, cfg.APIKeyService)
//	RegisterSplitRoutes(v1, "/api-keys", h, cfg.JWTValidator)
func RegisterSplitRoutes(rg *gin.RouterGroup, path string, handler PublicAndProtectedRoutes, validator middleware.JWTValidator) {
	public := rg.Group(path)
	protected := rg.Group(path)
	protected.Use(middleware.Auth(validator))

	handler.RegisterRoutes(public, protected)
}

// jwtGroup returns a group whose routes require a bearer token.
func jwtGroup(rg *gin.RouterGroup, path string, validator middleware.JWTValidator) *gin.RouterGroup {
	g := rg.Group(path)
	g.Use(middleware.Auth(validator))
	return g
}

// apiKeyGroup returns a group whose routes require X-API-Key. When store is
// non-nil, mutating requests honour X-Idempotency-Key.
func apiKeyGroup(rg *gin.RouterGroup, path string, auth middleware.KeyAuthenticator, store middleware.IdempotencyStore) *gin.RouterGroup {
	g := rg.Group(path)
	g.Use(middleware.APIKey(auth))
	if store != nil {
		g.Use(middleware.Idempotency(store))
	}
	return g
}
