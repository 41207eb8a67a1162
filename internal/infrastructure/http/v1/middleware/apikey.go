package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	appctx "invoicegen/internal/core/context"
	"invoicegen/internal/domain/apikey"
)

const HeaderAPIKey = "X-API-Key"

// KeyAuthenticator resolves a plaintext API key.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, plaintext string) (*apikey.Key, error)
}

// APIKey middleware authenticates the request with the X-API-Key header and
// acts on behalf of the key's owner.
func APIKey(auth KeyAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := auth.Authenticate(c.Request.Context(), c.GetHeader(HeaderAPIKey))
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		setPrincipal(c, &appctx.UserContext{
			UserID:     key.UserID.String(),
			APIKeyID:   key.ID.String(),
			AuthMethod: appctx.AuthMethodAPIKey,
		})
		c.Next()
	}
}
