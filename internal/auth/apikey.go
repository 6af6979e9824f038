package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderAPIKey carries the caller's API key.
const HeaderAPIKey = "X-API-Key"

// clientCtxKey is the Gin context key used to store the authenticated client ID.
const clientCtxKey = "client_id"

// APIKeyMiddleware maps X-API-Key → clientID. Capture sessions are scoped to the
// client that created them, so one CI job cannot read another's events.
func APIKeyMiddleware(keys map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader(HeaderAPIKey))
		clientID, ok := keys[apiKey]
		if !ok || apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(clientCtxKey, clientID)
		c.Next()
	}
}

// ClientID returns the authenticated client ID from the request context.
func ClientID(c *gin.Context) string {
	v, _ := c.Get(clientCtxKey)
	s, _ := v.(string)
	return s
}
