// Package middleware provides HTTP middleware for the presentation layer.
package middleware

import (
	"net/http"
	"strings"

	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/security"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// Principal identifies the caller of an authorised request.
type Principal struct {
	Subject string
	Issuer  string
}

// BearerAuthMiddleware requires an HS256 bearer token signed with secret.
func BearerAuthMiddleware(secret string, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			logger.Auth().Warn("Missing bearer token", "path", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		claims, err := security.ValidateJWT(strings.TrimSpace(token), secret)
		if err != nil {
			logger.Auth().Warn("Rejected bearer token", "path", c.Request.URL.Path, "error", err.Error())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		issuer, _ := claims["iss"].(string)
		c.Set(principalKey, &Principal{Subject: security.SubjectFromClaims(claims), Issuer: issuer})
		c.Next()
	}
}

// GetPrincipal retrieves the authorised caller from gin context
func GetPrincipal(c *gin.Context) (*Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok
}
