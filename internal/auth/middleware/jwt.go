package middleware

import (
	"net/http"

	"github.com/aylahq/ayla-backend/internal/auth"
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OwnerAuth authenticates the request and stores an OwnerRef in the context.
// A valid bearer token yields a verified account identity. When no token is
// present, the X-Portal-User header (identity scraped from the university
// portal) is accepted as an unverified external identity; handlers that
// mutate data must check OwnerRef.Verified themselves.
func OwnerAuth(jwtSecret, jwtIssuer string, log *logger.Logger) gin.HandlerFunc {
	jwtManager := auth.NewJWTManager(jwtSecret, jwtIssuer)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			token, err := auth.ExtractTokenFromHeader(authHeader)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
				c.Abort()
				return
			}

			claims, err := jwtManager.VerifyAccessToken(token)
			if err != nil {
				log.Warn("invalid access token",
					zap.Error(err),
					zap.String("ip", c.ClientIP()))
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
				c.Abort()
				return
			}

			c.Set(auth.ContextKey, auth.Account(claims.UserID))
			c.Next()
			return
		}

		if portalUser := c.GetHeader("X-Portal-User"); portalUser != "" {
			c.Set(auth.ContextKey, auth.External(portalUser))
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
		c.Abort()
	}
}

// OwnerFromContext returns the OwnerRef stored by OwnerAuth
func OwnerFromContext(c *gin.Context) (auth.OwnerRef, bool) {
	v, ok := c.Get(auth.ContextKey)
	if !ok {
		return auth.OwnerRef{}, false
	}
	owner, ok := v.(auth.OwnerRef)
	return owner, ok
}
