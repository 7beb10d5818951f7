package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServiceKeyAuth guards internal job endpoints invoked by external schedulers.
// The handlers behind it are idempotent, so an over-eager cron is harmless,
// but an unauthenticated caller must not be able to trigger sweeps at all.
func ServiceKeyAuth(serviceKey string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-Service-Key")
		if serviceKey == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(serviceKey)) != 1 {
			log.Warn("unauthorized internal job attempt", zap.String("ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
