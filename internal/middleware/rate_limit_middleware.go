package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/corptransit/transport-request-backend/internal/services"
	"github.com/corptransit/transport-request-backend/internal/utils"
)

// RateLimitMiddleware guards unauthenticated auth endpoints with the
// per-IP fixed window limit. The request is recorded before the
// handler runs, so failed attempts count too.
func RateLimitMiddleware(rateLimit *services.RateLimitService, auditService *services.AuditService, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := utils.GetRealIP(c)

		if err := rateLimit.Check(ip); err != nil {
			var rateLimitErr *services.RateLimitError
			if errors.As(err, &rateLimitErr) {
				if auditService != nil {
					if err := auditService.LogAuth("rate_limited", nil, "", ip, utils.GetUserAgent(c), false, rateLimitErr.Message); err != nil {
						logger.WithError(err).Warn("Failed to write audit log")
					}
				}
				c.Header("Retry-After", rateLimitErr.RetryAfter.UTC().Format(http.TimeFormat))
				c.JSON(http.StatusTooManyRequests, gin.H{
					"error":   "rate_limited",
					"message": rateLimitErr.Message,
				})
				c.Abort()
				return
			}

			// Do not lock users out when the limiter itself fails
			logger.WithError(err).Error("Rate limit check failed")
		}

		if err := rateLimit.Record(ip); err != nil {
			logger.WithError(err).Error("Failed to record rate limit entry")
		}

		c.Next()
	}
}
