package middleware

import (
	"net/http"

	"github.com/averos/gatekeeper/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// ConcurrencyLimit enforces the tier's cap on simultaneously in-flight
// requests per identity, separate from the sliding-window quotas. Saturated
// callers get an immediate 503 rather than queueing.
func ConcurrencyLimit(gate *ratelimit.ConcurrencyGate, tiers map[string]ratelimit.TierLimits) gin.HandlerFunc {
	return func(c *gin.Context) {
		tier := c.GetString("tier")
		if tier == "" {
			tier = ratelimit.TierFree
		}

		max := tiers[tier].MaxConcurrent
		if max <= 0 {
			c.Next()
			return
		}

		identity := c.GetString("user_id")
		if identity == "" {
			identity = c.ClientIP()
		}

		if !gate.Acquire(identity, max) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Too many concurrent requests",
			})
			c.Abort()
			return
		}
		defer gate.Release(identity)

		c.Next()
	}
}
