package middleware

import (
	"fmt"
	"net/http"

	"github.com/averos/gatekeeper/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimit is the boundary between the HTTP layer and the admission engine.
// It extracts identity, tier and IP from the request context, asks the engine
// for a decision, attaches the X-RateLimit-* headers, and on denial aborts
// with the documented 429 body.
//
// Identity and tier are placed in the gin context by the upstream
// authentication collaborator ("user_id", "tier"); unidentified callers fall
// back to the free tier keyed by client IP.
func RateLimit(engine *ratelimit.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		tier := c.GetString("tier")
		if tier == "" {
			tier = ratelimit.TierFree
		}

		req := ratelimit.Request{
			UserID:   c.GetString("user_id"),
			IP:       c.ClientIP(),
			Endpoint: c.Request.URL.Path,
			Method:   c.Request.Method,
			Tier:     tier,
		}

		status := engine.CheckRateLimit(c.Request.Context(), req)
		c.Set("rate_limit_status", status)

		setRateLimitHeaders(c, status)

		if !status.Allowed {
			retryAfter := int(status.RetryAfter.Seconds())
			if retryAfter > 0 {
				c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			}

			var resetAt int64
			if !status.ResetAt.IsZero() {
				resetAt = status.ResetAt.Unix()
			}

			// Field names are part of the documented contract for API
			// consumers; do not rename them.
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":       "RATE_LIMIT_EXCEEDED",
					"limitType":  status.LimitType,
					"retryAfter": retryAfter,
					"resetAt":    resetAt,
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, status ratelimit.Status) {
	// Whitelisted and internal callers have no meaningful quota numbers.
	if status.Allowed && status.Remaining == ratelimit.Unlimited {
		return
	}

	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", status.Limit))
	c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", status.Remaining))
	if !status.ResetAt.IsZero() {
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", status.ResetAt.Unix()))
	}
}
