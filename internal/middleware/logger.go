package middleware

import (
	"log"
	"time"

	"github.com/averos/gatekeeper/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		requestID := c.GetString("request_id")

		denied := ""
		if v, exists := c.Get("rate_limit_status"); exists {
			if st, ok := v.(ratelimit.Status); ok && !st.Allowed {
				denied = " denied=" + string(st.LimitType)
			}
		}

		log.Printf("[%s] %s %s - %d - %v - %s%s",
			requestID,
			method,
			path,
			statusCode,
			latency,
			c.ClientIP(),
			denied,
		)
	}
}
