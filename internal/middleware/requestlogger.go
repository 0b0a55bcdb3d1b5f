package middleware

import (
	"log"
	"time"

	"github.com/averos/gatekeeper/internal/models"
	"github.com/averos/gatekeeper/internal/ratelimit"
	"github.com/averos/gatekeeper/internal/storage"
	"github.com/gin-gonic/gin"
)

// Buffered channel for async audit logging
var logChannel chan models.RequestLog

// InitRequestLogger starts the background worker that batch-inserts audit
// rows. The serving path only ever does a non-blocking channel send.
func InitRequestLogger(db *storage.Postgres, bufferSize int) {
	logChannel = make(chan models.RequestLog, bufferSize)

	go func() {
		batch := make([]models.RequestLog, 0, 100)
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case entry := <-logChannel:
				batch = append(batch, entry)

				if len(batch) >= 100 {
					insertBatch(db, batch)
					batch = make([]models.RequestLog, 0, 100)
				}
			case <-ticker.C:
				if len(batch) > 0 {
					insertBatch(db, batch)
					batch = make([]models.RequestLog, 0, 100)
				}
			}
		}
	}()
}

func insertBatch(db *storage.Postgres, logs []models.RequestLog) {
	if len(logs) == 0 {
		return
	}

	if err := db.DB.Create(&logs).Error; err != nil {
		log.Printf("Failed to insert request logs: %v", err)
	}
}

// RequestLogger records every decided request, including which dimension
// denied it when the answer was 429.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		if logChannel == nil {
			return
		}

		duration := time.Since(start)

		limitType := ""
		if v, exists := c.Get("rate_limit_status"); exists {
			if st, ok := v.(ratelimit.Status); ok && !st.Allowed {
				limitType = string(st.LimitType)
			}
		}

		entry := models.RequestLog{
			Timestamp:      start,
			RequestID:      c.GetString("request_id"),
			UserID:         c.GetString("user_id"),
			Tier:           c.GetString("tier"),
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			StatusCode:     c.Writer.Status(),
			LimitType:      limitType,
			ResponseTimeMs: int(duration.Milliseconds()),
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
		}

		select {
		case logChannel <- entry:
		default:
			// Channel full; losing an audit row beats blocking the request.
		}
	}
}
