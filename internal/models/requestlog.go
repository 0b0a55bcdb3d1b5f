package models

import (
	"time"
)

// RequestLog is the audit trail row written asynchronously for every request
// the gateway decides on. Denials carry the dimension that produced them.
type RequestLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Timestamp      time.Time `gorm:"index" json:"timestamp"`
	RequestID      string    `json:"request_id"`
	UserID         string    `gorm:"index" json:"user_id"`
	Tier           string    `json:"tier"`
	Method         string    `json:"method"`
	Path           string    `json:"path"`
	StatusCode     int       `json:"status_code"`
	LimitType      string    `json:"limit_type,omitempty"` // set when status is 429
	ResponseTimeMs int       `json:"response_time_ms"`
	IPAddress      string    `gorm:"index" json:"ip_address"`
	UserAgent      string    `json:"user_agent"`
}

func (RequestLog) TableName() string {
	return "request_logs"
}
