package ratelimit

import "time"

// EventType identifies a notification published by the pipeline.
type EventType string

const (
	EventRateLimitExceeded EventType = "rate_limit_exceeded"
	EventBurstDetected     EventType = "burst_detected"
	EventIPBlacklisted     EventType = "ip_blacklisted"
)

// Event is a notification about a denial. Events are published on a buffered
// channel with a non-blocking send so a slow subscriber can never stall the
// admission path; when the buffer is full the event is dropped.
type Event struct {
	Type      EventType
	UserID    string
	IP        string
	Endpoint  string
	LimitType LimitType
	Reason    string
	Count     int64
	At        time.Time
}
