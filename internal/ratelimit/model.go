package ratelimit

import (
	"time"
)

// LimitType tags which dimension produced an admission decision.
type LimitType string

const (
	LimitBurst      LimitType = "burst"
	LimitEndpoint   LimitType = "endpoint"
	LimitUser       LimitType = "user"
	LimitUserHourly LimitType = "user_hourly"
	LimitIP         LimitType = "ip"
)

// Tier names understood by the resolver. Any other value is rejected when the
// configuration is validated at startup.
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
	TierInternal   = "internal"
)

// Unlimited is the Remaining value reported for callers that bypass quota
// checks entirely (whitelisted IPs and the internal tier).
const Unlimited = -1

// TierLimits holds the per-tier quota configuration. Records are immutable
// after startup.
type TierLimits struct {
	RequestsPerMinute int
	RequestsPerHour   int
	BurstSize         int // over a 10-second window
	MaxConcurrent     int // 0 = unbounded
}

// EndpointLimit is an optional per-endpoint override, matched by
// "METHOD:path" or "ALL:path". It is checked in addition to tier limits,
// never instead of them.
type EndpointLimit struct {
	Method            string // HTTP method or "ALL"
	Path              string
	RequestsPerMinute int
	RequestsPerHour   int
	Burst             int // over a 10-second window
}

// Pattern returns the lookup key for this override.
func (e EndpointLimit) Pattern() string {
	return e.Method + ":" + e.Path
}

// Request carries the identity attributes the pipeline decides on. The HTTP
// adapter extracts these from the inbound request.
type Request struct {
	UserID   string // empty for anonymous callers
	IP       string
	Endpoint string // request path
	Method   string
	Tier     string
}

// Identity returns the key the burst and endpoint dimensions are scoped to:
// the user id when present, the client IP otherwise.
func (r Request) Identity() string {
	if r.UserID != "" {
		return r.UserID
	}
	return r.IP
}

// Status is the outcome of an admission decision.
type Status struct {
	Allowed    bool
	Limit      int
	Remaining  int // never negative; Unlimited for bypassed callers
	ResetAt    time.Time
	RetryAfter time.Duration // zero unless denied
	LimitType  LimitType     // the dimension that decided the outcome
}

// Check is one (key, limit, window) tuple the evaluator must approve before a
// request is admitted.
type Check struct {
	Key    string
	Limit  int
	Window time.Duration
	Type   LimitType
}

// Windows for the fixed dimensions.
const (
	BurstWindow  = 10 * time.Second
	MinuteWindow = time.Minute
	HourWindow   = time.Hour
)
