package models

// RateLimitTier mirrors the tier table from the configuration file into
// Postgres at startup. The config stays the source of truth for the running
// process; the table gives dashboards and operational tooling a queryable
// view of the active limits.
type RateLimitTier struct {
	Name              string `gorm:"primaryKey" json:"name"`
	RequestsPerMinute int    `gorm:"not null" json:"requests_per_minute"`
	RequestsPerHour   int    `gorm:"not null" json:"requests_per_hour"`
	BurstSize         int    `gorm:"not null" json:"burst_size"`
	MaxConcurrent     int    `json:"max_concurrent"`
}

func (RateLimitTier) TableName() string {
	return "rate_limit_tiers"
}
