package models

import "time"

// List membership values for IPListEntry.
const (
	ListWhitelist = "whitelist"
	ListBlacklist = "blacklist"
)

// IPListEntry persists whitelist and blacklist membership so the lists
// survive restarts and are shared by every gateway instance. The in-memory
// copy inside the rate limit engine is the one consulted per request; this
// table is write-through storage behind the admin API.
type IPListEntry struct {
	IP        string     `gorm:"primaryKey" json:"ip"`
	List      string     `gorm:"primaryKey;not null" json:"list"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (IPListEntry) TableName() string {
	return "ip_list_entries"
}
