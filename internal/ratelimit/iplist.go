package ratelimit

import (
	"sync"
	"time"
)

// BlacklistEntry records why and for how long an IP is blocked. A zero
// ExpiresAt means the block is permanent.
type BlacklistEntry struct {
	IP        string
	Reason    string
	ExpiresAt time.Time
}

// IPLists holds the whitelist and blacklist consulted before any quota check.
// Both reads are O(1) map lookups; they sit on the hot path of every request.
// Expired blacklist entries are removed lazily on lookup.
type IPLists struct {
	mu        sync.RWMutex
	whitelist map[string]struct{}
	blacklist map[string]BlacklistEntry
	now       func() time.Time
}

func NewIPLists() *IPLists {
	return &IPLists{
		whitelist: make(map[string]struct{}),
		blacklist: make(map[string]BlacklistEntry),
		now:       time.Now,
	}
}

func (l *IPLists) AddToWhitelist(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.whitelist[ip] = struct{}{}
}

func (l *IPLists) RemoveFromWhitelist(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.whitelist, ip)
}

func (l *IPLists) AddToBlacklist(ip, reason string, expiresAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blacklist[ip] = BlacklistEntry{IP: ip, Reason: reason, ExpiresAt: expiresAt}
}

func (l *IPLists) RemoveFromBlacklist(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.blacklist, ip)
}

func (l *IPLists) IsWhitelisted(ip string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.whitelist[ip]
	return ok
}

// IsBlacklisted reports whether an unexpired blacklist entry exists for ip,
// along with the entry itself for event reporting. Expired entries are
// deleted on the spot.
func (l *IPLists) IsBlacklisted(ip string) (bool, BlacklistEntry) {
	l.mu.RLock()
	entry, ok := l.blacklist[ip]
	l.mu.RUnlock()

	if !ok {
		return false, BlacklistEntry{}
	}

	if !entry.ExpiresAt.IsZero() && !entry.ExpiresAt.After(l.now()) {
		l.mu.Lock()
		// Re-check under the write lock; another reader may have already
		// deleted it, or an admin may have replaced the entry.
		if cur, still := l.blacklist[ip]; still && cur.ExpiresAt.Equal(entry.ExpiresAt) {
			delete(l.blacklist, ip)
		}
		l.mu.Unlock()
		return false, BlacklistEntry{}
	}

	return true, entry
}

// Whitelisted returns a copy of the whitelist for the admin surface.
func (l *IPLists) Whitelisted() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ips := make([]string, 0, len(l.whitelist))
	for ip := range l.whitelist {
		ips = append(ips, ip)
	}
	return ips
}

// Blacklisted returns a copy of the blacklist for the admin surface.
func (l *IPLists) Blacklisted() []BlacklistEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]BlacklistEntry, 0, len(l.blacklist))
	for _, e := range l.blacklist {
		entries = append(entries, e)
	}
	return entries
}

// BlacklistSize is used by tests to observe lazy expiry.
func (l *IPLists) BlacklistSize() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blacklist)
}
