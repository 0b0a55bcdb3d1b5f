package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPListsWhitelistRoundTrip(t *testing.T) {
	lists := NewIPLists()

	assert.False(t, lists.IsWhitelisted("1.2.3.4"))

	lists.AddToWhitelist("1.2.3.4")
	assert.True(t, lists.IsWhitelisted("1.2.3.4"))

	// Reads are idempotent.
	assert.True(t, lists.IsWhitelisted("1.2.3.4"))

	lists.RemoveFromWhitelist("1.2.3.4")
	assert.False(t, lists.IsWhitelisted("1.2.3.4"))
}

func TestIPListsBlacklistRoundTrip(t *testing.T) {
	lists := NewIPLists()

	lists.AddToBlacklist("10.0.0.5", "abuse", time.Time{})

	blocked, entry := lists.IsBlacklisted("10.0.0.5")
	require.True(t, blocked)
	assert.Equal(t, "abuse", entry.Reason)

	// Permanent entries never expire.
	blocked, _ = lists.IsBlacklisted("10.0.0.5")
	assert.True(t, blocked)

	lists.RemoveFromBlacklist("10.0.0.5")
	blocked, _ = lists.IsBlacklisted("10.0.0.5")
	assert.False(t, blocked)
}

func TestIPListsBlacklistExpiresLazily(t *testing.T) {
	lists := NewIPLists()
	clock := newFakeClock()
	lists.now = clock.Now

	lists.AddToBlacklist("10.0.0.9", "temporary", clock.Now().Add(time.Hour))

	blocked, _ := lists.IsBlacklisted("10.0.0.9")
	require.True(t, blocked)
	require.Equal(t, 1, lists.BlacklistSize())

	clock.Advance(time.Hour + time.Second)

	blocked, _ = lists.IsBlacklisted("10.0.0.9")
	assert.False(t, blocked, "expired entry should stop blocking")
	assert.Equal(t, 0, lists.BlacklistSize(), "expired entry should be removed on read")

	blocked, _ = lists.IsBlacklisted("10.0.0.9")
	assert.False(t, blocked)
}

func TestIPListsSnapshots(t *testing.T) {
	lists := NewIPLists()

	lists.AddToWhitelist("1.1.1.1")
	lists.AddToBlacklist("2.2.2.2", "scanner", time.Time{})

	assert.ElementsMatch(t, []string{"1.1.1.1"}, lists.Whitelisted())

	black := lists.Blacklisted()
	require.Len(t, black, 1)
	assert.Equal(t, "2.2.2.2", black[0].IP)
	assert.Equal(t, "scanner", black[0].Reason)
}
