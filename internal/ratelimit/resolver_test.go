package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTiers() map[string]TierLimits {
	return map[string]TierLimits{
		TierFree:       {RequestsPerMinute: 20, RequestsPerHour: 500, BurstSize: 5, MaxConcurrent: 5},
		TierPro:        {RequestsPerMinute: 120, RequestsPerHour: 5000, BurstSize: 20, MaxConcurrent: 20},
		TierEnterprise: {RequestsPerMinute: 600, RequestsPerHour: 30000, BurstSize: 100},
		TierInternal:   {},
	}
}

func TestResolverOrderForIdentifiedUser(t *testing.T) {
	r := NewResolver(testTiers(), nil, 300)

	checks := r.Checks(Request{
		UserID: "u1", IP: "1.2.3.4", Endpoint: "/api/things", Method: "GET", Tier: TierFree,
	})

	require.Len(t, checks, 4)

	assert.Equal(t, Check{Key: "burst:u1", Limit: 5, Window: BurstWindow, Type: LimitBurst}, checks[0])
	assert.Equal(t, Check{Key: "user:u1", Limit: 20, Window: MinuteWindow, Type: LimitUser}, checks[1])
	assert.Equal(t, Check{Key: "user:u1:hourly", Limit: 500, Window: HourWindow, Type: LimitUserHourly}, checks[2])
	assert.Equal(t, Check{Key: "ip:1.2.3.4", Limit: 300, Window: MinuteWindow, Type: LimitIP}, checks[3])
}

func TestResolverAnonymousCallerKeysByIP(t *testing.T) {
	r := NewResolver(testTiers(), nil, 300)

	checks := r.Checks(Request{
		IP: "5.6.7.8", Endpoint: "/api/things", Method: "GET", Tier: TierFree,
	})

	require.Len(t, checks, 2, "user dimensions are skipped without a user id")
	assert.Equal(t, "burst:5.6.7.8", checks[0].Key)
	assert.Equal(t, "ip:5.6.7.8", checks[1].Key)
}

func TestResolverEndpointOverride(t *testing.T) {
	endpoints := []EndpointLimit{
		{Method: "POST", Path: "/api/v1/completions", RequestsPerMinute: 10, Burst: 3},
		{Method: "ALL", Path: "/api/v1/search", RequestsPerMinute: 30, RequestsPerHour: 500},
	}
	r := NewResolver(testTiers(), endpoints, 300)

	t.Run("exact method match", func(t *testing.T) {
		checks := r.Checks(Request{
			UserID: "u1", IP: "1.2.3.4", Endpoint: "/api/v1/completions", Method: "POST", Tier: TierPro,
		})

		require.Len(t, checks, 6)
		// Burst override runs before the minute override, both after tier burst.
		assert.Equal(t, "endpoint:u1:POST:/api/v1/completions:burst", checks[1].Key)
		assert.Equal(t, 3, checks[1].Limit)
		assert.Equal(t, BurstWindow, checks[1].Window)
		assert.Equal(t, LimitEndpoint, checks[1].Type)

		assert.Equal(t, "endpoint:u1:POST:/api/v1/completions", checks[2].Key)
		assert.Equal(t, 10, checks[2].Limit)
		assert.Equal(t, MinuteWindow, checks[2].Window)
	})

	t.Run("ALL fallback", func(t *testing.T) {
		checks := r.Checks(Request{
			UserID: "u1", IP: "1.2.3.4", Endpoint: "/api/v1/search", Method: "DELETE", Tier: TierPro,
		})

		require.Len(t, checks, 6)
		assert.Equal(t, "endpoint:u1:ALL:/api/v1/search", checks[1].Key)
		assert.Equal(t, "endpoint:u1:ALL:/api/v1/search:hourly", checks[2].Key)
		assert.Equal(t, time.Hour, checks[2].Window)
	})

	t.Run("no override", func(t *testing.T) {
		checks := r.Checks(Request{
			UserID: "u1", IP: "1.2.3.4", Endpoint: "/api/v1/other", Method: "GET", Tier: TierPro,
		})

		for _, c := range checks {
			assert.NotEqual(t, LimitEndpoint, c.Type)
		}
	})
}

func TestResolverInternalTierBypassesQuotas(t *testing.T) {
	r := NewResolver(testTiers(), nil, 300)

	checks := r.Checks(Request{
		UserID: "svc", IP: "10.0.0.1", Endpoint: "/api/things", Method: "GET", Tier: TierInternal,
	})

	assert.Empty(t, checks)
}
