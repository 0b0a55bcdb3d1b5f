package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/averos/gatekeeper/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "redis", cfg.RateLimit.Backend)
	assert.Equal(t, 300, cfg.RateLimit.IPLimitPerMinute)
	assert.Contains(t, cfg.RateLimit.Tiers, ratelimit.TierFree)
}

func TestLoadRejectsUnknownTier(t *testing.T) {
	path := writeConfig(t, `{
		"rate_limit": {
			"tiers": {
				"free": {"requests_per_minute": 20, "requests_per_hour": 500, "burst_size": 5},
				"platinum": {"requests_per_minute": 100, "requests_per_hour": 1000, "burst_size": 10}
			}
		}
	}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "platinum")
}

func TestLoadRejectsZeroQuotaTier(t *testing.T) {
	path := writeConfig(t, `{
		"rate_limit": {
			"tiers": {
				"free": {"requests_per_minute": 20, "requests_per_hour": 500, "burst_size": 0}
			}
		}
	}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadAllowsEmptyInternalTier(t *testing.T) {
	path := writeConfig(t, `{
		"rate_limit": {
			"tiers": {
				"free": {"requests_per_minute": 20, "requests_per_hour": 500, "burst_size": 5},
				"internal": {}
			}
		}
	}`)

	_, err := Load(path)
	assert.NoError(t, err)
}

func TestLoadRejectsMalformedEndpoint(t *testing.T) {
	t.Run("unknown method", func(t *testing.T) {
		path := writeConfig(t, `{
			"rate_limit": {
				"endpoints": [{"method": "FETCH", "path": "/x", "requests_per_minute": 5}]
			}
		}`)
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("relative path", func(t *testing.T) {
		path := writeConfig(t, `{
			"rate_limit": {
				"endpoints": [{"method": "GET", "path": "x", "requests_per_minute": 5}]
			}
		}`)
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("no ceilings", func(t *testing.T) {
		path := writeConfig(t, `{
			"rate_limit": {
				"endpoints": [{"method": "GET", "path": "/x"}]
			}
		}`)
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, `{"rate_limit": {"backend": "memcached"}}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConversions(t *testing.T) {
	path := writeConfig(t, `{
		"rate_limit": {
			"timeout_ms": 40,
			"tiers": {
				"free": {"requests_per_minute": 20, "requests_per_hour": 500, "burst_size": 5, "max_concurrent": 5}
			},
			"endpoints": [{"method": "post", "path": "/api/v1/completions", "requests_per_minute": 10, "burst": 3}]
		}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	tiers := cfg.TierLimits()
	assert.Equal(t, ratelimit.TierLimits{
		RequestsPerMinute: 20, RequestsPerHour: 500, BurstSize: 5, MaxConcurrent: 5,
	}, tiers[ratelimit.TierFree])

	endpoints := cfg.EndpointLimits()
	require.Len(t, endpoints, 1)
	assert.Equal(t, "POST", endpoints[0].Method, "method is normalized to upper case")
	assert.Equal(t, "POST:/api/v1/completions", endpoints[0].Pattern())

	assert.Equal(t, 40*time.Millisecond, cfg.RedisTimeout())
}
