package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/averos/gatekeeper/internal/ratelimit"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Redis     RedisConfig     `json:"redis"`
	Postgres  PostgresConfig  `json:"postgres"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Services  []ServiceConfig `json:"services"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RateLimitConfig struct {
	// Backend selects the window store: "redis" (shared across instances)
	// or "memory" (per-instance).
	Backend string `json:"backend"`

	// TimeoutMs bounds every redis call; past it the evaluator fails over
	// to memory. 0 keeps the store default.
	TimeoutMs int `json:"timeout_ms"`

	// IPLimitPerMinute is the global per-IP ceiling, applied to every
	// request regardless of tier.
	IPLimitPerMinute int `json:"ip_limit_per_minute"`

	Tiers     map[string]TierConfig `json:"tiers"`
	Endpoints []EndpointConfig      `json:"endpoints"`
}

type TierConfig struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	RequestsPerHour   int `json:"requests_per_hour"`
	BurstSize         int `json:"burst_size"`
	MaxConcurrent     int `json:"max_concurrent"`
}

type EndpointConfig struct {
	Method            string `json:"method"` // HTTP method or "ALL"
	Path              string `json:"path"`
	RequestsPerMinute int    `json:"requests_per_minute"`
	RequestsPerHour   int    `json:"requests_per_hour"`
	Burst             int    `json:"burst"`
}

type ServiceConfig struct {
	Path   string `json:"path"`
	Target string `json:"target"`
}

func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "redis"
	}
	if c.RateLimit.IPLimitPerMinute == 0 {
		c.RateLimit.IPLimitPerMinute = 300
	}
	if c.RateLimit.Tiers == nil {
		c.RateLimit.Tiers = map[string]TierConfig{
			ratelimit.TierFree: {RequestsPerMinute: 20, RequestsPerHour: 500, BurstSize: 5, MaxConcurrent: 5},
		}
	}
}

var knownTiers = map[string]bool{
	ratelimit.TierFree:       true,
	ratelimit.TierPro:        true,
	ratelimit.TierEnterprise: true,
	ratelimit.TierInternal:   true,
}

var knownMethods = map[string]bool{
	"ALL": true, http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true, http.MethodHead: true, http.MethodOptions: true,
}

// Validate enforces the configuration invariants once at startup: an unknown
// tier name, a zero quota on a non-internal tier, or a malformed endpoint
// pattern is fatal here, never per-request.
func (c *Config) Validate() error {
	switch c.RateLimit.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend)
	}

	for name, tier := range c.RateLimit.Tiers {
		if !knownTiers[name] {
			return fmt.Errorf("unknown tier %q", name)
		}
		if name == ratelimit.TierInternal {
			continue
		}
		if tier.RequestsPerMinute <= 0 || tier.RequestsPerHour <= 0 || tier.BurstSize <= 0 {
			return fmt.Errorf("tier %q must have positive requests_per_minute, requests_per_hour and burst_size", name)
		}
	}

	if _, ok := c.RateLimit.Tiers[ratelimit.TierFree]; !ok {
		return fmt.Errorf("tier %q must be configured; it is the default for unidentified callers", ratelimit.TierFree)
	}

	if c.RateLimit.IPLimitPerMinute <= 0 {
		return fmt.Errorf("ip_limit_per_minute must be positive")
	}

	for _, e := range c.RateLimit.Endpoints {
		method := strings.ToUpper(e.Method)
		if !knownMethods[method] {
			return fmt.Errorf("endpoint limit for %q: unknown method %q", e.Path, e.Method)
		}
		if !strings.HasPrefix(e.Path, "/") {
			return fmt.Errorf("endpoint limit path %q must start with /", e.Path)
		}
		if e.RequestsPerMinute <= 0 && e.RequestsPerHour <= 0 && e.Burst <= 0 {
			return fmt.Errorf("endpoint limit for %q sets no ceilings", e.Pattern())
		}
	}

	return nil
}

func (e EndpointConfig) Pattern() string {
	return strings.ToUpper(e.Method) + ":" + e.Path
}

// TierLimits converts the tier table to the engine's model.
func (c *Config) TierLimits() map[string]ratelimit.TierLimits {
	tiers := make(map[string]ratelimit.TierLimits, len(c.RateLimit.Tiers))
	for name, t := range c.RateLimit.Tiers {
		tiers[name] = ratelimit.TierLimits{
			RequestsPerMinute: t.RequestsPerMinute,
			RequestsPerHour:   t.RequestsPerHour,
			BurstSize:         t.BurstSize,
			MaxConcurrent:     t.MaxConcurrent,
		}
	}
	return tiers
}

// EndpointLimits converts the endpoint override list to the engine's model.
func (c *Config) EndpointLimits() []ratelimit.EndpointLimit {
	limits := make([]ratelimit.EndpointLimit, 0, len(c.RateLimit.Endpoints))
	for _, e := range c.RateLimit.Endpoints {
		limits = append(limits, ratelimit.EndpointLimit{
			Method:            strings.ToUpper(e.Method),
			Path:              e.Path,
			RequestsPerMinute: e.RequestsPerMinute,
			RequestsPerHour:   e.RequestsPerHour,
			Burst:             e.Burst,
		})
	}
	return limits
}

// RedisTimeout returns the configured per-call timeout, or zero when unset.
func (c *Config) RedisTimeout() time.Duration {
	return time.Duration(c.RateLimit.TimeoutMs) * time.Millisecond
}
