package ratelimit

import (
	"time"
)

// Resolver maps an identity to the ordered set of checks that must all pass
// before a request is admitted. The order is fixed: burst, endpoint override,
// user-minute, user-hour, then the global per-IP ceiling. Cheapest and most
// restrictive dimensions run first so most denials cost a single lookup.
type Resolver struct {
	tiers         map[string]TierLimits
	endpoints     map[string]EndpointLimit // keyed by "METHOD:path" and "ALL:path"
	ipLimitPerMin int
}

func NewResolver(tiers map[string]TierLimits, endpoints []EndpointLimit, ipLimitPerMin int) *Resolver {
	byPattern := make(map[string]EndpointLimit, len(endpoints))
	for _, e := range endpoints {
		byPattern[e.Pattern()] = e
	}
	return &Resolver{
		tiers:         tiers,
		endpoints:     byPattern,
		ipLimitPerMin: ipLimitPerMin,
	}
}

// Tier returns the limits for a tier name. The configuration is validated at
// startup, so a miss here means the caller bypassed that validation.
func (r *Resolver) Tier(name string) (TierLimits, bool) {
	t, ok := r.tiers[name]
	return t, ok
}

// Checks builds the evaluation plan for one request. The internal tier is
// exempt from every quota dimension (but not from the blacklist, which the
// pipeline consults before resolving).
func (r *Resolver) Checks(req Request) []Check {
	if req.Tier == TierInternal {
		return nil
	}

	tier := r.tiers[req.Tier]
	identity := req.Identity()
	checks := make([]Check, 0, 5)

	checks = append(checks, Check{
		Key:    "burst:" + identity,
		Limit:  tier.BurstSize,
		Window: BurstWindow,
		Type:   LimitBurst,
	})

	checks = append(checks, r.endpointChecks(identity, req.Method, req.Endpoint)...)

	if req.UserID != "" {
		checks = append(checks,
			Check{
				Key:    "user:" + req.UserID,
				Limit:  tier.RequestsPerMinute,
				Window: MinuteWindow,
				Type:   LimitUser,
			},
			Check{
				Key:    "user:" + req.UserID + ":hourly",
				Limit:  tier.RequestsPerHour,
				Window: HourWindow,
				Type:   LimitUserHourly,
			},
		)
	}

	checks = append(checks, Check{
		Key:    "ip:" + req.IP,
		Limit:  r.ipLimitPerMin,
		Window: MinuteWindow,
		Type:   LimitIP,
	})

	return checks
}

// endpointChecks returns the override dimensions for an endpoint, or nothing
// when no override matches. An exact "METHOD:path" match wins over "ALL:path".
// An override may carry burst, minute and hour ceilings; unset ones are
// skipped rather than treated as zero (zero would deny everything).
func (r *Resolver) endpointChecks(identity, method, path string) []Check {
	pattern := method + ":" + path
	limit, ok := r.endpoints[pattern]
	if !ok {
		pattern = "ALL:" + path
		limit, ok = r.endpoints[pattern]
	}
	if !ok {
		return nil
	}

	keyPrefix := "endpoint:" + identity + ":" + pattern
	var checks []Check

	add := func(suffix string, n int, window time.Duration) {
		if n > 0 {
			checks = append(checks, Check{
				Key:    keyPrefix + suffix,
				Limit:  n,
				Window: window,
				Type:   LimitEndpoint,
			})
		}
	}

	add(":burst", limit.Burst, BurstWindow)
	add("", limit.RequestsPerMinute, MinuteWindow)
	add(":hourly", limit.RequestsPerHour, HourWindow)

	return checks
}
