// Package ratelimit implements the gateway's admission control: a tiered
// sliding-window rate limiter that decides accept/reject for every inbound
// request across five dimensions (burst, endpoint override, user-minute,
// user-hour, global per-IP), after consulting the IP blacklist and whitelist.
//
// The entry point is Engine.CheckRateLimit, which always returns a Status
// describing the decision, the remaining quota, when the window resets and -
// on denial - which dimension decided.
//
// # Backends
//
// Window state lives in a WindowStore. MemoryStore keeps per-key timestamp
// slices in process and is suitable for a single instance; RedisStore keeps a
// sorted set per key and gives multiple gateway instances one shared
// consumption view. Both perform prune+count+write atomically (a critical
// section in memory, one Lua round-trip in redis), which is what keeps
// concurrent requests from overshooting a limit.
//
// # Failure policy
//
// When redis is unreachable the evaluator fails over to a local MemoryStore
// for that call and keeps serving. The trade-off is deliberate: quota
// enforcement degrades to per-instance accuracy during the outage, but the
// serving path stays up. Failovers are logged and counted through the
// MetricsRecorder.
package ratelimit
