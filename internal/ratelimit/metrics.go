package ratelimit

// MetricsRecorder receives counters from the evaluator so operators can see
// when the shared backend is degraded. Exporters (Prometheus, StatsD) live
// outside this package; they only need to satisfy this interface.
type MetricsRecorder interface {
	Add(name string, value float64, tags map[string]string)
}

// Metric names emitted by the evaluator.
const (
	MetricFailover = "ratelimit.backend.failover"
	MetricDenied   = "ratelimit.denied"
)

// NoOpMetricsRecorder is the default recorder. Having it in place means the
// hot path never checks for a nil recorder.
type NoOpMetricsRecorder struct{}

func (NoOpMetricsRecorder) Add(name string, value float64, tags map[string]string) {}
