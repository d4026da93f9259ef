package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gearshift"

var (
	// Registry holds the gearshift Prometheus collectors.
	Registry = prometheus.NewRegistry()

	visitsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "visit",
			Name:      "created_total",
			Help:      "Total number of visits created.",
		},
	)

	visitPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "visit",
			Name:      "pending_updates",
			Help:      "Visit expiry updates waiting for the next flush.",
		},
	)

	visitDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "visit",
			Name:      "updates_dropped_total",
			Help:      "Visit expiry updates dropped because the queue was full.",
		},
	)

	visitFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "visit",
			Name:      "flush_total",
			Help:      "Total number of visit flushes by result.",
		},
		[]string{"result"},
	)

	visitFlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "visit",
			Name:      "flush_duration_seconds",
			Help:      "Duration of visit flushes.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	identityResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "resolutions_total",
			Help:      "Identities resolved per request by outcome.",
		},
		[]string{"outcome"},
	)

	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "login_attempts_total",
			Help:      "Credential login attempts by source and result.",
		},
		[]string{"source", "result"},
	)

	authzFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authz",
			Name:      "failures_total",
			Help:      "Authorization failures by redirect mode.",
		},
		[]string{"mode"},
	)
)

func init() {
	Registry.MustRegister(
		visitsCreated,
		visitPending,
		visitDropped,
		visitFlushes,
		visitFlushDuration,
		identityResolutions,
		loginAttempts,
		authzFailures,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// VisitCreated counts a newly created visit.
func VisitCreated() {
	visitsCreated.Inc()
}

// SetVisitPending reports the size of the pending expiry map.
func SetVisitPending(n int) {
	visitPending.Set(float64(n))
}

// VisitUpdateDropped counts an expiry update lost to a full queue.
func VisitUpdateDropped() {
	visitDropped.Inc()
}

// VisitFlush records a flush outcome. result is "ok" or "error".
func VisitFlush(result string, d time.Duration) {
	visitFlushes.WithLabelValues(result).Inc()
	visitFlushDuration.Observe(d.Seconds())
}

// IdentityResolved counts a per-request identity by outcome
// ("authenticated", "anonymous" or "error").
func IdentityResolved(outcome string) {
	identityResolutions.WithLabelValues(outcome).Inc()
}

// LoginAttempt counts a credential check by source and result
// ("success", "invalid", "throttled").
func LoginAttempt(source, result string) {
	loginAttempts.WithLabelValues(source, result).Inc()
}

// AuthzFailure counts a denied request by redirect mode
// ("internal" or "external").
func AuthzFailure(mode string) {
	authzFailures.WithLabelValues(mode).Inc()
}
