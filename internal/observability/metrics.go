package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes the default Prometheus registry for scraping.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"route", "method"},
	)

	// ReservationAttemptsTotal counts ReserveNext calls by project and
	// outcome (reserved, no_sample, quota_exhausted, error).
	ReservationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_attempts_total",
			Help: "Total number of reservation attempts by outcome",
		},
		[]string{"project_id", "outcome"},
	)
	// ReservationDuration records ReserveNext latency.
	ReservationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reservation_duration_seconds",
			Help:    "ReserveNext latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"project_id"},
	)

	// AssignmentTransitionsTotal counts terminal assignment transitions by
	// resulting status.
	AssignmentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_transitions_total",
			Help: "Total number of assignment lifecycle transitions",
		},
		[]string{"project_id", "status"},
	)

	// SweepExpiredTotal counts assignments reclaimed by the TTL sweeper.
	SweepExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_expired_total",
			Help: "Total number of expired assignments reclaimed by the TTL sweeper",
		},
		[]string{"project_id"},
	)
	// SweepDuration records the duration of a single sweep pass.
	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "TTL sweeper pass duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// DNCCacheLookupsTotal counts DNC cache lookups by result (hit, miss).
	DNCCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnc_cache_lookups_total",
			Help: "Total number of DNC cache lookups by result",
		},
		[]string{"result"},
	)

	// PoolBuildsTotal counts pool build invocations.
	PoolBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pool_builds_total",
			Help: "Total number of sample pool builds",
		},
		[]string{"project_id"},
	)
	// PoolBuildAttemptedRows records how many rows each pool build attempted
	// to insert.
	PoolBuildAttemptedRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pool_build_attempted_rows",
			Help:    "Number of sample rows attempted per pool build",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		},
	)
)

// InitMetrics registers every metric with the default Prometheus registry.
func InitMetrics() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ReservationAttemptsTotal,
		ReservationDuration,
		AssignmentTransitionsTotal,
		SweepExpiredTotal,
		SweepDuration,
		DNCCacheLookupsTotal,
		PoolBuildsTotal,
		PoolBuildAttemptedRows,
	)
}

// HTTPMetricsMiddleware records Prometheus metrics for each HTTP request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// RecordReservationAttempt records a ReserveNext outcome and its latency.
func RecordReservationAttempt(projectID, outcome string, dur time.Duration) {
	ReservationAttemptsTotal.WithLabelValues(projectID, outcome).Inc()
	ReservationDuration.WithLabelValues(projectID).Observe(dur.Seconds())
}

// RecordAssignmentTransition records a terminal assignment transition.
func RecordAssignmentTransition(projectID, status string) {
	AssignmentTransitionsTotal.WithLabelValues(projectID, status).Inc()
}

// RecordSweep records one TTL sweeper pass.
func RecordSweep(projectID string, expired int, dur time.Duration) {
	SweepExpiredTotal.WithLabelValues(projectID).Add(float64(expired))
	SweepDuration.Observe(dur.Seconds())
}

// RecordDNCCacheLookup records a cache hit or miss.
func RecordDNCCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DNCCacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordPoolBuild records a sample pool build and how many rows it attempted.
func RecordPoolBuild(projectID string, attempted int) {
	PoolBuildsTotal.WithLabelValues(projectID).Inc()
	PoolBuildAttemptedRows.Observe(float64(attempted))
}
