package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPActiveConnections *prometheus.GaugeVec

	// Rate limiting metrics
	RateLimitExceededTotal *prometheus.CounterVec

	// Moderation metrics
	BansIssuedTotal   prometheus.Counter
	ItemsFilteredOut  *prometheus.CounterVec
	VotesCastBySystem prometheus.Counter

	// Background job metrics
	JobRunsTotal   *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec
	JobLockSkipped *prometheus.CounterVec

	// Relay metrics
	RelayConnections   prometheus.Gauge
	RelayMessagesTotal *prometheus.CounterVec

	// Outbound side effects
	PushNotificationsTotal *prometheus.CounterVec
	SearchRequestsTotal    *prometheus.CounterVec

	// Response cache lookups by result
	ResponseCacheTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			RateLimitExceededTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Total number of rate limit violations",
				},
				[]string{"path", "method"},
			),

			BansIssuedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "mist_bans_issued_total",
					Help: "Total number of automatic bans issued",
				},
			),
			ItemsFilteredOut: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mist_impermissible_filtered_total",
					Help: "Items dropped from listings as impermissible",
				},
				[]string{"kind"},
			),
			VotesCastBySystem: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "mist_system_votes_total",
					Help: "Votes cast by the synthetic vote tally job",
				},
			),

			JobRunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mist_job_runs_total",
					Help: "Background job runs by outcome",
				},
				[]string{"job", "status"},
			),
			JobDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "mist_job_duration_seconds",
					Help:    "Background job duration in seconds",
					Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300},
				},
				[]string{"job"},
			),
			JobLockSkipped: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mist_job_lock_skipped_total",
					Help: "Job runs skipped because another worker held the lock",
				},
				[]string{"job"},
			),

			RelayConnections: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "mist_relay_connections",
					Help: "Open chat relay websocket connections",
				},
			),
			RelayMessagesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mist_relay_messages_total",
					Help: "Chat relay frames handled by type and outcome",
				},
				[]string{"type", "status"},
			),

			PushNotificationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mist_push_notifications_total",
					Help: "Expo push sends by outcome",
				},
				[]string{"status"},
			),
			SearchRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mist_search_requests_total",
					Help: "Full-text post searches by backend",
				},
				[]string{"backend", "status"},
			),
			ResponseCacheTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mist_response_cache_total",
					Help: "Cached GET response lookups by result",
				},
				[]string{"result"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Initialize()
}

// Status maps an error to the "success"/"error" label value
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
