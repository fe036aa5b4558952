package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ussd_callbacks_total",
			Help: "Count of handled gateway callbacks",
		},
		[]string{"state", "response"},
	)
	CallbackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ussd_callback_duration_seconds",
			Help:    "Time taken to handle a gateway callback",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"state"},
	)
	BackendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ussd_backend_failures_total",
			Help: "Count of failed backend API calls",
		},
		[]string{"operation"},
	)
	SessionOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ussd_session_operations_total",
			Help: "Count of session store operations",
		},
		[]string{"operation", "outcome"},
	)
	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ussd_rate_limited_total",
			Help: "Count of callbacks rejected by the per-subscriber rate limit",
		},
	)
)

func Init() {
	prometheus.MustRegister(
		CallbacksTotal,
		CallbackDuration,
		BackendFailures,
		SessionOperations,
		RateLimited,
	)
}
