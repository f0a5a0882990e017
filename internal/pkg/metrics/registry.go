package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Auth flow metrics
var (
	// LoginStarts tracks initiated login flows
	LoginStarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fantasygate_login_starts_total",
			Help: "Total login flows initiated",
		},
	)

	// CallbackResults tracks callback outcomes by result class
	CallbackResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fantasygate_callback_results_total",
			Help: "Total OAuth callback requests by outcome",
		},
		[]string{"result"},
	)

	// TokenRefreshes tracks refresh attempts through the gate
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fantasygate_token_refreshes_total",
			Help: "Total access token refreshes by status",
		},
		[]string{"status"},
	)

	// Logouts tracks session destructions via the logout endpoint
	Logouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fantasygate_logouts_total",
			Help: "Total logout requests",
		},
	)
)

// Upstream proxy metrics
var (
	// ProxyRequests tracks proxied fantasy API calls
	ProxyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fantasygate_proxy_requests_total",
			Help: "Total proxied fantasy API requests by resource and status class",
		},
		[]string{"resource", "status"},
	)

	// UpstreamDuration tracks fantasy API latency
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "fantasygate_upstream_duration_ms",
			Help:                            "Fantasy API request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"resource"},
	)
)

// ObserveUpstream records one upstream call's latency.
func ObserveUpstream(resource string, start time.Time) {
	UpstreamDuration.WithLabelValues(resource).Observe(float64(time.Since(start).Milliseconds()))
}
