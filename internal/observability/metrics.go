package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// Fetch outcomes by kind. Watch for: rising transport/http errors
	// (upstream trouble) vs no_data (aircraft far from any station).
	WxFetchesTotal *prometheus.CounterVec

	// Wall time of a whole fetch cycle, including the radius retry.
	WxFetchDuration prometheus.Histogram

	// Fetches that widened the search radius to the ceiling.
	WxRadiusRetriesTotal prometheus.Counter

	// Transport retries after a certificate-revocation-check failure.
	WxRevocationRetriesTotal prometheus.Counter

	// Update requests refused before launching a fetch, by reason.
	WxRequestsRejectedTotal *prometheus.CounterVec

	// Observations actually published to the weather state.
	WxObservationsTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	WxFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wxFetchesTotal",
			Help: "Completed weather fetch cycles by outcome",
		},
		[]string{"outcome"},
	)
	WxFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wxFetchDurationSeconds",
			Help:    "Weather fetch cycle duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
	WxRadiusRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wxRadiusRetriesTotal",
			Help: "Fetch cycles retried at the maximum search radius",
		},
	)
	WxRevocationRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wxRevocationRetriesTotal",
			Help: "HTTP attempts retried with revocation checking disabled",
		},
	)
	WxRequestsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wxRequestsRejectedTotal",
			Help: "Weather update requests refused without a fetch, by reason",
		},
		[]string{"reason"},
	)
	WxObservationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wxObservationsTotal",
			Help: "Observations published to the weather state",
		},
	)

	registry.MustRegister(
		WxFetchesTotal, WxFetchDuration,
		WxRadiusRetriesTotal, WxRevocationRetriesTotal,
		WxRequestsRejectedTotal, WxObservationsTotal,
	)
}

// MetricsHandler returns an http.Handler serving application and runtime
// metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
