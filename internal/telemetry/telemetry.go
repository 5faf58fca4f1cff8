// Package telemetry exposes Prometheus metrics for the gateway.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all gateway Prometheus metrics.
type Metrics struct {
	// CacheLookups counts cache lookups by freshness state.
	CacheLookups *prometheus.CounterVec
	// BackendFetches counts backend fetch attempts by result.
	BackendFetches *prometheus.CounterVec
	// FetchDuration observes end-to-end resource fetch time.
	FetchDuration prometheus.Histogram
	// FragmentsServed counts block and template renders.
	FragmentsServed *prometheus.CounterVec
}

// Backend fetch result labels.
const (
	ResultOK        = "ok"
	ResultNotFound  = "not_found"
	ResultTransport = "transport_error"
)

// NewMetrics registers and returns the gateway metric set.
func NewMetrics() *Metrics {
	return &Metrics{
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goassemble_cache_lookups_total",
			Help: "Cache lookups by freshness state (fresh, stale, absent)",
		}, []string{"state"}),

		BackendFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goassemble_backend_fetches_total",
			Help: "Backend fetch attempts by result",
		}, []string{"result"}),

		FetchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "goassemble_fetch_duration_seconds",
			Help:    "Time to produce a rendered resource from any source",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),

		FragmentsServed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goassemble_fragments_served_total",
			Help: "Fragments rendered by kind (block, template, resource)",
		}, []string{"kind"}),
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
