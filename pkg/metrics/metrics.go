package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	JobsInFlight           prometheus.Gauge
	HarvestsTotal          *prometheus.CounterVec
	HarvestDuration        *prometheus.HistogramVec
	RenderEscalationsTotal prometheus.Counter
)

func Init() {
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobs_in_flight",
			Help: "Current number of harvest jobs being executed.",
		},
	)

	HarvestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvests_total",
			Help: "Total number of harvest job attempts.",
		},
		[]string{"status", "error_type"}, // status: success, failure, retry
	)

	HarvestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvest_duration_seconds",
			Help:    "Duration of complete harvest jobs.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		},
		[]string{"source"},
	)

	RenderEscalationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "render_escalations_total",
			Help: "Total number of pages re-fetched via headless browser.",
		},
	)
}
