package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketscan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketscan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	scanRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketscan_scan_requests_total",
			Help: "Total number of scan uploads",
		},
		[]string{"status"}, // accepted, rejected
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticketscan_upload_size_bytes",
			Help:    "Total size of the page images in one upload",
			Buckets: []float64{10 * 1024, 100 * 1024, 1024 * 1024, 5 * 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketscan_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // minute, data
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticketscan_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)
)
