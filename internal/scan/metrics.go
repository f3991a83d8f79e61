package scan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketscan_scans_total",
			Help: "Total number of processed scan submissions",
		},
		[]string{"status"}, // completed, failed
	)

	duplicateNumbersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketscan_duplicate_numbers_total",
			Help: "Total number of duplicate ticket numbers resolved to a versioned suffix",
		},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticketscan_scan_duration_seconds",
			Help:    "End-to-end processing duration of one submission",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	recognitionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticketscan_recognition_batch_duration_seconds",
			Help:    "Duration of one batched model recognition call",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)
