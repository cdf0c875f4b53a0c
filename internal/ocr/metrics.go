package ocr

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ocrCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cropocr_ocr_calls_total",
			Help: "Total number of OCR extraction calls",
		},
		[]string{"backend", "outcome"}, // outcome: success, error, rejected
	)

	ocrCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cropocr_ocr_call_duration_seconds",
			Help:    "OCR extraction duration in seconds, retries included",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"backend"},
	)

	ocrRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cropocr_ocr_retries_total",
			Help: "Total number of retried OCR service requests",
		},
	)

	breakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cropocr_ocr_breaker_state",
			Help: "OCR circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
	)
)
