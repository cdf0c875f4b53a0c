package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cropocr_pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"outcome"}, // success, validation, no_annotations, cancelled, error
	)

	pipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cropocr_pipeline_duration_seconds",
			Help:    "Duration of successful pipeline runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	degenerateRegionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cropocr_degenerate_regions_total",
			Help: "Total number of regions that were empty after cropping",
		},
	)
)
