package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "renderer",
		Name:      "renders_total",
		Help:      "Render requests by document type and outcome.",
	}, []string{"doc_type", "status"})

	renderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "renderer",
		Name:      "render_duration_seconds",
		Help:      "End-to-end render latency by document type.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	}, []string{"doc_type"})

	artifactBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "renderer",
		Name:      "artifact_bytes",
		Help:      "Size of produced artifacts by document type.",
		Buckets:   prometheus.ExponentialBuckets(64*1024, 4, 8),
	}, []string{"doc_type"})
)
