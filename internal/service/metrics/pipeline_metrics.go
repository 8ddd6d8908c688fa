package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	StageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trendlab",
			Subsystem: "pipeline",
			Name:      "stage_seconds",
			Help:      "Latency of pipeline stages",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	StageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendlab",
			Subsystem: "pipeline",
			Name:      "errors_total",
			Help:      "Errors by pipeline stage",
		},
		[]string{"stage"},
	)

	BarsEnriched = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "trendlab",
			Subsystem: "pipeline",
			Name:      "bars_enriched",
			Help:      "Bars per enrich call",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 7),
		},
	)

	EpisodesBuilt = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "trendlab",
			Subsystem: "pipeline",
			Name:      "episodes_built",
			Help:      "Episodes per build call",
			Buckets:   prometheus.ExponentialBuckets(1, 3, 8),
		},
	)

	Predictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendlab",
			Subsystem: "overlay",
			Name:      "predictions_total",
			Help:      "Predictions by label, kept or filtered by confidence",
		},
		[]string{"label", "kept"},
	)
)

// Register adds the pipeline collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(StageLatency, StageErrors, BarsEnriched, EpisodesBuilt, Predictions)
	})
}

// ObserveStage records latency since start and counts err under stage.
func ObserveStage(stage string, start time.Time, err error) {
	StageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		StageErrors.WithLabelValues(stage).Inc()
	}
}
