// Package metrics provides Prometheus metrics collection for the frost
// forecasting service. It defines counters, gauges and histograms for the
// prediction pipeline, the model bundles and the HTTP surface, exposed via
// the Prometheus metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction pipeline metrics
	PredictionsTotal   prometheus.Counter   // Total number of model evaluations
	PredictionFailures prometheus.Counter   // Total number of failed model evaluations
	PredictionLatency  prometheus.Histogram // End-to-end predecir latency in seconds
	ModelLatency       prometheus.Histogram // Single bundle evaluation latency in seconds
	CacheHits          prometheus.Counter   // Total number of same-day cache hits
	ModelAge           prometheus.Gauge     // Age of the newest loaded model artifact in seconds

	// Feature metrics
	FeatureRowsUsable prometheus.Gauge   // Usable rows in the last built feature table
	FeatureErrors     prometheus.Counter // Total number of feature construction failures

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors absorbed at the service boundary
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of model evaluations",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of failed model evaluations",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "End-to-end prediction latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		ModelLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "model_latency_seconds",
			Help:    "Single model bundle evaluation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of same-day prediction cache hits",
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the newest loaded model artifact in seconds",
		}),
		FeatureRowsUsable: factory.NewGauge(prometheus.GaugeOpts{
			Name: "feature_rows_usable",
			Help: "Usable rows in the last built feature table",
		}),
		FeatureErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "feature_errors_total",
			Help: "Total number of feature construction failures",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors absorbed at the service boundary",
		}),
	}
}
