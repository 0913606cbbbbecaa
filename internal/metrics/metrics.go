// Package metrics provides Prometheus metrics collection for the disposition
// classifier. It defines the inference and training metrics exposed via the
// Prometheus metrics endpoint for monitoring and alerting.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the classifier.
type Metrics struct {
	// Inference metrics
	Predictions          *prometheus.CounterVec // Predictions served, by predicted label
	PredictionFailures   prometheus.Counter     // Predictions that failed after input validation
	RejectedInputs       prometheus.Counter     // Requests rejected as malformed input
	PredictionLatency    prometheus.Histogram   // End-to-end prediction latency
	PredictionConfidence prometheus.Histogram   // Probability of the predicted class
	ModelAge             prometheus.Gauge       // Seconds since the loaded model was trained
	ArtifactLoads        *prometheus.CounterVec // Artifact load attempts, by result

	// Training metrics
	TrainingRuns     prometheus.Counter   // Completed training runs
	TrainingDuration prometheus.Histogram // Wall-clock duration of training runs
	TrainingRows     prometheus.Gauge     // Rows in the most recent training dataset
	TestAccuracy     prometheus.Gauge     // Held-out accuracy of the most recent run

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "koi_predictions_total",
			Help: "Total number of predictions served, by predicted disposition",
		}, []string{"label"}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "koi_prediction_failures_total",
			Help: "Total number of prediction failures",
		}),
		RejectedInputs: factory.NewCounter(prometheus.CounterOpts{
			Name: "koi_rejected_inputs_total",
			Help: "Total number of observations rejected as malformed",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "koi_prediction_latency_seconds",
			Help:    "Prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		PredictionConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "koi_prediction_confidence",
			Help:    "Distribution of the predicted class probability",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "koi_model_age_seconds",
			Help: "Age of the loaded model in seconds",
		}),
		ArtifactLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "koi_artifact_loads_total",
			Help: "Total number of artifact load attempts, by result",
		}, []string{"result"}),
		TrainingRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "koi_training_runs_total",
			Help: "Total number of completed training runs",
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "koi_training_duration_seconds",
			Help:    "Duration of training runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		TrainingRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "koi_training_rows",
			Help: "Number of rows in the most recent training dataset",
		}),
		TestAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "koi_test_accuracy",
			Help: "Held-out accuracy of the most recent training run",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format, for batch jobs scraped through node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
