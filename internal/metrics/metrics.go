// Package metrics provides Prometheus metrics for the model service:
// prediction volume, failures, latency and confidence on the serving
// side, plus training run and quality gate outcomes on the pipeline side.
// They are exposed via the /metrics endpoint of the model server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the model service.
type Metrics struct {
	// Serving metrics
	PredictionsTotal     prometheus.Counter   // Total number of predictions served
	PredictionFailures   prometheus.Counter   // Total number of failed prediction requests
	PredictionLatency    prometheus.Histogram // End-to-end prediction latency in seconds
	PredictionConfidence prometheus.Histogram // Distribution of prediction confidence scores
	ModelAge             prometheus.Gauge     // Age of the loaded model artifact in seconds

	// Training metrics
	TrainingRuns   prometheus.Counter // Total number of training pipeline runs
	GateFailures   prometheus.Counter // Total number of quality gate failures
	ModelAccuracy  prometheus.Gauge   // Accuracy of the most recently evaluated model
	ModelPrecision prometheus.Gauge   // Weighted precision of the most recently evaluated model
	ModelRecall    prometheus.Gauge   // Weighted recall of the most recently evaluated model
	ModelF1        prometheus.Gauge   // F1 score of the most recently evaluated model
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry, which keeps
// tests isolated from the global Prometheus state.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of predictions served",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of failed prediction requests",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "End-to-end prediction latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
		PredictionConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_confidence",
			Help:    "Distribution of prediction confidence scores",
			Buckets: prometheus.LinearBuckets(0.5, 0.05, 11),
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}),
		TrainingRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Total number of training pipeline runs",
		}),
		GateFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "gate_failures_total",
			Help: "Total number of quality gate failures",
		}),
		ModelAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_accuracy",
			Help: "Accuracy of the most recently evaluated model",
		}),
		ModelPrecision: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_precision",
			Help: "Weighted precision of the most recently evaluated model",
		}),
		ModelRecall: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_recall",
			Help: "Weighted recall of the most recently evaluated model",
		}),
		ModelF1: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_f1_score",
			Help: "F1 score of the most recently evaluated model",
		}),
	}
}
