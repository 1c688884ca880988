// Package serve hosts the serving side of the model service: a predictor
// wrapping a loaded model artifact and the HTTP API in front of it.
package serve

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"modelgate/internal/ml"
	"modelgate/internal/train"
)

// MetricsInterface defines the metrics methods the predictor reports to.
type MetricsInterface interface {
	PredictionsInc()
	FailuresInc()
	LatencyObserve(float64)
	ConfidenceObserve(float64)
	ModelAgeSet(float64)
}

// ErrModelNotLoaded signals that no model artifact was available when the
// predictor was constructed. The API layer translates it into a service
// unavailable response rather than an internal error.
var ErrModelNotLoaded = errors.New("model not loaded")

// ValidationError reports a feature vector of the wrong shape.
type ValidationError struct {
	Expected int
	Got      int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("expected %d features, got %d", e.Expected, e.Got)
}

// Prediction is the result of one inference call. It is ephemeral:
// produced per request, never persisted by the predictor itself.
type Prediction struct {
	Prediction    int       `json:"prediction"`
	Probabilities []float64 `json:"probabilities"`
	Confidence    float64   `json:"confidence"`
	Timestamp     time.Time `json:"timestamp"`
}

// Predictor holds the process-wide model loaded once at startup. It is
// read-only after construction and safe for concurrent use.
type Predictor struct {
	modelPath string
	model     *ml.Forest
	info      train.Metrics
	hasInfo   bool
	metrics   MetricsInterface
}

func New(modelPath string) *Predictor {
	return NewWithMetrics(modelPath, nil)
}

// NewWithMetrics loads the model artifact at modelPath. A missing or
// corrupt artifact leaves the predictor in a degraded state instead of
// failing: the server still starts and reports unhealthy via /health.
// The sibling metrics file is loaded opportunistically; its absence is
// not an error.
func NewWithMetrics(modelPath string, metrics MetricsInterface) *Predictor {
	p := &Predictor{modelPath: modelPath, metrics: metrics}

	model, err := ml.Load(modelPath)
	if err != nil {
		log.Warn().Err(err).Str("model_path", modelPath).Msg("model artifact not loadable, serving degraded")
		return p
	}
	p.model = model
	log.Info().Str("model_path", modelPath).Int("features", model.NumFeatures()).Msg("model loaded")

	if info, err := os.Stat(modelPath); err == nil && metrics != nil {
		metrics.ModelAgeSet(time.Since(info.ModTime()).Seconds())
	}

	metricsPath := train.MetricsPath(modelPath)
	if m, err := train.LoadMetrics(metricsPath); err != nil {
		log.Warn().Err(err).Str("metrics_path", metricsPath).Msg("model metrics not available")
	} else {
		p.info = m
		p.hasInfo = true
	}

	return p
}

// Loaded reports whether a model artifact was successfully loaded.
func (p *Predictor) Loaded() bool {
	return p != nil && p.model != nil
}

// ModelPath returns the configured artifact path.
func (p *Predictor) ModelPath() string {
	return p.modelPath
}

// ModelInfo returns the metrics record loaded alongside the model. The
// second result is false when no metrics file was found.
func (p *Predictor) ModelInfo() (train.Metrics, bool) {
	return p.info, p.hasInfo
}

// ModelVersion tags responses with the training timestamp of the loaded
// metrics, or "unknown" when none is held.
func (p *Predictor) ModelVersion() string {
	if p.hasInfo && p.info.Timestamp != "" {
		return p.info.Timestamp
	}
	return "unknown"
}

// Predict validates the feature vector, runs inference and returns the
// predicted class with its probability vector and confidence.
func (p *Predictor) Predict(features []float64) (Prediction, error) {
	start := time.Now()

	if !p.Loaded() {
		p.countFailure()
		return Prediction{}, ErrModelNotLoaded
	}

	if len(features) != p.model.NumFeatures() {
		p.countFailure()
		return Prediction{}, &ValidationError{Expected: p.model.NumFeatures(), Got: len(features)}
	}
	for i, f := range features {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			p.countFailure()
			return Prediction{}, fmt.Errorf("feature %d is not a finite number", i)
		}
	}

	probs, err := p.model.PredictProba(features)
	if err != nil {
		p.countFailure()
		return Prediction{}, err
	}

	best := 0
	for c := 1; c < len(probs); c++ {
		if probs[c] > probs[best] {
			best = c
		}
	}

	result := Prediction{
		Prediction:    p.model.Classes[best],
		Probabilities: probs,
		Confidence:    probs[best],
		Timestamp:     time.Now().UTC(),
	}

	if p.metrics != nil {
		p.metrics.PredictionsInc()
		p.metrics.LatencyObserve(time.Since(start).Seconds())
		p.metrics.ConfidenceObserve(result.Confidence)
	}
	return result, nil
}

func (p *Predictor) countFailure() {
	if p != nil && p.metrics != nil {
		p.metrics.FailuresInc()
	}
}
