package train

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelgate/internal/ml"
)

func TestMetricsPath(t *testing.T) {
	cases := map[string]string{
		"models/model.json":        "models/model_metrics.json",
		"model.json":               "model_metrics.json",
		"/abs/path/classifier.bin": "/abs/path/classifier_metrics.json",
		"models/model":             "models/model_metrics.json",
	}
	for modelPath, want := range cases {
		assert.Equal(t, want, MetricsPath(modelPath))
	}
}

func TestSaveArtifactsWritesSiblingMetrics(t *testing.T) {
	model, _, _ := fittedModel(t)
	m := Metrics{Accuracy: 0.9, Precision: 0.9, Recall: 0.9, F1Score: 0.9, Timestamp: "2026-01-02T03:04:05Z"}

	modelPath := filepath.Join(t.TempDir(), "models", "model.json")
	saved, err := SaveArtifacts(model, m, modelPath)
	require.NoError(t, err)
	assert.Equal(t, modelPath, saved)

	// Both artifacts exist.
	_, err = os.Stat(modelPath)
	require.NoError(t, err)
	_, err = os.Stat(MetricsPath(modelPath))
	require.NoError(t, err)

	// The metrics record round-trips intact.
	loaded, err := LoadMetrics(MetricsPath(modelPath))
	require.NoError(t, err)
	assert.Equal(t, m, loaded)

	// The model artifact is loadable and predicts.
	reloaded, err := ml.Load(modelPath)
	require.NoError(t, err)
	assert.Equal(t, model.NumFeatures(), reloaded.NumFeatures())
}

func TestSaveArtifactsOverwrites(t *testing.T) {
	model, _, _ := fittedModel(t)
	modelPath := filepath.Join(t.TempDir(), "model.json")

	_, err := SaveArtifacts(model, Metrics{Accuracy: 0.5, Timestamp: "first"}, modelPath)
	require.NoError(t, err)
	_, err = SaveArtifacts(model, Metrics{Accuracy: 0.9, Timestamp: "second"}, modelPath)
	require.NoError(t, err)

	loaded, err := LoadMetrics(MetricsPath(modelPath))
	require.NoError(t, err)
	assert.Equal(t, "second", loaded.Timestamp)
	assert.Equal(t, 0.9, loaded.Accuracy)
}

func TestLoadMetricsMissingFile(t *testing.T) {
	_, err := LoadMetrics(filepath.Join(t.TempDir(), "absent_metrics.json"))
	assert.Error(t, err)
}
