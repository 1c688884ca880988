package train

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modelgate/internal/ml"
)

// MetricsPath derives the metrics artifact path from a model path by
// swapping the extension for the metrics suffix. The rule is load-bearing:
// the predictor derives the same path when looking for model metadata, so
// "models/model.json" and "models/model_metrics.json" must always travel
// together.
func MetricsPath(modelPath string) string {
	ext := filepath.Ext(modelPath)
	return strings.TrimSuffix(modelPath, ext) + "_metrics.json"
}

// SaveArtifacts persists the fitted model at modelPath and its metrics
// record at the sibling metrics path, creating the destination directory
// if needed. Returns the model path on success.
func SaveArtifacts(model *ml.Forest, m Metrics, modelPath string) (string, error) {
	if dir := filepath.Dir(modelPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create model directory: %w", err)
		}
	}

	if err := model.Save(modelPath); err != nil {
		return "", fmt.Errorf("save model: %w", err)
	}

	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}
	if err := os.WriteFile(MetricsPath(modelPath), payload, 0o600); err != nil {
		return "", fmt.Errorf("save metrics: %w", err)
	}

	return modelPath, nil
}

// LoadMetrics reads a metrics record from path.
func LoadMetrics(path string) (Metrics, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Metrics{}, err
	}
	var m Metrics
	if err := json.Unmarshal(payload, &m); err != nil {
		return Metrics{}, fmt.Errorf("parse metrics artifact: %w", err)
	}
	return m, nil
}
