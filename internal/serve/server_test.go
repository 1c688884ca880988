package serve

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"modelgate/internal/storage"
	"modelgate/internal/train"
)

func newTestServer(t *testing.T, modelPath string, store *storage.Store) *Server {
	t.Helper()
	return NewServer(New(modelPath), store, 0)
}

func doRequest(t *testing.T, srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthDegradedWithoutModel(t *testing.T) {
	srv := newTestServer(t, filepath.Join(t.TempDir(), "missing.json"), nil)

	w := doRequest(t, srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health returned %d, expected 200", w.Code)
	}

	var resp HealthResponse
	decodeBody(t, w, &resp)
	if resp.Status != "degraded" {
		t.Errorf("status %q, expected degraded", resp.Status)
	}
	if resp.ModelLoaded {
		t.Error("model_loaded should be false without an artifact")
	}
	if len(resp.ModelInfo) != 0 {
		t.Errorf("expected empty model_info, got %v", resp.ModelInfo)
	}
}

func TestHealthHealthyWithModel(t *testing.T) {
	path, trained := trainArtifacts(t)
	srv := newTestServer(t, path, nil)

	w := doRequest(t, srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health returned %d, expected 200", w.Code)
	}

	var resp HealthResponse
	decodeBody(t, w, &resp)
	if resp.Status != "healthy" || !resp.ModelLoaded {
		t.Errorf("unexpected health state: %+v", resp)
	}
	if resp.ModelInfo["timestamp"] != trained.Timestamp {
		t.Errorf("model_info timestamp %v, expected %s", resp.ModelInfo["timestamp"], trained.Timestamp)
	}
}

func TestPredictSuccess(t *testing.T) {
	path, trained := trainArtifacts(t)
	srv := newTestServer(t, path, nil)

	body, _ := json.Marshal(PredictRequest{Features: sampleFeatures(t)})
	w := doRequest(t, srv, http.MethodPost, "/predict", body)
	if w.Code != http.StatusOK {
		t.Fatalf("predict returned %d: %s", w.Code, w.Body.String())
	}

	var resp PredictResponse
	decodeBody(t, w, &resp)
	if resp.Prediction != 0 && resp.Prediction != 1 {
		t.Errorf("prediction %d outside {0,1}", resp.Prediction)
	}
	total := 0.0
	for _, p := range resp.Probabilities {
		total += p
	}
	if math.Abs(total-1.0) > 1e-6 {
		t.Errorf("probabilities sum to %.9f", total)
	}
	if resp.ModelVersion != trained.Timestamp {
		t.Errorf("model_version %s, expected %s", resp.ModelVersion, trained.Timestamp)
	}
}

func TestPredictModelNotLoaded(t *testing.T) {
	srv := newTestServer(t, filepath.Join(t.TempDir(), "missing.json"), nil)

	body, _ := json.Marshal(PredictRequest{Features: sampleFeatures(t)})
	w := doRequest(t, srv, http.MethodPost, "/predict", body)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("predict returned %d, expected 503", w.Code)
	}

	var resp errorResponse
	decodeBody(t, w, &resp)
	if resp.Error != "model not loaded" {
		t.Errorf("unexpected error message: %s", resp.Error)
	}
}

func TestPredictMissingFeatures(t *testing.T) {
	path, _ := trainArtifacts(t)
	srv := newTestServer(t, path, nil)

	w := doRequest(t, srv, http.MethodPost, "/predict", []byte(`{}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("predict returned %d, expected 400", w.Code)
	}

	var resp errorResponse
	decodeBody(t, w, &resp)
	if !strings.Contains(resp.Error, "missing 'features'") {
		t.Errorf("unexpected error message: %s", resp.Error)
	}
}

func TestPredictInvalidBody(t *testing.T) {
	path, _ := trainArtifacts(t)
	srv := newTestServer(t, path, nil)

	w := doRequest(t, srv, http.MethodPost, "/predict", []byte(`not json`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("predict returned %d, expected 400", w.Code)
	}
}

func TestPredictWrongFeatureLength(t *testing.T) {
	path, _ := trainArtifacts(t)
	srv := newTestServer(t, path, nil)

	body, _ := json.Marshal(PredictRequest{Features: []float64{1, 2, 3}})
	w := doRequest(t, srv, http.MethodPost, "/predict", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("predict returned %d, expected 400", w.Code)
	}

	var resp errorResponse
	decodeBody(t, w, &resp)
	if resp.Error != "expected 10 features, got 3" {
		t.Errorf("unexpected error message: %s", resp.Error)
	}
}

func TestPredictRecordsAuditEntry(t *testing.T) {
	path, _ := trainArtifacts(t)
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	srv := newTestServer(t, path, store)

	before := time.Now().Add(-time.Minute)
	body, _ := json.Marshal(PredictRequest{Features: sampleFeatures(t)})
	if w := doRequest(t, srv, http.MethodPost, "/predict", body); w.Code != http.StatusOK {
		t.Fatalf("predict returned %d", w.Code)
	}

	records, err := store.PredictionsInRange(before, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("read predictions: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(records))
	}
	if len(records[0].Features) != 10 {
		t.Errorf("audit record kept %d features, expected 10", len(records[0].Features))
	}
}

func TestModelInfoReflectsSavedMetrics(t *testing.T) {
	path, trained := trainArtifacts(t)
	srv := newTestServer(t, path, nil)

	w := doRequest(t, srv, http.MethodGet, "/model/info", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("model/info returned %d", w.Code)
	}

	var resp ModelInfoResponse
	decodeBody(t, w, &resp)
	if resp.ModelPath != path {
		t.Errorf("model_path %s, expected %s", resp.ModelPath, path)
	}
	if !resp.ModelLoaded {
		t.Error("expected model_loaded true")
	}
	if resp.ModelMetrics["accuracy"] != trained.Accuracy {
		t.Errorf("accuracy %v, expected %v", resp.ModelMetrics["accuracy"], trained.Accuracy)
	}
}

func TestModelInfoWithoutMetricsFile(t *testing.T) {
	path, _ := trainArtifacts(t)
	if err := os.Remove(train.MetricsPath(path)); err != nil {
		t.Fatalf("remove metrics file: %v", err)
	}

	srv := newTestServer(t, path, nil)
	w := doRequest(t, srv, http.MethodGet, "/model/info", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("model/info returned %d", w.Code)
	}

	var resp ModelInfoResponse
	decodeBody(t, w, &resp)
	if !resp.ModelLoaded {
		t.Error("expected model_loaded true without a metrics file")
	}
	if len(resp.ModelMetrics) != 0 {
		t.Errorf("expected empty metrics map, got %v", resp.ModelMetrics)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	path, _ := trainArtifacts(t)
	srv := newTestServer(t, path, nil)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/predict"},
		{http.MethodPost, "/health"},
		{http.MethodPost, "/model/info"},
	}
	for _, tc := range cases {
		w := doRequest(t, srv, tc.method, tc.path, nil)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s returned %d, expected 405", tc.method, tc.path, w.Code)
		}
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	path, _ := trainArtifacts(t)
	srv := newTestServer(t, path, nil)

	w := doRequest(t, srv, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics returned %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("expected default process metrics in the exposition")
	}
}
