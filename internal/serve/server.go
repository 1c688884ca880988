package serve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"modelgate/internal/storage"
)

// Server exposes the predictor over HTTP. The predictor is injected at
// construction and never replaced; every handler reads the same immutable
// model, so no locking is needed on the request path.
type Server struct {
	predictor *Predictor
	store     *storage.Store // optional prediction audit log
	hub       *Hub
	server    *http.Server
}

// PredictRequest is the /predict request body.
type PredictRequest struct {
	Features []float64 `json:"features"`
}

// PredictResponse is the /predict success body.
type PredictResponse struct {
	Prediction    int       `json:"prediction"`
	Probabilities []float64 `json:"probabilities"`
	Confidence    float64   `json:"confidence"`
	Timestamp     time.Time `json:"timestamp"`
	ModelVersion  string    `json:"model_version"`
}

// HealthResponse is the /health body. Health reporting never fails; the
// endpoint answers 200 even when the model is missing.
type HealthResponse struct {
	Status      string                 `json:"status"`
	ModelLoaded bool                   `json:"model_loaded"`
	ModelInfo   map[string]interface{} `json:"model_info"`
	Timestamp   time.Time              `json:"timestamp"`
}

// ModelInfoResponse is the /model/info body.
type ModelInfoResponse struct {
	ModelPath    string                 `json:"model_path"`
	ModelLoaded  bool                   `json:"model_loaded"`
	ModelMetrics map[string]interface{} `json:"model_metrics"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer wires the HTTP surface in front of the predictor. store may
// be nil (no audit log).
func NewServer(predictor *Predictor, store *storage.Store, port int) *Server {
	s := &Server{
		predictor: predictor,
		store:     store,
		hub:       NewHub(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/model/info", s.handleModelInfo)
	mux.HandleFunc("/ws/predictions", s.hub.ServeWS)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start begins serving and blocks until the server stops.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Bool("model_loaded", s.predictor.Loaded()).Msg("starting model server")
	go s.hub.Run()
	return s.server.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

// Handler returns the root handler, which keeps httptest wiring simple.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := "healthy"
	if !s.predictor.Loaded() {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      status,
		ModelLoaded: s.predictor.Loaded(),
		ModelInfo:   modelInfoMap(s.predictor),
		Timestamp:   time.Now().UTC(),
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Features == nil {
		writeError(w, http.StatusBadRequest, "missing 'features' field")
		return
	}

	result, err := s.predictor.Predict(req.Features)
	if err != nil {
		s.writePredictError(w, err)
		return
	}

	resp := PredictResponse{
		Prediction:    result.Prediction,
		Probabilities: result.Probabilities,
		Confidence:    result.Confidence,
		Timestamp:     result.Timestamp,
		ModelVersion:  s.predictor.ModelVersion(),
	}

	s.recordPrediction(req.Features, resp)
	writeJSON(w, http.StatusOK, resp)
}

// writePredictError maps predictor errors onto status codes: a missing
// model is a service problem, everything else is treated as a client
// error since the loaded model itself cannot fail on valid input.
func (s *Server) writePredictError(w http.ResponseWriter, err error) {
	if err == ErrModelNotLoaded {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, ModelInfoResponse{
		ModelPath:    s.predictor.ModelPath(),
		ModelLoaded:  s.predictor.Loaded(),
		ModelMetrics: modelInfoMap(s.predictor),
	})
}

// recordPrediction feeds the audit log and the live websocket feed.
// Neither is allowed to fail the request.
func (s *Server) recordPrediction(features []float64, resp PredictResponse) {
	if s.store != nil {
		record := storage.PredictionRecord{
			Timestamp:     resp.Timestamp,
			Features:      features,
			Prediction:    resp.Prediction,
			Probabilities: resp.Probabilities,
			Confidence:    resp.Confidence,
			ModelVersion:  resp.ModelVersion,
		}
		if err := s.store.StorePrediction(record); err != nil {
			log.Warn().Err(err).Msg("failed to record prediction")
		}
	}
	s.hub.Broadcast(resp)
}

func modelInfoMap(p *Predictor) map[string]interface{} {
	info := map[string]interface{}{}
	m, ok := p.ModelInfo()
	if !ok {
		return info
	}
	info["accuracy"] = m.Accuracy
	info["precision"] = m.Precision
	info["recall"] = m.Recall
	info["f1_score"] = m.F1Score
	info["timestamp"] = m.Timestamp
	return info
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
