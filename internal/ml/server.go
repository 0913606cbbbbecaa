package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"exoplanet-classifier/internal/observation"
	"exoplanet-classifier/internal/storage"
)

// PredictionLogger persists served predictions.
type PredictionLogger interface {
	RecordPrediction(record storage.PredictionRecord) error
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Port           int
	MaxRequestBody int64 // bytes
	RequestTimeout time.Duration
	LogPredictions bool
}

// ModelServer provides HTTP API for model predictions
type ModelServer struct {
	classifier Classifier
	logger     PredictionLogger
	config     ServerConfig
	handler    http.Handler
	server     *http.Server
	started    time.Time
}

// PredictionRequest represents the incoming prediction request
type PredictionRequest struct {
	Features  map[string]any `json:"features"`
	RequestID string         `json:"request_id,omitempty"`
}

// PredictionResponse represents the prediction result
type PredictionResponse struct {
	Label         string             `json:"label"`
	ClassIndex    int                `json:"class_index"`
	Probabilities []ClassProbability `json:"probabilities"`
	Description   string             `json:"description"`
	RequestID     string             `json:"request_id"`
	ModelVersion  string             `json:"model_version"`
	Latency       float64            `json:"latency_ms"`
	Timestamp     time.Time          `json:"timestamp"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse reports server and model status.
type HealthResponse struct {
	Status          string    `json:"status"`
	ModelLoaded     bool      `json:"model_loaded"`
	ModelVersion    string    `json:"model_version"`
	TrainedAt       time.Time `json:"trained_at"`
	UptimeSeconds   float64   `json:"uptime_seconds"`
	ModelAgeSeconds float64   `json:"model_age_seconds"`
}

// NewModelServer creates a new HTTP server for model serving. gatherer
// backs /metrics and may be nil to omit it; logger may be nil.
func NewModelServer(classifier Classifier, config ServerConfig, gatherer prometheus.Gatherer, logger PredictionLogger) *ModelServer {
	ms := &ModelServer{
		classifier: classifier,
		logger:     logger,
		config:     config,
		started:    time.Now(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/predict", ms.handlePredict).Methods(http.MethodPost)
	r.HandleFunc("/health", ms.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/model/info", ms.handleModelInfo).Methods(http.MethodGet)
	r.HandleFunc("/features", ms.handleFeatures).Methods(http.MethodGet)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	})
	ms.handler = r
	if config.RequestTimeout > 0 {
		ms.handler = http.TimeoutHandler(r, config.RequestTimeout, `{"error":"request timed out"}`)
	}

	ms.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      ms.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return ms
}

// Handler returns the HTTP handler, for tests and embedding.
func (ms *ModelServer) Handler() http.Handler {
	return ms.handler
}

// Start begins serving HTTP requests
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Msg("Starting model server")
	if err := ms.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if ms.config.MaxRequestBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, ms.config.MaxRequestBody)
	}

	var req PredictionRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if err := r.Context().Err(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "request cancelled", RequestID: req.RequestID})
		return
	}

	pred, err := ms.classifier.PredictInput(req.Features)
	if err != nil {
		var mie *observation.MalformedInputError
		if errors.As(err, &mie) {
			log.Debug().Str("field", mie.Field).Str("request_id", req.RequestID).Msg("Rejected malformed input")
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: mie.Error(), Field: mie.Field, RequestID: req.RequestID})
			return
		}
		log.Error().Err(err).Str("request_id", req.RequestID).Msg("Prediction failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "prediction failed", RequestID: req.RequestID})
		return
	}

	info := ms.classifier.Info()
	latency := time.Since(start)
	resp := PredictionResponse{
		Label:         pred.Label,
		ClassIndex:    pred.ClassIndex,
		Probabilities: pred.Probabilities,
		Description:   DescribeClass(pred.Label),
		RequestID:     req.RequestID,
		ModelVersion:  info.RunID,
		Latency:       float64(latency.Microseconds()) / 1000,
		Timestamp:     time.Now().UTC(),
	}

	if ms.logger != nil && ms.config.LogPredictions {
		ms.logPrediction(req, pred, resp)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (ms *ModelServer) logPrediction(req PredictionRequest, pred Prediction, resp PredictionResponse) {
	obs, err := observation.FromAny(req.Features)
	if err != nil {
		return
	}
	probs := make(map[string]float64, len(pred.Probabilities))
	for _, cp := range pred.Probabilities {
		probs[cp.Class] = cp.Probability
	}
	record := storage.PredictionRecord{
		RequestID:     req.RequestID,
		RunID:         resp.ModelVersion,
		Timestamp:     resp.Timestamp,
		Features:      obs.ToMap(),
		Label:         pred.Label,
		Probabilities: probs,
		LatencyMs:     resp.Latency,
	}
	if err := ms.logger.RecordPrediction(record); err != nil {
		log.Warn().Err(err).Str("request_id", req.RequestID).Msg("Failed to log prediction")
	}
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	info := ms.classifier.Info()

	health := HealthResponse{
		Status:        "ok",
		ModelLoaded:   true,
		ModelVersion:  info.RunID,
		TrainedAt:     info.TrainedAt,
		UptimeSeconds: time.Since(ms.started).Seconds(),
	}
	if !info.TrainedAt.IsZero() {
		health.ModelAgeSeconds = time.Since(info.TrainedAt).Seconds()
	}

	writeJSON(w, http.StatusOK, health)
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ms.classifier.Info())
}

func (ms *ModelServer) handleFeatures(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, observation.Specs())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
