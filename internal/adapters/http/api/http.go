// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/clinic/pkg/logger"
	"github.com/okian/clinic/pkg/metrics"
)

// defaultMaxBodyBytes caps a /predict body.
const defaultMaxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	HealthDependencies
	PredictDependencies
}

// Server wires HTTP routes for the prediction API.
type Server struct {
	healthHandler  *HealthHandler
	predictHandler *PredictHandler

	strictServerErrors bool
	maxBodyBytes       int64
	logger             logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithStrictServerErrors answers recovered panics with 500 instead of 400.
func WithStrictServerErrors(enabled bool) Option {
	return func(s *Server) {
		s.strictServerErrors = enabled
	}
}

// WithMaxBodyBytes bounds the size of request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithLogger sets the logger used for recovered panics and failed requests.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{maxBodyBytes: defaultMaxBodyBytes}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("api")
	}
	s.healthHandler = NewHealthHandler(deps)
	s.predictHandler = NewPredictHandler(deps, s.maxBodyBytes, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.Handle("GET /health", s.wrap(s.healthHandler.HandleHealth, "health"))
	mux.Handle("POST /predict", s.wrap(s.predictHandler.HandlePredict, "predict"))
	mux.Handle("GET /metrics", RequestIDMiddleware(
		promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP))
}

// wrap applies the standard chain: request id, metrics, then panic recovery
// closest to the handler so the recovered status is what metrics see.
func (s *Server) wrap(h http.HandlerFunc, endpoint string) http.HandlerFunc {
	return RequestIDMiddleware(
		MetricsMiddleware(
			RecoverMiddleware(h, s.strictServerErrors, s.logger),
			endpoint))
}

type predictResponse struct {
	Prediction float64 `json:"prediction"`
}

type healthResponse struct {
	Status       string `json:"status"`
	ModelVersion string `json:"model_version"`
}

// errorResponse is the envelope of every failure: Detail is a string or a
// list of FieldError.
type errorResponse struct {
	Error  string `json:"error"`
	Detail any    `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: code, Detail: msg})
}

func writeValidationError(w http.ResponseWriter, details []FieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: codeValidation, Detail: details})
}
