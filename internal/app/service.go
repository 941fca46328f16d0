// Package service provides the prediction service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/clinic/internal/adapters/artifact"
	"github.com/okian/clinic/internal/config"
	"github.com/okian/clinic/internal/domain/features"
	"github.com/okian/clinic/pkg/logger"
	"github.com/okian/clinic/pkg/metrics"
)

// Predictor scores one feature row. *pipeline.Pipeline satisfies it.
type Predictor interface {
	Name() string
	PredictRow(row []float64) (float64, error)
}

// Service owns the loaded model. After Start it is read-only and safe for
// concurrent Predict calls.
type Service struct {
	mu sync.RWMutex

	modelPath    string
	modelVersion string
	model        Predictor

	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithModelPath sets the artifact loaded by Start.
func WithModelPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.modelPath = path
		}
	}
}

// WithModelVersion sets the version reported by /health.
func WithModelVersion(version string) Option {
	return func(s *Service) {
		if version != "" {
			s.modelVersion = version
		}
	}
}

// WithPredictor injects an already-built model; Start then skips the artifact.
func WithPredictor(p Predictor) Option {
	return func(s *Service) {
		if p != nil {
			s.model = p
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		modelPath:    config.DefaultModelPath,
		modelVersion: config.DefaultModelVersion,
		logger:       nil, // Will be replaced when service starts
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the artifact unless a predictor was injected. A failure here is
// a startup failure: the caller must not serve traffic.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.model == nil {
		s.logger.Info(ctx, "loading model", logger.String("path", s.modelPath))
		p, err := artifact.Load(s.modelPath)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrModelLoad, s.modelPath, err)
		}
		s.model = p
	}

	metrics.SetModelInfo(s.modelVersion, s.model.Name())
	s.started = true
	s.logger.Info(ctx, "prediction service started",
		logger.String("model_type", s.model.Name()),
		logger.String("model_version", s.modelVersion),
	)
	return nil
}

// Predict scores v. Errors wrap ErrInference or ErrNotStarted.
func (s *Service) Predict(ctx context.Context, v features.Vector) (float64, error) {
	s.mu.RLock()
	model, started := s.model, s.started
	s.mu.RUnlock()
	if !started {
		return 0, ErrNotStarted
	}

	begin := time.Now()
	out, err := model.PredictRow(v.Row())
	if err != nil {
		metrics.RecordInferenceError()
		s.logger.Warn(ctx, "inference failed", logger.Error(err))
		return 0, fmt.Errorf("%w: %w", ErrInference, err)
	}
	metrics.RecordPrediction(out, float64(time.Since(begin).Microseconds())/1000)
	return out, nil
}

// ModelVersion returns the configured model version.
func (s *Service) ModelVersion() string {
	return s.modelVersion
}

// ModelType returns the loaded model's type, or "" before Start.
func (s *Service) ModelType() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.model == nil {
		return ""
	}
	return s.model.Name()
}
