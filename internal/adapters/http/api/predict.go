package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/clinic/internal/domain/features"
	"github.com/okian/clinic/pkg/logger"
	"github.com/okian/clinic/pkg/metrics"
)

// PredictDependencies scores a validated feature vector.
type PredictDependencies interface {
	Predict(ctx context.Context, v features.Vector) (float64, error)
}

// PredictHandler handles prediction requests.
type PredictHandler struct {
	deps         PredictDependencies
	maxBodyBytes int64
	logger       logger.Logger
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps PredictDependencies, maxBodyBytes int64, l logger.Logger) *PredictHandler {
	return &PredictHandler{deps: deps, maxBodyBytes: maxBodyBytes, logger: l}
}

// HandlePredict handles POST /predict. Validation finishes before the model is called.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	v, details := decodeFeatures(body)
	if len(details) > 0 {
		for _, d := range details {
			metrics.RecordValidationError(d.field(), d.Type)
		}
		h.logger.Debug(ctx, "rejected prediction request",
			logger.String("request_id", RequestIDFromContext(ctx)),
			logger.Int("errors", len(details)))
		writeValidationError(w, details)
		return
	}

	prediction, err := h.deps.Predict(ctx, v)
	if err != nil {
		h.logger.Warn(ctx, "prediction failed",
			logger.String("request_id", RequestIDFromContext(ctx)),
			logger.Error(err))
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, predictResponse{Prediction: prediction})
}
