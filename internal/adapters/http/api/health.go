package api

import (
	"net/http"
)

// HealthDependencies exposes what /health reports.
type HealthDependencies interface {
	ModelVersion() string
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	deps HealthDependencies
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps HealthDependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// HandleHealth handles GET /health. It never touches the model.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", ModelVersion: h.deps.ModelVersion()})
}
