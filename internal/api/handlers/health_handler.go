package handlers

import (
	"net/http"

	"github.com/zatekoja/trialmatch/internal/application/services"
)

// HealthHandler reports liveness and the size of the trial catalog.
type HealthHandler struct {
	catalog *services.TrialCatalogService
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(catalog *services.TrialCatalogService) *HealthHandler {
	return &HealthHandler{catalog: catalog}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	info := h.catalog.Info()
	status := "ok"
	if info.Trials == 0 {
		status = "degraded"
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":  status,
		"catalog": info,
	})
}
