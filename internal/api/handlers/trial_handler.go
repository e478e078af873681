package handlers

import (
	"net/http"

	"github.com/zatekoja/trialmatch/internal/application/services"
	"github.com/zatekoja/trialmatch/internal/domain/entities"
)

// TrialHandler serves the trial catalog.
type TrialHandler struct {
	catalog *services.TrialCatalogService
}

// NewTrialHandler creates a new trial handler.
func NewTrialHandler(catalog *services.TrialCatalogService) *TrialHandler {
	return &TrialHandler{catalog: catalog}
}

type statsResponse struct {
	Catalog   services.CatalogInfo        `json:"catalog"`
	Trials    entities.TrialStatistics    `json:"trials"`
	Locations entities.LocationStatistics `json:"locations"`
}

// GetTrial handles GET /api/trials/{id}
func (h *TrialHandler) GetTrial(w http.ResponseWriter, r *http.Request) {
	trial, err := h.catalog.Get(r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, trial)
}

// Stats handles GET /api/trials/stats
func (h *TrialHandler) Stats(w http.ResponseWriter, r *http.Request) {
	trials := h.catalog.Snapshot()
	asMatches := make([]entities.TrialMatch, len(trials))
	for i, t := range trials {
		asMatches[i] = entities.TrialMatch{Trial: t}
	}

	respondWithJSON(w, http.StatusOK, statsResponse{
		Catalog:   h.catalog.Info(),
		Trials:    services.TrialStatistics(trials),
		Locations: services.LocationStatistics(asMatches),
	})
}

// Refresh handles POST /api/trials/refresh
func (h *TrialHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	report, err := h.catalog.Refresh(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}
