package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/zatekoja/trialmatch/internal/application/services"
)

// GeocodeHandler exposes location resolution.
type GeocodeHandler struct {
	geo *services.GeographicMatcher
}

// NewGeocodeHandler creates a new geocode handler.
func NewGeocodeHandler(geo *services.GeographicMatcher) *GeocodeHandler {
	return &GeocodeHandler{geo: geo}
}

// Geocode handles GET /api/geocode?address=...
func (h *GeocodeHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		respondWithError(w, http.StatusBadRequest, "address parameter is required")
		return
	}

	loc, err := h.geo.ResolveLocation(r.Context(), address)
	if errors.Is(err, services.ErrLocationUnparseable) {
		respondWithError(w, http.StatusUnprocessableEntity, "could not resolve location "+address)
		return
	}
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, loc)
}
