package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/zatekoja/trialmatch/internal/adapters/trialtable"
	"github.com/zatekoja/trialmatch/internal/application/services"
	"github.com/zatekoja/trialmatch/internal/infrastructure/observability"
)

// maxPatientTextLength bounds the free-text description accepted per screening.
const maxPatientTextLength = 10000

// ScreeningHandler serves patient screening and entity extraction.
type ScreeningHandler struct {
	screening *services.ScreeningService
	extractor *services.EntityExtractionService
}

// NewScreeningHandler creates a new screening handler.
func NewScreeningHandler(screening *services.ScreeningService, extractor *services.EntityExtractionService) *ScreeningHandler {
	return &ScreeningHandler{screening: screening, extractor: extractor}
}

type textRequest struct {
	Text string `json:"text"`
}

func (h *ScreeningHandler) decodeScreening(w http.ResponseWriter, r *http.Request) (services.ScreeningRequest, bool) {
	var req services.ScreeningRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return req, false
	}
	if len(req.PatientText) > maxPatientTextLength {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("patient_text exceeds %d characters", maxPatientTextLength))
		return req, false
	}
	if req.MaxDistanceMiles < 0 || req.MaxResults < 0 {
		respondWithError(w, http.StatusBadRequest, "max_distance_miles and max_results must not be negative")
		return req, false
	}
	req.Location = strings.TrimSpace(req.Location)
	return req, true
}

// Screen handles POST /api/screen
func (h *ScreeningHandler) Screen(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeScreening(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, h.screening.Screen(r.Context(), req))
}

// Export handles POST /api/screen/export and returns the matches as CSV.
func (h *ScreeningHandler) Export(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeScreening(w, r)
	if !ok {
		return
	}
	result := h.screening.Screen(r.Context(), req)

	var buf bytes.Buffer
	if err := trialtable.WriteMatches(&buf, result.Matches); err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("failed to render match export")
		respondWithError(w, http.StatusInternalServerError, "failed to export matches")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="trial_matches_%s.csv"`, result.ID))
	w.Header().Set("X-Screening-ID", result.ID)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ExtractEntities handles POST /api/entities
func (h *ScreeningHandler) ExtractEntities(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if len(req.Text) > maxPatientTextLength {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("text exceeds %d characters", maxPatientTextLength))
		return
	}
	respondWithJSON(w, http.StatusOK, h.extractor.Extract(r.Context(), req.Text))
}
