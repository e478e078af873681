package handlers

import (
	"net/http"
	"strings"

	"github.com/zatekoja/trialmatch/internal/application/services"
	"github.com/zatekoja/trialmatch/internal/domain/entities"
)

// EligibilityHandler serves criteria parsing and patient assessment.
type EligibilityHandler struct {
	parser    *services.EligibilityParser
	evaluator *services.EligibilityEvaluator
	extractor *services.EntityExtractionService
	catalog   *services.TrialCatalogService
}

// NewEligibilityHandler creates a new eligibility handler.
func NewEligibilityHandler(
	parser *services.EligibilityParser,
	evaluator *services.EligibilityEvaluator,
	extractor *services.EntityExtractionService,
	catalog *services.TrialCatalogService,
) *EligibilityHandler {
	return &EligibilityHandler{
		parser:    parser,
		evaluator: evaluator,
		extractor: extractor,
		catalog:   catalog,
	}
}

type parseRequest struct {
	CriteriaText string `json:"criteria_text"`
}

type parseResponse struct {
	Inclusion  []entities.Criterion        `json:"inclusion"`
	Exclusion  []entities.Criterion        `json:"exclusion"`
	Structured entities.StructuredCriteria `json:"structured"`
	Count      int                         `json:"count"`
}

// evaluateRequest carries the patient either as free text, which is run
// through entity extraction, or as an explicit category profile. Explicit
// profile values win over extracted ones.
type evaluateRequest struct {
	CriteriaText string                  `json:"criteria_text"`
	PatientText  string                  `json:"patient_text"`
	Patient      entities.PatientProfile `json:"patient"`
}

type trialEligibilityResponse struct {
	TrialID    string                         `json:"trial_id"`
	Title      string                         `json:"title"`
	Criteria   entities.StructuredCriteria    `json:"criteria"`
	Assessment entities.EligibilityAssessment `json:"assessment"`
}

// Parse handles POST /api/eligibility/parse
func (h *EligibilityHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if strings.TrimSpace(req.CriteriaText) == "" {
		respondWithError(w, http.StatusBadRequest, "criteria_text is required")
		return
	}

	parsed := h.parser.Parse(req.CriteriaText)
	respondWithJSON(w, http.StatusOK, parseResponse{
		Inclusion:  nonNilCriteria(parsed.Inclusion),
		Exclusion:  nonNilCriteria(parsed.Exclusion),
		Structured: h.parser.Structure(parsed),
		Count:      len(parsed.Inclusion) + len(parsed.Exclusion),
	})
}

// Evaluate handles POST /api/eligibility/evaluate
func (h *EligibilityHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if strings.TrimSpace(req.CriteriaText) == "" {
		respondWithError(w, http.StatusBadRequest, "criteria_text is required")
		return
	}

	profile := h.profile(r, req)
	criteria := h.parser.StructureText(req.CriteriaText)
	respondWithJSON(w, http.StatusOK, h.evaluator.Evaluate(profile, criteria))
}

// EvaluateTrial handles POST /api/trials/{id}/eligibility
func (h *EligibilityHandler) EvaluateTrial(w http.ResponseWriter, r *http.Request) {
	trial, err := h.catalog.Get(r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	criteria := h.parser.Structure(h.parser.ParseTrial(trial))
	respondWithJSON(w, http.StatusOK, trialEligibilityResponse{
		TrialID:    trial.NCTNumber,
		Title:      trial.Title,
		Criteria:   criteria,
		Assessment: h.evaluator.Evaluate(h.profile(r, req), criteria),
	})
}

func (h *EligibilityHandler) profile(r *http.Request, req evaluateRequest) entities.PatientProfile {
	profile := entities.PatientProfile{}
	if strings.TrimSpace(req.PatientText) != "" {
		profile = services.ProfileFromBundle(h.extractor.Extract(r.Context(), req.PatientText))
	}
	for category, value := range req.Patient {
		if strings.TrimSpace(value) != "" {
			profile[category] = value
		}
	}
	return profile
}

func nonNilCriteria(c []entities.Criterion) []entities.Criterion {
	if c == nil {
		return []entities.Criterion{}
	}
	return c
}
