package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/trialmatch/internal/application/services"
	"github.com/zatekoja/trialmatch/internal/domain/entities"
)

const patientText = "female, 45 years old, breast cancer, HER2 positive, non-smoker"

type testServices struct {
	catalog   *services.TrialCatalogService
	extractor *services.EntityExtractionService
	geo       *services.GeographicMatcher
	parser    *services.EligibilityParser
	evaluator *services.EligibilityEvaluator
	screening *services.ScreeningService
}

func newTestServices() testServices {
	catalog := services.NewTrialCatalogService(nil, 0, nil)
	catalog.Replace([]entities.Trial{
		{
			NCTNumber:         "NCT00000001",
			Title:             "HER2 Breast Study",
			Status:            entities.StatusRecruiting,
			Conditions:        "Breast Cancer",
			Sex:               "FEMALE",
			Age:               "18 - 75",
			Phases:            "PHASE2",
			StudyType:         "INTERVENTIONAL",
			Locations:         "Dana-Farber Cancer Institute, Boston, MA",
			InclusionCriteria: "Age ≥ 18 years",
			ExclusionCriteria: "Prior chemotherapy",
		},
		{
			NCTNumber:  "NCT00000002",
			Title:      "Lung Study",
			Status:     entities.StatusCompleted,
			Conditions: "Lung Cancer",
			Sex:        "MALE",
			Age:        "18 - 75",
			Phases:     "PHASE3",
			StudyType:  "INTERVENTIONAL",
			Locations:  "UCLA Medical Center, Los Angeles, CA",
		},
	}, "test")

	s := testServices{
		catalog:   catalog,
		extractor: services.NewEntityExtractionService(nil, 0, nil),
		geo:       services.NewGeographicMatcher(nil, 0, nil),
		parser:    services.NewEligibilityParser(),
		evaluator: services.NewEligibilityEvaluator(services.DefaultEvaluatorConfig()),
	}
	s.screening = services.NewScreeningService(
		s.extractor,
		services.NewTrialMatcher(services.DefaultMatcherConfig()),
		s.geo,
		s.parser,
		s.evaluator,
		catalog,
		services.ScreeningConfig{},
		nil,
	)
	return s
}

func post(handler http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func serve(pattern string, handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, handler)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestScreeningHandler_Screen(t *testing.T) {
	s := newTestServices()
	h := NewScreeningHandler(s.screening, s.extractor)

	rec := post(h.Screen, "/api/screen", `{"patient_text":"`+patientText+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result services.ScreeningResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotEmpty(t, result.Matches)
	assert.Equal(t, "NCT00000001", result.Matches[0].Trial.NCTNumber)
	assert.NotEmpty(t, result.ID)
	assert.False(t, result.GeoFiltered)
}

func TestScreeningHandler_ScreenWithLocation(t *testing.T) {
	s := newTestServices()
	h := NewScreeningHandler(s.screening, s.extractor)

	rec := post(h.Screen, "/api/screen", `{"patient_text":"`+patientText+`","location":"Boston, MA","max_distance_miles":50}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result services.ScreeningResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.GeoFiltered)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "NCT00000001", result.Matches[0].Trial.NCTNumber)
	assert.Equal(t, entities.TravelLocal, result.Matches[0].TravelCategory)
}

func TestScreeningHandler_RejectsBadInput(t *testing.T) {
	s := newTestServices()
	h := NewScreeningHandler(s.screening, s.extractor)

	assert.Equal(t, http.StatusBadRequest, post(h.Screen, "/api/screen", `{"patient_text":`).Code)
	assert.Equal(t, http.StatusBadRequest, post(h.Screen, "/api/screen", `{"patient_text":"x","max_results":-1}`).Code)

	long := strings.Repeat("a", maxPatientTextLength+1)
	assert.Equal(t, http.StatusRequestEntityTooLarge, post(h.Screen, "/api/screen", `{"patient_text":"`+long+`"}`).Code)
}

func TestScreeningHandler_Export(t *testing.T) {
	s := newTestServices()
	h := NewScreeningHandler(s.screening, s.extractor)

	rec := post(h.Export, "/api/screen/export", `{"patient_text":"`+patientText+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment;")

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(records), 2)
	assert.Equal(t, entities.ColumnNCTNumber, records[0][0])
	assert.Equal(t, "NCT00000001", records[1][0])
}

func TestScreeningHandler_ExtractEntities(t *testing.T) {
	s := newTestServices()
	h := NewScreeningHandler(s.screening, s.extractor)

	rec := post(h.ExtractEntities, "/api/entities", `{"text":"`+patientText+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var bundle map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.ElementsMatch(t, []string{"breast", "cancer", "her2 positive"}, bundle["conditions"])
}

func TestEligibilityHandler_Parse(t *testing.T) {
	s := newTestServices()
	h := NewEligibilityHandler(s.parser, s.evaluator, s.extractor, s.catalog)

	rec := post(h.Parse, "/api/eligibility/parse", `{"criteria_text":"Age ≥ 18 years. Prior chemotherapy excluded."}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp parseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Inclusion, 1)
	assert.Equal(t, entities.CategoryAge, resp.Inclusion[0].Category)
	assert.Len(t, resp.Structured[entities.CriterionExclusion][entities.CategoryMedication], 1)

	assert.Equal(t, http.StatusBadRequest, post(h.Parse, "/api/eligibility/parse", `{"criteria_text":"  "}`).Code)
}

func TestEligibilityHandler_EvaluateWithExplicitProfile(t *testing.T) {
	s := newTestServices()
	h := NewEligibilityHandler(s.parser, s.evaluator, s.extractor, s.catalog)

	rec := post(h.Evaluate, "/api/eligibility/evaluate",
		`{"criteria_text":"Age ≥ 18 years. Prior chemotherapy excluded.","patient":{"age":"45","medication":"chemotherapy"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var assessment entities.EligibilityAssessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assessment))
	assert.InDelta(t, -1.0, assessment.OverallScore, 1e-9)
	assert.Len(t, assessment.InclusionMatches, 1)
	assert.Len(t, assessment.ExclusionMatches, 1)
}

func TestEligibilityHandler_EvaluateTrial(t *testing.T) {
	s := newTestServices()
	h := NewEligibilityHandler(s.parser, s.evaluator, s.extractor, s.catalog)

	req := httptest.NewRequest(http.MethodPost, "/api/trials/nct00000001/eligibility", strings.NewReader(`{"patient":{"age":"45"}}`))
	rec := serve("POST /api/trials/{id}/eligibility", h.EvaluateTrial, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp trialEligibilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NCT00000001", resp.TrialID)
	assert.Len(t, resp.Assessment.InclusionMatches, 1)

	req = httptest.NewRequest(http.MethodPost, "/api/trials/NCT09999999/eligibility", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusNotFound, serve("POST /api/trials/{id}/eligibility", h.EvaluateTrial, req).Code)
}

func TestTrialHandler_GetTrial(t *testing.T) {
	h := NewTrialHandler(newTestServices().catalog)

	rec := serve("GET /api/trials/{id}", h.GetTrial, httptest.NewRequest(http.MethodGet, "/api/trials/NCT00000002", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var trial entities.Trial
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trial))
	assert.Equal(t, "Lung Study", trial.Title)

	rec = serve("GET /api/trials/{id}", h.GetTrial, httptest.NewRequest(http.MethodGet, "/api/trials/NCT404", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrialHandler_Stats(t *testing.T) {
	h := NewTrialHandler(newTestServices().catalog)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/trials/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Catalog.Trials)
	assert.Equal(t, 2, resp.Trials.TotalTrials)
	assert.Equal(t, 1, resp.Trials.RecruitingTrials)
	assert.Equal(t, 2, resp.Locations.TrialsWithLocations)
}

func TestTrialHandler_RefreshWithoutSource(t *testing.T) {
	h := NewTrialHandler(newTestServices().catalog)

	rec := post(h.Refresh, "/api/trials/refresh", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGeocodeHandler(t *testing.T) {
	h := NewGeocodeHandler(newTestServices().geo)

	rec := httptest.NewRecorder()
	h.Geocode(rec, httptest.NewRequest(http.MethodGet, "/api/geocode?address=Boston,+MA", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var loc entities.Location
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loc))
	assert.Equal(t, "Boston", loc.City)
	assert.Equal(t, "MA", loc.State)
	assert.InDelta(t, 42.3601, loc.Latitude, 1e-4)

	rec = httptest.NewRecorder()
	h.Geocode(rec, httptest.NewRequest(http.MethodGet, "/api/geocode?address=Atlantis", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	h.Geocode(rec, httptest.NewRequest(http.MethodGet, "/api/geocode", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	s := newTestServices()
	h := NewHealthHandler(s.catalog)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	empty := NewHealthHandler(services.NewTrialCatalogService(nil, 0, nil))
	rec = httptest.NewRecorder()
	empty.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}
