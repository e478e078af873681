package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/trialmatch/internal/domain/entities"
	"github.com/zatekoja/trialmatch/internal/infrastructure/observability"
)

// Warnings reported alongside a screening result.
const (
	WarningNoEntities   = "No medical terms were recognized in the patient description; add the diagnosis, age or sex to get matches"
	WarningEmptyCatalog = "The trial catalog is empty; load or refresh trials before screening"
	WarningNoMatches    = "No trials matched the patient description"
)

// ScreeningRequest is one patient screening.
type ScreeningRequest struct {
	PatientText        string  `json:"patient_text"`
	Location           string  `json:"location,omitempty"`
	MaxDistanceMiles   float64 `json:"max_distance_miles,omitempty"`
	MaxResults         int     `json:"max_results,omitempty"`
	IncludeEligibility bool    `json:"include_eligibility,omitempty"`
}

// ScreeningResult is the ranked, optionally geo-filtered outcome of a screening.
type ScreeningResult struct {
	ID               string                                    `json:"screening_id"`
	CreatedAt        time.Time                                 `json:"created_at"`
	Entities         entities.EntityBundle                     `json:"entities"`
	CandidateCount   int                                       `json:"candidate_count"`
	Matches          []entities.TrialMatch                     `json:"matches"`
	PatientLocation  *entities.Location                        `json:"patient_location,omitempty"`
	GeoFiltered      bool                                      `json:"geo_filtered"`
	MaxDistanceMiles float64                                   `json:"max_distance_miles,omitempty"`
	LocationStats    *entities.LocationStatistics              `json:"location_statistics,omitempty"`
	Suggestions      []entities.LocationSuggestion             `json:"alternative_locations,omitempty"`
	Eligibility      map[string]entities.EligibilityAssessment `json:"eligibility,omitempty"`
	Warnings         []string                                  `json:"warnings"`
}

// ScreeningConfig holds screening defaults.
type ScreeningConfig struct {
	MaxResults         int
	DefaultRadiusMiles float64
	MaxSuggestions     int
}

// ScreeningService runs the full pipeline: extraction, scoring, optional
// geographic filtering and optional per-trial eligibility assessment.
type ScreeningService struct {
	extractor *EntityExtractionService
	matcher   *TrialMatcher
	geo       *GeographicMatcher
	parser    *EligibilityParser
	evaluator *EligibilityEvaluator
	catalog   *TrialCatalogService
	config    ScreeningConfig
	metrics   *observability.Metrics
}

// NewScreeningService wires the screening pipeline.
func NewScreeningService(
	extractor *EntityExtractionService,
	matcher *TrialMatcher,
	geo *GeographicMatcher,
	parser *EligibilityParser,
	evaluator *EligibilityEvaluator,
	catalog *TrialCatalogService,
	config ScreeningConfig,
	metrics *observability.Metrics,
) *ScreeningService {
	if config.MaxResults <= 0 {
		config.MaxResults = 20
	}
	if config.DefaultRadiusMiles <= 0 {
		config.DefaultRadiusMiles = 100
	}
	if config.MaxSuggestions <= 0 {
		config.MaxSuggestions = 5
	}
	return &ScreeningService{
		extractor: extractor,
		matcher:   matcher,
		geo:       geo,
		parser:    parser,
		evaluator: evaluator,
		catalog:   catalog,
		config:    config,
		metrics:   metrics,
	}
}

// Screen never fails: empty input, unresolvable locations and collaborator
// outages all produce a smaller or unfiltered result with warnings.
func (s *ScreeningService) Screen(ctx context.Context, req ScreeningRequest) ScreeningResult {
	ctx, span := observability.StartSpan(ctx, "ScreeningService.Screen")
	defer span.End()

	result := ScreeningResult{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Matches:   []entities.TrialMatch{},
		Warnings:  []string{},
	}
	logger := observability.LoggerFromContext(ctx).With().Str("screening_id", result.ID).Logger()

	result.Entities = s.extractor.Extract(ctx, req.PatientText)
	if result.Entities.IsEmpty() {
		result.Warnings = append(result.Warnings, WarningNoEntities)
		observability.RecordScreening(ctx, s.metrics, 0, false)
		return result
	}

	trials := s.catalog.Snapshot()
	if len(trials) == 0 {
		result.Warnings = append(result.Warnings, WarningEmptyCatalog)
		observability.RecordScreening(ctx, s.metrics, 0, false)
		return result
	}

	matches := s.matcher.Match(result.Entities, trials)
	limit := s.config.MaxResults
	if req.MaxResults > 0 && req.MaxResults < limit {
		limit = req.MaxResults
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	result.CandidateCount = len(matches)
	result.Matches = matches

	if len(matches) == 0 {
		result.Warnings = append(result.Warnings, WarningNoMatches)
	}

	if req.Location != "" && len(matches) > 0 {
		radius := req.MaxDistanceMiles
		if radius <= 0 {
			radius = s.config.DefaultRadiusMiles
		}
		geo := s.geo.Filter(ctx, matches, req.Location, radius)
		result.Matches = geo.Matches
		result.PatientLocation = geo.PatientLocation
		result.GeoFiltered = geo.Applied
		if geo.Warning != "" {
			result.Warnings = append(result.Warnings, geo.Warning)
		}
		if geo.Applied {
			result.MaxDistanceMiles = radius
			stats := LocationStatistics(geo.Matches)
			result.LocationStats = &stats
			if len(geo.Matches) == 0 {
				candidates := make([]entities.Trial, len(matches))
				for i, m := range matches {
					candidates[i] = m.Trial
				}
				result.Suggestions = s.geo.SuggestAlternativeLocations(ctx, req.Location, candidates, s.config.MaxSuggestions)
			}
		}
	}

	if req.IncludeEligibility && len(result.Matches) > 0 {
		profile := ProfileFromBundle(result.Entities)
		result.Eligibility = make(map[string]entities.EligibilityAssessment, len(result.Matches))
		for _, m := range result.Matches {
			criteria := s.parser.Structure(s.parser.ParseTrial(m.Trial))
			result.Eligibility[m.Trial.NCTNumber] = s.evaluator.Evaluate(profile, criteria)
		}
	}

	observability.RecordScreening(ctx, s.metrics, len(result.Matches), result.GeoFiltered)
	logger.Info().
		Int("entities", result.Entities.All.Len()).
		Int("candidates", result.CandidateCount).
		Int("matches", len(result.Matches)).
		Bool("geo_filtered", result.GeoFiltered).
		Msg("screening completed")

	return result
}
