package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/zatekoja/trialmatch/internal/domain/entities"
	"github.com/zatekoja/trialmatch/internal/domain/providers"
	"github.com/zatekoja/trialmatch/internal/infrastructure/observability"
	"github.com/zatekoja/trialmatch/pkg/utils"
)

// EarthRadiusMiles is the mean Earth radius used by Haversine.
const EarthRadiusMiles = 3959.0

const (
	// Suggestions only cover places with at least this many trials.
	minSuggestionTrials = 3
	// Suggestions farther than this are not worth the trip.
	maxSuggestionMiles = 500.0
)

// ErrLocationUnparseable is returned when a location cannot be split into
// parts or resolved to coordinates.
var ErrLocationUnparseable = errors.New("location unparseable")

type gazetteerEntry struct {
	State     string
	Latitude  float64
	Longitude float64
}

var (
	gazetteer = map[string]gazetteerEntry{
		"new york":     {"NY", 40.7128, -74.0060},
		"los angeles":  {"CA", 34.0522, -118.2437},
		"chicago":      {"IL", 41.8781, -87.6298},
		"houston":      {"TX", 29.7604, -95.3698},
		"phoenix":      {"AZ", 33.4484, -112.0740},
		"philadelphia": {"PA", 39.9526, -75.1652},
		"san antonio":  {"TX", 29.4241, -98.4936},
		"san diego":    {"CA", 32.7157, -117.1611},
		"dallas":       {"TX", 32.7767, -96.7970},
		"san jose":     {"CA", 37.3382, -121.8863},
		"austin":       {"TX", 30.2672, -97.7431},
		"jacksonville": {"FL", 30.3322, -81.6557},
		"fort worth":   {"TX", 32.7555, -97.3308},
		"columbus":     {"OH", 39.9612, -82.9988},
		"charlotte":    {"NC", 35.2271, -80.8431},
		"seattle":      {"WA", 47.6062, -122.3321},
		"denver":       {"CO", 39.7392, -104.9903},
		"boston":       {"MA", 42.3601, -71.0589},
		"detroit":      {"MI", 42.3314, -83.0458},
		"nashville":    {"TN", 36.1627, -86.7816},
	}

	stateAbbreviations = map[string]string{
		"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR", "california": "CA",
		"colorado": "CO", "connecticut": "CT", "delaware": "DE", "florida": "FL", "georgia": "GA",
		"hawaii": "HI", "idaho": "ID", "illinois": "IL", "indiana": "IN", "iowa": "IA",
		"kansas": "KS", "kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
		"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS", "missouri": "MO",
		"montana": "MT", "nebraska": "NE", "nevada": "NV", "new hampshire": "NH", "new jersey": "NJ",
		"new mexico": "NM", "new york": "NY", "north carolina": "NC", "north dakota": "ND", "ohio": "OH",
		"oklahoma": "OK", "oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
		"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT", "vermont": "VT",
		"virginia": "VA", "washington": "WA", "west virginia": "WV", "wisconsin": "WI", "wyoming": "WY",
	}

	locationParts     = regexp.MustCompile(`^([^,]+),\s*([^,]+)(?:,\s*([^,]+))?`)
	zipCodePattern    = regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`)
	facilitySeparator = regexp.MustCompile(`[;|]`)
)

// GeoFilterResult is the outcome of a proximity filter. When the patient
// location cannot be resolved, Matches is the unfiltered input and Warning
// says why.
type GeoFilterResult struct {
	Matches         []entities.TrialMatch `json:"matches"`
	PatientLocation *entities.Location    `json:"patient_location,omitempty"`
	Applied         bool                  `json:"applied"`
	Warning         string                `json:"warning,omitempty"`
}

// GeographicMatcher resolves places and filters trials by distance. The
// embedded gazetteer is always consulted first; geocoder may be nil.
type GeographicMatcher struct {
	geocoder providers.Geocoder
	timeout  time.Duration
	metrics  *observability.Metrics
}

// NewGeographicMatcher creates a matcher. A zero timeout defaults to five seconds.
func NewGeographicMatcher(geocoder providers.Geocoder, timeout time.Duration, metrics *observability.Metrics) *GeographicMatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GeographicMatcher{geocoder: geocoder, timeout: timeout, metrics: metrics}
}

// Distance returns the great-circle distance between two points in miles.
func Distance(a, b entities.Location) float64 {
	lat1, lon1 := toRadians(a.Latitude), toRadians(a.Longitude)
	lat2, lon2 := toRadians(b.Latitude), toRadians(b.Longitude)

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return EarthRadiusMiles * 2 * math.Asin(math.Min(1, math.Sqrt(h)))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// ResolveLocation turns "City, State[, Country]" (or a bare city) into a
// Location.
func (g *GeographicMatcher) ResolveLocation(ctx context.Context, text string) (entities.Location, error) {
	return g.newResolver().resolve(ctx, text)
}

// locationResolver memoises resolutions for the duration of one operation so
// each distinct unresolved place costs at most one geocoder request.
type locationResolver struct {
	matcher *GeographicMatcher
	seen    map[string]resolution
}

type resolution struct {
	location entities.Location
	err      error
}

func (g *GeographicMatcher) newResolver() *locationResolver {
	return &locationResolver{matcher: g, seen: map[string]resolution{}}
}

func (r *locationResolver) resolve(ctx context.Context, text string) (entities.Location, error) {
	key := strings.ToLower(strings.TrimSpace(text))
	if res, ok := r.seen[key]; ok {
		return res.location, res.err
	}
	loc, err := r.matcher.resolveOnce(ctx, key)
	r.seen[key] = resolution{location: loc, err: err}
	return loc, err
}

func (g *GeographicMatcher) resolveOnce(ctx context.Context, text string) (entities.Location, error) {
	if text == "" {
		return entities.Location{}, ErrLocationUnparseable
	}

	var city, state, country string
	if m := locationParts.FindStringSubmatch(text); m != nil {
		city, state, country = strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), strings.TrimSpace(m[3])
	} else {
		city = text
	}
	if abbr, ok := stateAbbreviations[state]; ok {
		state = abbr
	}
	state = strings.ToUpper(state)

	loc := entities.Location{
		City:    utils.TitleCase(city),
		State:   state,
		Country: utils.TitleCase(country),
		ZipCode: zipCodePattern.FindString(text),
	}
	loc.Address = joinNonEmpty(", ", loc.City, loc.State, loc.Country)

	if entry, ok := gazetteer[city]; ok {
		loc.Latitude, loc.Longitude = entry.Latitude, entry.Longitude
		if loc.State == "" {
			loc.State = entry.State
			loc.Address = joinNonEmpty(", ", loc.City, loc.State, loc.Country)
		}
		return loc, nil
	}

	if g.geocoder == nil {
		return entities.Location{}, fmt.Errorf("%w: %q is not in the gazetteer", ErrLocationUnparseable, text)
	}

	geoCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	coords, err := g.geocoder.Geocode(geoCtx, joinNonEmpty(", ", city, state, country))
	if err != nil || coords == nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("location", text).Msg("geocoding failed")
		observability.RecordFallback(ctx, g.metrics, "geocoder")
		return entities.Location{}, fmt.Errorf("%w: %q: %v", ErrLocationUnparseable, text, err)
	}

	loc.Latitude, loc.Longitude = coords.Latitude, coords.Longitude
	return loc, nil
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// TrialLocations parses a trial's Locations field. Entries are separated by
// ';' or '|' and read as "Facility, City, State[, Country]"; entries that
// cannot be resolved are skipped.
func (g *GeographicMatcher) TrialLocations(ctx context.Context, locations string) []entities.TrialLocation {
	return g.trialLocations(ctx, g.newResolver(), locations)
}

func (g *GeographicMatcher) trialLocations(ctx context.Context, r *locationResolver, locations string) []entities.TrialLocation {
	var out []entities.TrialLocation
	for _, entry := range facilitySeparator.Split(locations, -1) {
		parts := strings.Split(strings.TrimSpace(entry), ",")
		if len(parts) < 2 {
			continue
		}
		loc, err := r.resolve(ctx, strings.Join(parts[1:], ","))
		if err != nil {
			continue
		}
		out = append(out, entities.TrialLocation{
			FacilityName: strings.TrimSpace(parts[0]),
			Location:     loc,
			SiteStatus:   "active",
		})
	}
	return out
}

// Filter keeps matches with a facility within maxMiles of the patient,
// annotates them with the closest facility and re-sorts by distance. It
// never adds matches.
func (g *GeographicMatcher) Filter(ctx context.Context, matches []entities.TrialMatch, patientLocation string, maxMiles float64) GeoFilterResult {
	ctx, span := observability.StartSpan(ctx, "GeographicMatcher.Filter")
	defer span.End()

	r := g.newResolver()
	patient, err := r.resolve(ctx, patientLocation)
	if err != nil {
		return GeoFilterResult{
			Matches: append([]entities.TrialMatch{}, matches...),
			Warning: fmt.Sprintf("Could not resolve location %q; showing results without distance filtering", patientLocation),
		}
	}

	kept := make([]entities.TrialMatch, 0, len(matches))
	for _, m := range matches {
		facilities := g.trialLocations(ctx, r, m.Trial.Locations)
		if len(facilities) == 0 {
			continue
		}

		closest := facilities[0]
		minDistance := Distance(patient, closest.Location)
		for _, f := range facilities[1:] {
			if d := Distance(patient, f.Location); d < minDistance {
				minDistance, closest = d, f
			}
		}
		if minDistance > maxMiles {
			continue
		}

		d := minDistance
		m.DistanceMiles = &d
		m.ClosestFacility = closest.FacilityName
		m.ClosestLocation = closest.Location.Address
		m.TravelCategory = entities.TravelCategory(minDistance)
		kept = append(kept, m)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return *kept[i].DistanceMiles < *kept[j].DistanceMiles
	})

	result := GeoFilterResult{Matches: kept, PatientLocation: &patient, Applied: true}
	if len(kept) == 0 && len(matches) > 0 {
		result.Warning = fmt.Sprintf("No matching trials within %g miles of %s", maxMiles, patient.Address)
	}
	return result
}

// SuggestAlternativeLocations lists up to limit trial-dense places within
// travelling distance, most trials first, then nearest first.
func (g *GeographicMatcher) SuggestAlternativeLocations(ctx context.Context, patientLocation string, trials []entities.Trial, limit int) []entities.LocationSuggestion {
	r := g.newResolver()
	patient, err := r.resolve(ctx, patientLocation)
	if err != nil {
		return []entities.LocationSuggestion{}
	}

	counts := map[string]int{}
	for _, t := range trials {
		seen := map[string]bool{}
		for _, entry := range facilitySeparator.Split(t.Locations, -1) {
			parts := strings.Split(strings.TrimSpace(entry), ",")
			if len(parts) < 3 {
				continue
			}
			place := utils.TitleCase(parts[1]) + ", " + strings.ToUpper(strings.TrimSpace(parts[2]))
			if !seen[place] {
				seen[place] = true
				counts[place]++
			}
		}
	}

	places := make([]string, 0, len(counts))
	for place := range counts {
		places = append(places, place)
	}
	sort.Strings(places)

	suggestions := []entities.LocationSuggestion{}
	for _, place := range places {
		if counts[place] < minSuggestionTrials {
			continue
		}
		loc, err := r.resolve(ctx, place)
		if err != nil {
			continue
		}
		distance := Distance(patient, loc)
		if distance > maxSuggestionMiles {
			continue
		}
		suggestions = append(suggestions, entities.LocationSuggestion{
			Location:       place,
			TrialCount:     counts[place],
			DistanceMiles:  math.Round(distance*10) / 10,
			TravelCategory: entities.TravelCategory(distance),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].TrialCount != suggestions[j].TrialCount {
			return suggestions[i].TrialCount > suggestions[j].TrialCount
		}
		return suggestions[i].DistanceMiles < suggestions[j].DistanceMiles
	})

	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}

// LocationStatistics summarises where the given matches run.
func LocationStatistics(matches []entities.TrialMatch) entities.LocationStatistics {
	stats := entities.LocationStatistics{
		TotalTrials: len(matches),
		DistanceCategories: map[string]int{
			entities.TravelLocal:         0,
			entities.TravelRegional:      0,
			entities.TravelNational:      0,
			entities.TravelInternational: 0,
		},
	}

	cities, states, countries := map[string]bool{}, map[string]bool{}, map[string]bool{}
	for _, m := range matches {
		if strings.TrimSpace(m.Trial.Locations) != "" {
			stats.TrialsWithLocations++
			for _, entry := range facilitySeparator.Split(m.Trial.Locations, -1) {
				parts := strings.Split(strings.TrimSpace(entry), ",")
				if len(parts) < 2 {
					continue
				}
				if city := utils.TitleCase(parts[1]); city != "" {
					cities[city] = true
				}
				if len(parts) > 2 {
					if state := strings.ToUpper(strings.TrimSpace(parts[2])); state != "" {
						states[state] = true
					}
				}
				if len(parts) > 3 {
					if country := utils.TitleCase(parts[3]); country != "" {
						countries[country] = true
					}
				}
			}
		}
		if _, ok := stats.DistanceCategories[m.TravelCategory]; ok {
			stats.DistanceCategories[m.TravelCategory]++
		}
	}

	stats.UniqueCities = len(cities)
	stats.UniqueStates = len(states)
	stats.UniqueCountries = len(countries)
	return stats
}
