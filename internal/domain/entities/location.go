package entities

// Travel categories and their upper bounds in miles.
const (
	TravelLocal         = "local"
	TravelRegional      = "regional"
	TravelNational      = "national"
	TravelInternational = "international"

	LocalMaxMiles    = 25.0
	RegionalMaxMiles = 100.0
	NationalMaxMiles = 500.0
)

// TravelCategory buckets a distance in miles.
func TravelCategory(miles float64) string {
	switch {
	case miles <= LocalMaxMiles:
		return TravelLocal
	case miles <= RegionalMaxMiles:
		return TravelRegional
	case miles <= NationalMaxMiles:
		return TravelNational
	default:
		return TravelInternational
	}
}

// Location is a resolved place. Locations are compared by coordinates.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Country   string  `json:"country"`
	ZipCode   string  `json:"zip_code,omitempty"`
}

// SameCoordinates reports whether two locations share coordinates.
func (l Location) SameCoordinates(other Location) bool {
	return l.Latitude == other.Latitude && l.Longitude == other.Longitude
}

// TrialLocation is one facility of a trial.
type TrialLocation struct {
	FacilityName string   `json:"facility_name"`
	Location     Location `json:"location"`
	SiteStatus   string   `json:"site_status"`
}

// LocationSuggestion is a trial-dense place worth travelling to.
type LocationSuggestion struct {
	Location       string  `json:"location"`
	TrialCount     int     `json:"trial_count"`
	DistanceMiles  float64 `json:"distance_miles"`
	TravelCategory string  `json:"travel_category"`
}

// LocationStatistics summarises where a set of trials run.
type LocationStatistics struct {
	TotalTrials         int            `json:"total_trials"`
	TrialsWithLocations int            `json:"trials_with_locations"`
	UniqueCities        int            `json:"unique_cities_count"`
	UniqueStates        int            `json:"unique_states_count"`
	UniqueCountries     int            `json:"unique_countries_count"`
	DistanceCategories  map[string]int `json:"distance_categories"`
}
