package entities

// TrialMatch is a trial annotated by the matcher and, optionally, the
// geographic filter.
type TrialMatch struct {
	Trial         Trial              `json:"trial"`
	Score         float64            `json:"confidence_score"`
	ConfidencePct float64            `json:"confidence_pct"`
	Breakdown     map[string]float64 `json:"score_breakdown"`
	Explanations  []string           `json:"explanations"`

	DistanceMiles   *float64 `json:"distance_miles,omitempty"`
	ClosestFacility string   `json:"closest_facility,omitempty"`
	ClosestLocation string   `json:"closest_location,omitempty"`
	TravelCategory  string   `json:"travel_category,omitempty"`
}

// TrialStatistics summarises a trial snapshot.
type TrialStatistics struct {
	TotalTrials          int `json:"total_trials"`
	RecruitingTrials     int `json:"recruiting_trials"`
	ActiveTrials         int `json:"active_trials"`
	CompletedTrials      int `json:"completed_trials"`
	Phase1Trials         int `json:"phase_1_trials"`
	Phase2Trials         int `json:"phase_2_trials"`
	Phase3Trials         int `json:"phase_3_trials"`
	InterventionalTrials int `json:"interventional_trials"`
	ObservationalTrials  int `json:"observational_trials"`
}
