package evaluation

import "time"

// Focus names the patient attribute a golden case is designed to exercise.
type Focus string

const (
	FocusCondition   Focus = "condition"   // e.g., "breast cancer", "nsclc"
	FocusDemographic Focus = "demographic" // e.g., sex or age window decides the ranking
	FocusBiomarker   Focus = "biomarker"   // e.g., "HER2 positive", "EGFR mutation"
	FocusGeographic  Focus = "geographic"  // distance filtering decides the result
)

// ValidFoci returns all valid focus values.
func ValidFoci() []Focus {
	return []Focus{FocusCondition, FocusDemographic, FocusBiomarker, FocusGeographic}
}

// IsValid checks if the focus value is one of the defined constants.
func (f Focus) IsValid() bool {
	switch f {
	case FocusCondition, FocusDemographic, FocusBiomarker, FocusGeographic:
		return true
	}
	return false
}

// GoldenCase is a labeled patient description with the trials a reviewer
// expects near the top of the ranking.
type GoldenCase struct {
	ID               string   `json:"id"`
	PatientText      string   `json:"patient_text"`
	Location         string   `json:"location,omitempty"`
	MaxDistanceMiles float64  `json:"max_distance_miles,omitempty"`
	Focus            Focus    `json:"focus"`
	ExpectedTrials   []string `json:"expected_trials"`
	ExcludedTrials   []string `json:"excluded_trials,omitempty"`
	Difficulty       string   `json:"difficulty"` // easy, medium, hard
}

// EvalResult holds the evaluation outcome for a single case.
type EvalResult struct {
	CaseID       string        `json:"case_id"`
	Focus        Focus         `json:"focus"`
	RecallAt10   float64       `json:"recall_at_10"`
	MRRAt10      float64       `json:"mrr_at_10"`
	ExcludedHits int           `json:"excluded_hits"`
	MatchCount   int           `json:"match_count"`
	RetrievedIDs []string      `json:"retrieved_ids"`
	Warnings     []string      `json:"warnings,omitempty"`
	Latency      time.Duration `json:"latency"`
}

// EvalSummary holds aggregate metrics across all golden cases.
type EvalSummary struct {
	TotalCases    int                     `json:"total_cases"`
	AvgRecallAt10 float64                 `json:"avg_recall_at_10"`
	AvgMRRAt10    float64                 `json:"avg_mrr_at_10"`
	AvgLatency    time.Duration           `json:"avg_latency"`
	CasesWithHits int                     `json:"cases_with_hits"` // cases that returned at least 1 match
	ExcludedHits  int                     `json:"excluded_hits"`
	ByFocus       map[Focus]*FocusSummary `json:"by_focus"`
	Results       []EvalResult            `json:"results"`
}

// FocusSummary holds metrics grouped by focus.
type FocusSummary struct {
	Count         int     `json:"count"`
	AvgRecallAt10 float64 `json:"avg_recall_at_10"`
	AvgMRRAt10    float64 `json:"avg_mrr_at_10"`
}
