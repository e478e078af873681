package entities

// CriterionOutcome records how one criterion fared against a patient.
type CriterionOutcome struct {
	Category  CriterionCategory `json:"category"`
	Criterion CriterionSummary  `json:"criterion"`
	Score     float64           `json:"score"`
	Reason    string            `json:"reason,omitempty"`
}

// EligibilityAssessment is the result of evaluating a patient against
// structured criteria.
type EligibilityAssessment struct {
	OverallScore        float64            `json:"overall_score"`
	InclusionMatches    []CriterionOutcome `json:"inclusion_matches"`
	ExclusionMatches    []CriterionOutcome `json:"exclusion_matches"`
	InclusionViolations []CriterionOutcome `json:"inclusion_violations"`
	ExclusionNonMatches []CriterionOutcome `json:"exclusion_non_matches"`
	Explanation         []string           `json:"explanation"`
}

// PatientProfile holds free-text patient facts keyed by criterion category,
// e.g. {"age": "45", "gender": "female"}.
type PatientProfile map[CriterionCategory]string
