package entities

// Trial table column names, as they appear in the CSV header.
const (
	ColumnNCTNumber         = "NCT Number"
	ColumnTitle             = "Study Title"
	ColumnURL               = "Study URL"
	ColumnStatus            = "Study Status"
	ColumnBriefSummary      = "Brief Summary"
	ColumnConditions        = "Conditions"
	ColumnInterventions     = "Interventions"
	ColumnSex               = "Sex"
	ColumnAge               = "Age"
	ColumnPhases            = "Phases"
	ColumnStudyType         = "Study Type"
	ColumnLocations         = "Locations"
	ColumnInclusionCriteria = "Inclusion Criteria"
	ColumnExclusionCriteria = "Exclusion Criteria"
)

// TrialColumns lists the trial table columns in export order.
var TrialColumns = []string{
	ColumnNCTNumber,
	ColumnTitle,
	ColumnURL,
	ColumnStatus,
	ColumnBriefSummary,
	ColumnConditions,
	ColumnInterventions,
	ColumnSex,
	ColumnAge,
	ColumnPhases,
	ColumnStudyType,
	ColumnLocations,
	ColumnInclusionCriteria,
	ColumnExclusionCriteria,
}

// Study status values used by the registry.
const (
	StatusRecruiting          = "RECRUITING"
	StatusActiveNotRecruiting = "ACTIVE_NOT_RECRUITING"
	StatusCompleted           = "COMPLETED"
)

// Trial is one row of the trial table. Trials are values: the matcher
// annotates copies and never writes back to the loaded snapshot.
type Trial struct {
	NCTNumber         string `json:"nct_number"`
	Title             string `json:"title"`
	URL               string `json:"url"`
	Status            string `json:"status"`
	BriefSummary      string `json:"brief_summary,omitempty"`
	Conditions        string `json:"conditions"`
	Interventions     string `json:"interventions,omitempty"`
	Sex               string `json:"sex"`
	Age               string `json:"age"`
	Phases            string `json:"phases"`
	StudyType         string `json:"study_type"`
	Locations         string `json:"locations"`
	InclusionCriteria string `json:"inclusion_criteria,omitempty"`
	ExclusionCriteria string `json:"exclusion_criteria,omitempty"`
}

// Field returns the value of a trial table column; unknown columns are empty.
func (t Trial) Field(column string) string {
	switch column {
	case ColumnNCTNumber:
		return t.NCTNumber
	case ColumnTitle:
		return t.Title
	case ColumnURL:
		return t.URL
	case ColumnStatus:
		return t.Status
	case ColumnBriefSummary:
		return t.BriefSummary
	case ColumnConditions:
		return t.Conditions
	case ColumnInterventions:
		return t.Interventions
	case ColumnSex:
		return t.Sex
	case ColumnAge:
		return t.Age
	case ColumnPhases:
		return t.Phases
	case ColumnStudyType:
		return t.StudyType
	case ColumnLocations:
		return t.Locations
	case ColumnInclusionCriteria:
		return t.InclusionCriteria
	case ColumnExclusionCriteria:
		return t.ExclusionCriteria
	}
	return ""
}

// SetField assigns a trial table column; unknown columns are ignored.
func (t *Trial) SetField(column, value string) {
	switch column {
	case ColumnNCTNumber:
		t.NCTNumber = value
	case ColumnTitle:
		t.Title = value
	case ColumnURL:
		t.URL = value
	case ColumnStatus:
		t.Status = value
	case ColumnBriefSummary:
		t.BriefSummary = value
	case ColumnConditions:
		t.Conditions = value
	case ColumnInterventions:
		t.Interventions = value
	case ColumnSex:
		t.Sex = value
	case ColumnAge:
		t.Age = value
	case ColumnPhases:
		t.Phases = value
	case ColumnStudyType:
		t.StudyType = value
	case ColumnLocations:
		t.Locations = value
	case ColumnInclusionCriteria:
		t.InclusionCriteria = value
	case ColumnExclusionCriteria:
		t.ExclusionCriteria = value
	}
}

// Row renders the trial in TrialColumns order.
func (t Trial) Row() []string {
	row := make([]string, len(TrialColumns))
	for i, col := range TrialColumns {
		row[i] = t.Field(col)
	}
	return row
}
