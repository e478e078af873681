package entities

// CriterionType is the polarity of an eligibility criterion.
type CriterionType string

const (
	CriterionInclusion CriterionType = "inclusion"
	CriterionExclusion CriterionType = "exclusion"
)

// CriterionCategory is the closed set of criterion categories.
type CriterionCategory string

const (
	CategoryAge         CriterionCategory = "age"
	CategoryWeight      CriterionCategory = "weight"
	CategoryGender      CriterionCategory = "gender"
	CategoryCondition   CriterionCategory = "condition"
	CategoryStage       CriterionCategory = "stage"
	CategoryBiomarker   CriterionCategory = "biomarker"
	CategoryMedication  CriterionCategory = "medication"
	CategoryLaboratory  CriterionCategory = "laboratory"
	CategoryLifestyle   CriterionCategory = "lifestyle"
	CategoryComorbidity CriterionCategory = "comorbidity"
	CategoryOther       CriterionCategory = "other"
)

// CriterionCategories lists every category in evaluation order.
var CriterionCategories = []CriterionCategory{
	CategoryAge,
	CategoryWeight,
	CategoryGender,
	CategoryCondition,
	CategoryStage,
	CategoryBiomarker,
	CategoryMedication,
	CategoryLaboratory,
	CategoryLifestyle,
	CategoryComorbidity,
	CategoryOther,
}

// IsKnown reports whether c belongs to the closed category set.
func (c CriterionCategory) IsKnown() bool {
	for _, known := range CriterionCategories {
		if c == known {
			return true
		}
	}
	return false
}

// IsNumeric reports whether criteria of this category compare numbers.
func (c CriterionCategory) IsNumeric() bool {
	return c == CategoryAge || c == CategoryWeight || c == CategoryLaboratory
}

// Operator is the comparison extracted from a criterion.
type Operator string

const (
	OperatorNone        Operator = ""
	OperatorGreaterThan Operator = ">"
	OperatorLessThan    Operator = "<"
	OperatorEqual       Operator = "="
	OperatorBetween     Operator = "between"
)

// Criterion is one structured eligibility statement.
type Criterion struct {
	Text       string            `json:"text"`
	Type       CriterionType     `json:"type"`
	Category   CriterionCategory `json:"category"`
	Value      string            `json:"value,omitempty"`
	Operator   Operator          `json:"operator,omitempty"`
	Confidence float64           `json:"confidence"`
}

// ParsedCriteria is the flat output of parsing criteria text.
type ParsedCriteria struct {
	Inclusion []Criterion `json:"inclusion"`
	Exclusion []Criterion `json:"exclusion"`
}

// CriterionSummary is a criterion as stored in StructuredCriteria.
type CriterionSummary struct {
	Text       string   `json:"text"`
	Value      string   `json:"value,omitempty"`
	Operator   Operator `json:"operator,omitempty"`
	Confidence float64  `json:"confidence"`
}

// StructuredCriteria groups criteria by polarity and then category.
type StructuredCriteria map[CriterionType]map[CriterionCategory][]CriterionSummary

// NewStructuredCriteria returns an empty grouping with every bucket present.
func NewStructuredCriteria() StructuredCriteria {
	sc := StructuredCriteria{}
	for _, t := range []CriterionType{CriterionInclusion, CriterionExclusion} {
		sc[t] = make(map[CriterionCategory][]CriterionSummary, len(CriterionCategories))
		for _, c := range CriterionCategories {
			sc[t][c] = []CriterionSummary{}
		}
	}
	return sc
}

// Count returns the number of criteria of the given polarity.
func (sc StructuredCriteria) Count(t CriterionType) int {
	n := 0
	for _, list := range sc[t] {
		n += len(list)
	}
	return n
}
