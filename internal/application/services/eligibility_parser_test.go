package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/trialmatch/internal/domain/entities"
)

const sampleCriteria = `
    Inclusion Criteria:
    - Age ≥ 18 years
    - Histologically confirmed breast cancer
    - HER2 positive status
    - ECOG performance status ≤ 2
    - Adequate organ function (hemoglobin ≥ 10 g/dL)

    Exclusion Criteria:
    - Prior chemotherapy for metastatic disease
    - Pregnant or breastfeeding
    - Active infection
    - Known HIV infection
`

func TestEligibilityParser_AgeAndPriorChemotherapy(t *testing.T) {
	parsed := NewEligibilityParser().Parse("Age ≥ 18 years. Prior chemotherapy excluded.")

	require.Len(t, parsed.Inclusion, 1)
	require.Len(t, parsed.Exclusion, 1)

	age := parsed.Inclusion[0]
	assert.Equal(t, "age ≥ 18 years", age.Text)
	assert.Equal(t, entities.CriterionInclusion, age.Type)
	assert.Equal(t, entities.CategoryAge, age.Category)
	assert.Equal(t, "18", age.Value)
	assert.Equal(t, entities.OperatorGreaterThan, age.Operator)
	assert.InDelta(t, 0.7, age.Confidence, 1e-9)

	chemo := parsed.Exclusion[0]
	assert.Equal(t, entities.CriterionExclusion, chemo.Type)
	assert.Equal(t, entities.CategoryMedication, chemo.Category)
	assert.Equal(t, "chemotherapy", chemo.Value)
	assert.InDelta(t, 0.8, chemo.Confidence, 1e-9)
}

func TestEligibilityParser_SectionedCriteria(t *testing.T) {
	parsed := NewEligibilityParser().Parse(sampleCriteria)

	inclusion := map[entities.CriterionCategory]entities.Criterion{}
	for _, c := range parsed.Inclusion {
		inclusion[c.Category] = c
	}
	require.Len(t, parsed.Inclusion, 5)
	assert.Equal(t, "breast", inclusion[entities.CategoryCondition].Value)
	assert.InDelta(t, 0.9, inclusion[entities.CategoryCondition].Confidence, 1e-9)
	assert.Equal(t, "her2", inclusion[entities.CategoryBiomarker].Value)
	assert.Equal(t, "hemoglobin 10", inclusion[entities.CategoryLaboratory].Value)
	assert.Equal(t, entities.OperatorGreaterThan, inclusion[entities.CategoryLaboratory].Operator)

	// "active infection" matches no pattern and is dropped.
	require.Len(t, parsed.Exclusion, 3)
	categories := []entities.CriterionCategory{}
	for _, c := range parsed.Exclusion {
		assert.Equal(t, entities.CriterionExclusion, c.Type)
		categories = append(categories, c.Category)
	}
	assert.Equal(t, []entities.CriterionCategory{
		entities.CategoryMedication,
		entities.CategoryLifestyle,
		entities.CategoryComorbidity,
	}, categories)
}

func TestEligibilityParser_PolarityVote(t *testing.T) {
	p := NewEligibilityParser()

	tests := []struct {
		fragment string
		want     entities.CriterionType
	}{
		{"patients must have no prior chemotherapy", entities.CriterionInclusion}, // tie favors inclusion
		{"patients without prior chemotherapy", entities.CriterionExclusion},
		{"radiotherapy is contraindicated", entities.CriterionExclusion},
		{"histologically confirmed lymphoma", entities.CriterionInclusion},
	}

	for _, tt := range tests {
		c, ok := p.ParseFragment(tt.fragment)
		require.True(t, ok, tt.fragment)
		assert.Equal(t, tt.want, c.Type, tt.fragment)
	}
}

func TestEligibilityParser_DropsLowSignalFragments(t *testing.T) {
	p := NewEligibilityParser()

	for _, fragment := range []string{"", "hiv", "active infection", "adequate organ function"} {
		_, ok := p.ParseFragment(fragment)
		assert.False(t, ok, fragment)
	}

	parsed := p.Parse("   ")
	assert.Empty(t, parsed.Inclusion)
	assert.Empty(t, parsed.Exclusion)
}

func TestEligibilityParser_KeepsDecimalsTogether(t *testing.T) {
	p := NewEligibilityParser()

	assert.Equal(t, []string{"hemoglobin ≥ 10.5 g/dl", "platelets ≥ 100"},
		p.Segment("Hemoglobin ≥ 10.5 g/dL; platelets ≥ 100"))

	parsed := p.Parse("Hemoglobin ≥ 10.5 g/dL; platelets ≥ 100")
	require.Len(t, parsed.Inclusion, 2)
	assert.Equal(t, "hemoglobin 10.5", parsed.Inclusion[0].Value)
	assert.Equal(t, "platelets 100", parsed.Inclusion[1].Value)
}

func TestEligibilityParser_SegmentsListMarkers(t *testing.T) {
	segments := NewEligibilityParser().Segment("1) Age 18-75 • HER-2 positive\n* Female")

	assert.Equal(t, []string{"age 18-75", "her-2 positive", "female"}, segments)
}

func TestEligibilityParser_SegmentsInlineLists(t *testing.T) {
	p := NewEligibilityParser()

	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "spaced dashes",
			text:     "Age ≥ 18 years - Hemoglobin ≥ 10 g/dL - Diabetes",
			expected: []string{"age ≥ 18 years", "hemoglobin ≥ 10 g/dl", "diabetes"},
		},
		{
			name:     "numbered items on one line",
			text:     "1) Age ≥ 18 years 2) Platelets ≥ 100 (3) No prior chemotherapy",
			expected: []string{"age ≥ 18 years", "platelets ≥ 100", "no prior chemotherapy"},
		},
		{
			name:     "numeric ranges stay whole",
			text:     "Age 18 - 65 years - HER-2 positive",
			expected: []string{"age 18 - 65 years", "her-2 positive"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.Segment(tt.text))
		})
	}
}

func TestEligibilityParser_InlineNumberedSection(t *testing.T) {
	parsed := NewEligibilityParser().Parse(
		"Inclusion Criteria: 1) Age ≥ 18 years 2) Hemoglobin ≥ 10 g/dL 3) ECOG performance status ≤ 2")

	require.Len(t, parsed.Inclusion, 3)
	assert.Empty(t, parsed.Exclusion)

	assert.Equal(t, entities.CategoryAge, parsed.Inclusion[0].Category)
	assert.Equal(t, "age ≥ 18 years", parsed.Inclusion[0].Text)
	assert.Equal(t, entities.CategoryLaboratory, parsed.Inclusion[1].Category)
	assert.Equal(t, "hemoglobin ≥ 10 g/dl", parsed.Inclusion[1].Text)
	assert.Equal(t, entities.CategoryLaboratory, parsed.Inclusion[2].Category)
	for _, c := range parsed.Inclusion {
		assert.NotRegexp(t, `^\(?\d`, c.Text)
	}
}

func TestEligibilityParser_ValuesAndOperators(t *testing.T) {
	p := NewEligibilityParser()

	tests := []struct {
		fragment string
		category entities.CriterionCategory
		value    string
		op       entities.Operator
	}{
		{"age 18-75 at enrollment", entities.CategoryAge, "18-75", entities.OperatorBetween},
		{"aged between 18 and 65 years", entities.CategoryAge, "18-65", entities.OperatorBetween},
		{"weight ≤ 150 kg", entities.CategoryWeight, "150 kg", entities.OperatorLessThan},
		{"male or female patients", entities.CategoryGender, "male", entities.OperatorNone},
		{"disease classified t2n1m0", entities.CategoryStage, "t2n1m0", entities.OperatorNone},
	}

	for _, tt := range tests {
		c, ok := p.ParseFragment(tt.fragment)
		require.True(t, ok, tt.fragment)
		assert.Equal(t, tt.category, c.Category, tt.fragment)
		assert.Equal(t, tt.value, c.Value, tt.fragment)
		assert.Equal(t, tt.op, c.Operator, tt.fragment)
	}
}

func TestEligibilityParser_Structure(t *testing.T) {
	p := NewEligibilityParser()
	structured := p.StructureText("Age ≥ 18 years. Prior chemotherapy excluded.")

	assert.Len(t, structured[entities.CriterionInclusion], len(entities.CriterionCategories))
	assert.Len(t, structured[entities.CriterionExclusion], len(entities.CriterionCategories))
	require.Len(t, structured[entities.CriterionInclusion][entities.CategoryAge], 1)
	require.Len(t, structured[entities.CriterionExclusion][entities.CategoryMedication], 1)
	assert.Equal(t, 1, structured.Count(entities.CriterionInclusion))
	assert.Equal(t, 1, structured.Count(entities.CriterionExclusion))

	other := p.Structure(entities.ParsedCriteria{
		Inclusion: []entities.Criterion{{Text: "something", Category: "genomics", Confidence: 0.7}},
	})
	assert.Len(t, other[entities.CriterionInclusion][entities.CategoryOther], 1)
}

func TestEligibilityParser_ParseTrialForcesExclusionColumn(t *testing.T) {
	trial := entities.Trial{
		InclusionCriteria: "Age ≥ 18 years",
		ExclusionCriteria: "Histologically confirmed breast cancer",
	}

	parsed := NewEligibilityParser().ParseTrial(trial)

	require.Len(t, parsed.Inclusion, 1)
	require.Len(t, parsed.Exclusion, 1)
	assert.Equal(t, entities.CategoryCondition, parsed.Exclusion[0].Category)
	assert.Equal(t, entities.CriterionExclusion, parsed.Exclusion[0].Type)
}
