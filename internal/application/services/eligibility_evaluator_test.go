package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/trialmatch/internal/domain/entities"
)

func criteriaWith(t entities.CriterionType, category entities.CriterionCategory, summaries ...entities.CriterionSummary) entities.StructuredCriteria {
	sc := entities.NewStructuredCriteria()
	sc[t][category] = summaries
	return sc
}

func TestEligibilityEvaluator_AgeAndPriorChemotherapy(t *testing.T) {
	criteria := NewEligibilityParser().StructureText("Age ≥ 18 years. Prior chemotherapy excluded.")
	evaluator := NewEligibilityEvaluator(DefaultEvaluatorConfig())

	result := evaluator.Evaluate(entities.PatientProfile{
		entities.CategoryAge:        "45",
		entities.CategoryMedication: "chemotherapy",
	}, criteria)

	require.Len(t, result.InclusionMatches, 1)
	require.Len(t, result.ExclusionMatches, 1)
	assert.InDelta(t, -1.0, result.OverallScore, 1e-9)
	assert.Equal(t, []string{
		"Meets 1 inclusion criteria",
		"Meets 1 exclusion criteria",
		"Poor match - probably not eligible",
	}, result.Explanation)

	clean := evaluator.Evaluate(entities.PatientProfile{entities.CategoryAge: "45"}, criteria)
	assert.InDelta(t, 1.0, clean.OverallScore, 1e-9)
	require.Len(t, clean.ExclusionNonMatches, 1)
	assert.Equal(t, "Missing values", clean.ExclusionNonMatches[0].Reason)
	assert.Contains(t, clean.Explanation, "Partial match - may be eligible with review")
}

func TestEligibilityEvaluator_ExclusionCountsDouble(t *testing.T) {
	evaluator := NewEligibilityEvaluator(DefaultEvaluatorConfig())
	patient := entities.PatientProfile{entities.CategoryCondition: "breast"}
	criterion := entities.CriterionSummary{Text: "breast cancer", Value: "breast"}

	included := evaluator.Evaluate(patient, criteriaWith(entities.CriterionInclusion, entities.CategoryCondition, criterion))
	excluded := evaluator.Evaluate(patient, criteriaWith(entities.CriterionExclusion, entities.CategoryCondition, criterion))

	assert.InDelta(t, 1.0, included.OverallScore, 1e-9)
	assert.InDelta(t, -2.0, excluded.OverallScore, 1e-9)
	assert.Less(t, included.OverallScore+excluded.OverallScore, 0.0)
}

func TestEligibilityEvaluator_NumericOperators(t *testing.T) {
	evaluator := NewEligibilityEvaluator(DefaultEvaluatorConfig())

	tests := []struct {
		name    string
		patient string
		value   string
		op      entities.Operator
		want    bool
	}{
		{"greater", "45 years old", "18", entities.OperatorGreaterThan, true},
		{"greater is strict", "18", "18", entities.OperatorGreaterThan, false},
		{"less", "40", "75", entities.OperatorLessThan, true},
		{"between inside", "45", "18-75", entities.OperatorBetween, true},
		{"between outside", "80", "18-75", entities.OperatorBetween, false},
		{"default equality tolerance", "50.05", "50", entities.OperatorNone, true},
		{"equality miss", "51", "50", entities.OperatorEqual, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			criteria := criteriaWith(entities.CriterionInclusion, entities.CategoryAge,
				entities.CriterionSummary{Text: "age", Value: tt.value, Operator: tt.op})
			result := evaluator.Evaluate(entities.PatientProfile{entities.CategoryAge: tt.patient}, criteria)
			assert.Equal(t, tt.want, len(result.InclusionMatches) == 1)
		})
	}
}

func TestEligibilityEvaluator_NumericParseFailureIsNonMatch(t *testing.T) {
	criteria := criteriaWith(entities.CriterionInclusion, entities.CategoryWeight,
		entities.CriterionSummary{Text: "weight", Value: "heavy"})

	result := NewEligibilityEvaluator(DefaultEvaluatorConfig()).Evaluate(entities.PatientProfile{entities.CategoryWeight: "70 kg"}, criteria)

	require.Len(t, result.InclusionViolations, 1)
	assert.Equal(t, "No numeric values found", result.InclusionViolations[0].Reason)
	assert.Zero(t, result.OverallScore)
}

func TestEligibilityEvaluator_LaboratoryReadingByAnalyte(t *testing.T) {
	criteria := criteriaWith(entities.CriterionInclusion, entities.CategoryLaboratory,
		entities.CriterionSummary{Text: "hemoglobin ≥ 10", Value: "hemoglobin 10", Operator: entities.OperatorGreaterThan})

	result := NewEligibilityEvaluator(DefaultEvaluatorConfig()).Evaluate(entities.PatientProfile{
		entities.CategoryLaboratory: "ecog 1; hemoglobin 11.2",
	}, criteria)

	assert.Len(t, result.InclusionMatches, 1)
}

func TestEligibilityEvaluator_ScoreBands(t *testing.T) {
	evaluator := NewEligibilityEvaluator(DefaultEvaluatorConfig())
	c := entities.CriterionSummary{Text: "breast", Value: "breast"}
	criteria := criteriaWith(entities.CriterionInclusion, entities.CategoryCondition, c, c, c)

	result := evaluator.Evaluate(entities.PatientProfile{entities.CategoryCondition: "breast"}, criteria)

	assert.InDelta(t, 3.0, result.OverallScore, 1e-9)
	assert.Equal(t, "Strong match - likely eligible", result.Explanation[len(result.Explanation)-1])

	empty := evaluator.Evaluate(entities.PatientProfile{}, entities.NewStructuredCriteria())
	assert.Equal(t, []string{"Weak match - unlikely to be eligible"}, empty.Explanation)
}

func TestProfileFromBundle(t *testing.T) {
	bundle := NewRuleBasedExtractor().Extract("female, 45 years old, breast cancer, HER2 positive, non-smoker")

	profile := ProfileFromBundle(bundle)

	assert.Equal(t, entities.PatientProfile{
		entities.CategoryAge:       "45 years old",
		entities.CategoryGender:    "female",
		entities.CategoryCondition: "breast cancer",
		entities.CategoryBiomarker: "her2 positive",
		entities.CategoryLifestyle: "non-smoker",
	}, profile)
}
