package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/trialmatch/internal/domain/entities"
)

const scenarioPatient = "female, 45 years old, breast cancer, HER2 positive, non-smoker"

func scenarioTrials() []entities.Trial {
	return []entities.Trial{
		{NCTNumber: "NCT-LUNG", Conditions: "Lung Cancer", Sex: "MALE", Age: "18 - 75", Phases: "PHASE3"},
		{NCTNumber: "NCT-BREAST", Conditions: "Breast Cancer", Sex: "FEMALE", Age: "18 - 75", Phases: "PHASE2"},
		{NCTNumber: "NCT-DIABETES", Conditions: "Type 2 Diabetes"},
	}
}

func TestTrialMatcher_BreastRanksAboveLung(t *testing.T) {
	bundle := NewRuleBasedExtractor().Extract(scenarioPatient)
	results := NewTrialMatcher(DefaultMatcherConfig()).Match(bundle, scenarioTrials())

	require.Len(t, results, 2)
	assert.Equal(t, "NCT-BREAST", results[0].Trial.NCTNumber)
	assert.Equal(t, "NCT-LUNG", results[1].Trial.NCTNumber)

	assert.InDelta(t, 20.0, results[0].Score, 1e-9)
	assert.InDelta(t, 12.0, results[0].Breakdown[entities.ColumnConditions], 1e-9)
	assert.InDelta(t, 6.0, results[0].Breakdown[entities.ColumnSex], 1e-9)
	assert.InDelta(t, 2.0, results[0].Breakdown[entities.ColumnAge], 1e-9)
	assert.Equal(t, []string{"Strong condition match", "Gender criteria match"}, results[0].Explanations)

	assert.InDelta(t, 11.0, results[1].Score, 1e-9)
	assert.Equal(t, 100.0, results[0].ConfidencePct)
	assert.Equal(t, 55.0, results[1].ConfidencePct)
}

func TestTrialMatcher_EmptyBundle(t *testing.T) {
	results := NewTrialMatcher(DefaultMatcherConfig()).Match(entities.NewEntityBundle(), scenarioTrials())
	assert.Empty(t, results)

	results = NewTrialMatcher(DefaultMatcherConfig()).Match(NewRuleBasedExtractor().Extract("   "), scenarioTrials())
	assert.Empty(t, results)
}

func TestTrialMatcher_CapsResultsAndKeepsTableOrder(t *testing.T) {
	trials := make([]entities.Trial, 25)
	for i := range trials {
		trials[i] = entities.Trial{NCTNumber: fmt.Sprintf("NCT%02d", i), Conditions: "Breast Cancer"}
	}

	results := NewTrialMatcher(DefaultMatcherConfig()).Match(NewRuleBasedExtractor().Extract(scenarioPatient), trials)

	require.Len(t, results, 20)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("NCT%02d", i), r.Trial.NCTNumber)
		assert.Equal(t, 100.0, r.ConfidencePct)
		assert.Greater(t, r.Score, 0.0)
	}
}

func TestTrialMatcher_NoMatchTagsOnConflictingTrial(t *testing.T) {
	bundle := NewRuleBasedExtractor().Extract("male, 50 years old, prostate cancer")
	results := NewTrialMatcher(DefaultMatcherConfig()).Match(bundle, []entities.Trial{
		{NCTNumber: "NCT-OVARIAN", Conditions: "Ovarian Cancer", Sex: "FEMALE"},
		{NCTNumber: "NCT-PROSTATE", Conditions: "Prostate Cancer", Sex: "MALE"},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "NCT-PROSTATE", results[0].Trial.NCTNumber)
	assert.Contains(t, results[0].Explanations, "Strong condition match")
	assert.Contains(t, results[0].Explanations, "Gender criteria match")

	ovarian := results[1]
	assert.Equal(t, "NCT-OVARIAN", ovarian.Trial.NCTNumber)
	assert.NotContains(t, ovarian.Explanations, "Gender criteria match")
	assert.NotContains(t, ovarian.Explanations, "Strong condition match")
}

func TestTrialMatcher_PercentagesRelativeToBest(t *testing.T) {
	trials := []entities.Trial{
		{NCTNumber: "A", Conditions: "Cancer"},
		{NCTNumber: "B", Conditions: "Breast Cancer", Sex: "ALL"},
		{NCTNumber: "C", Conditions: "Breast Neoplasms", Sex: "FEMALE", Age: "ADULT, OLDER_ADULT"},
	}

	results := NewTrialMatcher(DefaultMatcherConfig()).Match(NewRuleBasedExtractor().Extract(scenarioPatient), trials)

	require.NotEmpty(t, results)
	assert.Equal(t, 100.0, results[0].ConfidencePct)
	for i, r := range results {
		assert.GreaterOrEqual(t, r.ConfidencePct, 0.0)
		assert.LessOrEqual(t, r.ConfidencePct, 100.0)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
		}
	}
}

func TestTrialMatcher_SexTokensDoNotOverlap(t *testing.T) {
	matcher := NewTrialMatcher(DefaultMatcherConfig())
	bundle := NewRuleBasedExtractor().Extract("female patient")

	_, male := matcher.ScoreTrial(bundle, entities.Trial{Sex: "MALE"})
	_, female := matcher.ScoreTrial(bundle, entities.Trial{Sex: "FEMALE"})
	_, all := matcher.ScoreTrial(bundle, entities.Trial{Sex: "ALL"})

	assert.InDelta(t, 3.0, male[entities.ColumnSex], 1e-9)
	assert.InDelta(t, 6.0, female[entities.ColumnSex], 1e-9)
	assert.InDelta(t, 6.0, all[entities.ColumnSex], 1e-9)
}

func TestTrialMatcher_AgeLifeStages(t *testing.T) {
	matcher := NewTrialMatcher(DefaultMatcherConfig())

	tests := []struct {
		patient string
		field   string
		want    float64
	}{
		{"70 years old", "ADULT, OLDER_ADULT", 4.0},
		{"45 years old", "18 Years and older (Adult, Older Adult)", 6.0},
		{"10 years old", "ADULT", 0.0},
		{"10 years old", "CHILD", 4.0},
		{"adult", "ADULT", 4.0},
		{"breast cancer", "ADULT", 0.0},
	}

	for _, tt := range tests {
		_, breakdown := matcher.ScoreTrial(NewRuleBasedExtractor().Extract(tt.patient), entities.Trial{Age: tt.field})
		assert.InDelta(t, tt.want, breakdown[entities.ColumnAge], 1e-9, "%s vs %s", tt.patient, tt.field)
	}
}

func TestTrialMatcher_PhaseTokens(t *testing.T) {
	bundle := NewRuleBasedExtractor().Extract("breast cancer, looking for a phase ii study")
	results := NewTrialMatcher(DefaultMatcherConfig()).Match(bundle, []entities.Trial{
		{NCTNumber: "P", Conditions: "Breast Cancer", Phases: "PHASE1, PHASE2"},
	})

	require.Len(t, results, 1)
	assert.InDelta(t, 2.25, results[0].Breakdown[entities.ColumnPhases], 1e-9)
	assert.Contains(t, results[0].Explanations, "Study phase match")
}

func TestTrialMatcher_FuzzyConditionMatch(t *testing.T) {
	bundle := entities.NewEntityBundle()
	bundle.Conditions.Add("tumour")
	bundle.All.Add("tumour")

	results := NewTrialMatcher(DefaultMatcherConfig()).Match(bundle, []entities.Trial{
		{NCTNumber: "T", Conditions: "Tumor, Solid Neoplasm"},
	})

	require.Len(t, results, 1)
	assert.InDelta(t, 4.5, results[0].Score, 1e-9)
	assert.Equal(t, []string{"Partial match on general criteria"}, results[0].Explanations)
}

func TestTrialMatcher_DoesNotMutateInput(t *testing.T) {
	trials := scenarioTrials()
	before := append([]entities.Trial(nil), trials...)

	NewTrialMatcher(DefaultMatcherConfig()).Match(NewRuleBasedExtractor().Extract(scenarioPatient), trials)

	assert.Equal(t, before, trials)
}

func TestPhaseTokens(t *testing.T) {
	assert.Equal(t, map[string]bool{"phase1": true, "phase2": true}, phaseTokens("PHASE1, PHASE2"))
	assert.Equal(t, map[string]bool{"early_phase1": true}, phaseTokens("EARLY_PHASE1"))
	assert.Equal(t, map[string]bool{"phase3": true}, phaseTokens("phase iii"))
	assert.Empty(t, phaseTokens("NA"))
}
