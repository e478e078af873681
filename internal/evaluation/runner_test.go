package evaluation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/trialmatch/internal/application/services"
	"github.com/zatekoja/trialmatch/internal/domain/entities"
)

func TestRunner_ScoresAgainstRealScreening(t *testing.T) {
	catalog := services.NewTrialCatalogService(nil, 0, nil)
	catalog.Replace([]entities.Trial{
		{NCTNumber: "NCT-LUNG", Conditions: "Lung Cancer", Sex: "MALE", Age: "18 - 75", Locations: "UCLA Medical Center, Los Angeles, CA"},
		{NCTNumber: "NCT-BREAST", Conditions: "Breast Cancer", Sex: "FEMALE", Age: "18 - 75", Locations: "Dana-Farber Cancer Institute, Boston, MA"},
	}, "test")
	screening := services.NewScreeningService(
		services.NewEntityExtractionService(nil, 0, nil),
		services.NewTrialMatcher(services.DefaultMatcherConfig()),
		services.NewGeographicMatcher(nil, 0, nil),
		services.NewEligibilityParser(),
		services.NewEligibilityEvaluator(services.DefaultEvaluatorConfig()),
		catalog,
		services.ScreeningConfig{},
		nil,
	)

	summary, err := NewRunner(screening).Run(context.Background(), []GoldenCase{
		{
			ID:             "breast",
			PatientText:    "female, 45 years old, breast cancer, HER2 positive, non-smoker",
			Focus:          FocusCondition,
			ExpectedTrials: []string{"NCT-BREAST"},
		},
		{
			ID:               "boston-only",
			PatientText:      "female, 45 years old, breast cancer",
			Location:         "Boston, MA",
			MaxDistanceMiles: 50,
			Focus:            FocusGeographic,
			ExpectedTrials:   []string{"NCT-BREAST"},
			ExcludedTrials:   []string{"NCT-LUNG"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalCases)
	assert.Equal(t, 2, summary.CasesWithHits)
	assert.InDelta(t, 1.0, summary.AvgRecallAt10, 1e-9)
	assert.InDelta(t, 1.0, summary.AvgMRRAt10, 1e-9)
	assert.Equal(t, 0, summary.ExcludedHits)
	require.Contains(t, summary.ByFocus, FocusGeographic)
	assert.Equal(t, 1, summary.ByFocus[FocusGeographic].Count)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, []string{"NCT-BREAST"}, summary.Results[1].RetrievedIDs)
	assert.Empty(t, DefaultQualityGates().Check(summary))
}

type fixedScreener struct {
	ids []string
}

func (f fixedScreener) Screen(ctx context.Context, req services.ScreeningRequest) services.ScreeningResult {
	result := services.ScreeningResult{}
	for _, id := range f.ids {
		result.Matches = append(result.Matches, entities.TrialMatch{Trial: entities.Trial{NCTNumber: id}})
	}
	return result
}

func TestRunner_AveragesByFocus(t *testing.T) {
	runner := NewRunner(fixedScreener{ids: []string{"NCT9", "NCT1", "NCT3"}})

	summary, err := runner.Run(context.Background(), []GoldenCase{
		{ID: "a", PatientText: "x", Focus: FocusCondition, ExpectedTrials: []string{"NCT1"}},
		{ID: "b", PatientText: "y", Focus: FocusCondition, ExpectedTrials: []string{"NCT2"}, ExcludedTrials: []string{"NCT3"}},
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, summary.AvgRecallAt10, 1e-9)
	assert.InDelta(t, 0.25, summary.AvgMRRAt10, 1e-9)
	assert.Equal(t, 1, summary.ExcludedHits)
	assert.InDelta(t, 0.25, summary.ByFocus[FocusCondition].AvgMRRAt10, 1e-9)
	assert.NotEmpty(t, DefaultQualityGates().Check(summary))
}

func TestRunner_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(fixedScreener{}).Run(ctx, []GoldenCase{{ID: "a"}})
	assert.ErrorIs(t, err, context.Canceled)
}
