package evaluation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGoldenCases_ValidFile(t *testing.T) {
	path := writeTempFile(t, `[
		{"id": "c1", "patient_text": "female, 45, breast cancer, HER2 positive", "focus": "biomarker", "expected_trials": ["NCT1"], "difficulty": "easy"},
		{"id": "c2", "patient_text": "male with lung cancer", "location": "Boston, MA", "max_distance_miles": 50, "focus": "geographic", "expected_trials": ["NCT2"], "excluded_trials": ["NCT3"], "difficulty": "medium"}
	]`)

	cases, err := LoadGoldenCases(path)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, FocusBiomarker, cases[0].Focus)
	assert.Equal(t, []string{"NCT1"}, cases[0].ExpectedTrials)
	assert.Equal(t, "Boston, MA", cases[1].Location)
	assert.Equal(t, 50.0, cases[1].MaxDistanceMiles)
	assert.Equal(t, []string{"NCT3"}, cases[1].ExcludedTrials)
	assert.NoError(t, ValidateGoldenCases(cases))
}

func TestLoadGoldenCases_Errors(t *testing.T) {
	_, err := LoadGoldenCases("/nonexistent/path.json")
	assert.Error(t, err)

	_, err = LoadGoldenCases(writeTempFile(t, `not valid json`))
	assert.Error(t, err)

	cases, err := LoadGoldenCases(writeTempFile(t, `[]`))
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestFocus_IsValid(t *testing.T) {
	for _, f := range ValidFoci() {
		assert.True(t, f.IsValid(), f)
	}
	assert.False(t, Focus("unknown").IsValid())
	assert.False(t, Focus("").IsValid())
}

func TestValidateGoldenCases(t *testing.T) {
	valid := GoldenCase{ID: "c1", PatientText: "breast cancer", Focus: FocusCondition, ExpectedTrials: []string{"NCT1"}, Difficulty: "easy"}

	tests := []struct {
		name   string
		mutate func(c *GoldenCase)
	}{
		{"missing id", func(c *GoldenCase) { c.ID = "" }},
		{"missing text", func(c *GoldenCase) { c.PatientText = "  " }},
		{"invalid focus", func(c *GoldenCase) { c.Focus = "bad" }},
		{"geographic without location", func(c *GoldenCase) { c.Focus = FocusGeographic }},
		{"no expected trials", func(c *GoldenCase) { c.ExpectedTrials = nil }},
		{"negative distance", func(c *GoldenCase) { c.MaxDistanceMiles = -1 }},
		{"invalid difficulty", func(c *GoldenCase) { c.Difficulty = "impossible" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, ValidateGoldenCases([]GoldenCase{c}))
		})
	}

	assert.NoError(t, ValidateGoldenCases([]GoldenCase{valid}))
	assert.Error(t, ValidateGoldenCases([]GoldenCase{valid, valid}), "duplicate ids")
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "golden.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
