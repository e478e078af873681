package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"trims and lowercases", "  Breast Cancer  ", "breast cancer"},
		{"folds full-width digits", "Age ４５", "age 45"},
		{"keeps comparison symbols", "Age ≥ 18", "age ≥ 18"},
		{"drops control characters", "stage\x00 ii", "stage ii"},
		{"empty", "   ", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeText(tc.input))
		})
	}
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "New York", TitleCase("new york"))
	assert.Equal(t, "San Antonio", TitleCase(" SAN ANTONIO "))
}

func TestFirstNumber(t *testing.T) {
	v, ok := FirstNumber("hemoglobin 12.5 g/dl")
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)

	_, ok = FirstNumber("no digits here")
	assert.False(t, ok)

	assert.Equal(t, []float64{18, 75}, Numbers("18 Years - 75 Years"))
}

func TestWordTokens(t *testing.T) {
	assert.Equal(t, []string{"female", "all"}, WordTokens("FEMALE, ALL"))
	assert.Equal(t, []string{"phase1", "phase2"}, WordTokens("PHASE1|PHASE2"))
}
