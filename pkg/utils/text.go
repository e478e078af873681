package utils

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	titleCaser    = cases.Title(language.English)
	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// NormalizeText applies NFKC normalization, drops control characters other
// than newlines and tabs, lower-cases and trims the input.
func NormalizeText(text string) string {
	normed := norm.NFKC.String(text)
	normed = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
	return strings.ToLower(strings.TrimSpace(normed))
}

// TitleCase renders a place name the way it is displayed ("new york" -> "New York").
func TitleCase(s string) string {
	return titleCaser.String(strings.TrimSpace(s))
}

// FirstNumber returns the first integer or decimal token in s.
func FirstNumber(s string) (float64, bool) {
	tok := numberPattern.FindString(s)
	if tok == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Numbers returns every integer or decimal token in s, in order.
func Numbers(s string) []float64 {
	toks := numberPattern.FindAllString(s, -1)
	out := make([]float64, 0, len(toks))
	for _, tok := range toks {
		if v, err := strconv.ParseFloat(tok, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// WordTokens splits s into lower-case runs of letters and digits.
func WordTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}
