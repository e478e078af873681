package services

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/zatekoja/trialmatch/internal/domain/entities"
	"github.com/zatekoja/trialmatch/pkg/utils"
)

var biomarkerPrefix = regexp.MustCompile(`^(her2|her-2|egfr|kras|braf|alk|ros1|pdl1|pd-l1|msi|tmb|brca1|brca2)\b`)

// EvaluatorConfig holds the tunable constants of criterion evaluation. The
// defaults are heuristic, not calibrated.
type EvaluatorConfig struct {
	// ExclusionPenalty multiplies the exclusion total before it is
	// subtracted from the inclusion total.
	ExclusionPenalty float64
	// TextMatchThreshold is the Jaccard overlap a text criterion must exceed.
	TextMatchThreshold float64
	// NumericTolerance applies to equality comparisons.
	NumericTolerance float64

	StrongMatchAbove  float64
	PartialMatchAbove float64
	WeakMatchAbove    float64
}

// DefaultEvaluatorConfig returns the standard evaluation constants.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		ExclusionPenalty:   2.0,
		TextMatchThreshold: 0.3,
		NumericTolerance:   0.1,
		StrongMatchAbove:   2.0,
		PartialMatchAbove:  0.0,
		WeakMatchAbove:     -1.0,
	}
}

// EligibilityEvaluator scores a patient profile against structured criteria.
type EligibilityEvaluator struct {
	config EvaluatorConfig
}

// NewEligibilityEvaluator creates an evaluator.
func NewEligibilityEvaluator(config EvaluatorConfig) *EligibilityEvaluator {
	return &EligibilityEvaluator{config: config}
}

type criterionResult struct {
	matches bool
	score   float64
	reason  string
}

// Evaluate matches the patient against every criterion. Matched inclusion
// criteria add their score, matched exclusion criteria subtract it times the
// exclusion penalty.
func (e *EligibilityEvaluator) Evaluate(patient entities.PatientProfile, criteria entities.StructuredCriteria) entities.EligibilityAssessment {
	assessment := entities.EligibilityAssessment{
		InclusionMatches:    []entities.CriterionOutcome{},
		ExclusionMatches:    []entities.CriterionOutcome{},
		InclusionViolations: []entities.CriterionOutcome{},
		ExclusionNonMatches: []entities.CriterionOutcome{},
	}

	var inclusionTotal, exclusionTotal float64

	for _, category := range categoryOrder(criteria[entities.CriterionInclusion]) {
		for _, c := range criteria[entities.CriterionInclusion][category] {
			res := e.evaluateCriterion(patient, c, category)
			if res.matches {
				inclusionTotal += res.score
				assessment.InclusionMatches = append(assessment.InclusionMatches, entities.CriterionOutcome{
					Category: category, Criterion: c, Score: res.score,
				})
			} else {
				assessment.InclusionViolations = append(assessment.InclusionViolations, entities.CriterionOutcome{
					Category: category, Criterion: c, Reason: res.reason,
				})
			}
		}
	}

	for _, category := range categoryOrder(criteria[entities.CriterionExclusion]) {
		for _, c := range criteria[entities.CriterionExclusion][category] {
			res := e.evaluateCriterion(patient, c, category)
			if res.matches {
				exclusionTotal += res.score
				assessment.ExclusionMatches = append(assessment.ExclusionMatches, entities.CriterionOutcome{
					Category: category, Criterion: c, Score: res.score,
				})
			} else {
				assessment.ExclusionNonMatches = append(assessment.ExclusionNonMatches, entities.CriterionOutcome{
					Category: category, Criterion: c, Reason: res.reason,
				})
			}
		}
	}

	assessment.OverallScore = inclusionTotal - e.config.ExclusionPenalty*exclusionTotal
	assessment.Explanation = e.explain(assessment)
	return assessment
}

// categoryOrder lists the known categories first, then any others sorted by
// name, so evaluation order is deterministic.
func categoryOrder(buckets map[entities.CriterionCategory][]entities.CriterionSummary) []entities.CriterionCategory {
	order := make([]entities.CriterionCategory, 0, len(buckets))
	for _, c := range entities.CriterionCategories {
		if _, ok := buckets[c]; ok {
			order = append(order, c)
		}
	}
	var extra []entities.CriterionCategory
	for c := range buckets {
		if !c.IsKnown() {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(order, extra...)
}

func (e *EligibilityEvaluator) evaluateCriterion(patient entities.PatientProfile, c entities.CriterionSummary, category entities.CriterionCategory) criterionResult {
	patientValue := strings.ToLower(patient[category])
	criterionValue := strings.ToLower(c.Value)

	if category == entities.CategoryLaboratory {
		patientValue = labReading(patientValue, criterionValue)
	}
	if category.IsNumeric() {
		return e.evaluateNumeric(patientValue, criterionValue, c.Operator)
	}
	return e.evaluateText(patientValue, criterionValue)
}

// labReading picks the patient reading for the analyte named by the
// criterion ("hemoglobin 10") out of a "; "-joined list of readings.
func labReading(patientValue, criterionValue string) string {
	analyte := strings.Fields(criterionValue)
	if len(analyte) == 0 || containsDigit(analyte[0]) {
		return patientValue
	}
	for _, reading := range strings.Split(patientValue, ";") {
		if strings.Contains(reading, analyte[0]) {
			return reading
		}
	}
	return patientValue
}

func (e *EligibilityEvaluator) evaluateNumeric(patientValue, criterionValue string, op entities.Operator) criterionResult {
	patientNum, ok := utils.FirstNumber(patientValue)
	bounds := utils.Numbers(criterionValue)
	if !ok || len(bounds) == 0 {
		return criterionResult{reason: "No numeric values found"}
	}

	var matches bool
	switch {
	case op == entities.OperatorGreaterThan:
		matches = patientNum > bounds[0]
	case op == entities.OperatorLessThan:
		matches = patientNum < bounds[0]
	case op == entities.OperatorBetween && len(bounds) >= 2:
		lo, hi := math.Min(bounds[0], bounds[1]), math.Max(bounds[0], bounds[1])
		matches = patientNum >= lo && patientNum <= hi
	default:
		matches = math.Abs(patientNum-bounds[0]) < e.config.NumericTolerance
	}

	verdict := "does not meet"
	score := 0.0
	if matches {
		verdict = "meets"
		score = 1.0
	}
	return criterionResult{
		matches: matches,
		score:   score,
		reason:  fmt.Sprintf("Patient value %g %s criterion %s %s", patientNum, verdict, operatorLabel(op), criterionValue),
	}
}

func (e *EligibilityEvaluator) evaluateText(patientValue, criterionValue string) criterionResult {
	if strings.TrimSpace(patientValue) == "" || strings.TrimSpace(criterionValue) == "" {
		return criterionResult{reason: "Missing values"}
	}

	similarity := utils.JaccardSimilarity(patientValue, criterionValue)
	matches := similarity > e.config.TextMatchThreshold

	verdict := "does not meet"
	if matches {
		verdict = "meets"
	}
	return criterionResult{
		matches: matches,
		score:   similarity,
		reason:  fmt.Sprintf("Text similarity: %.2f (%s threshold)", similarity, verdict),
	}
}

func operatorLabel(op entities.Operator) string {
	if op == entities.OperatorNone {
		return string(entities.OperatorEqual)
	}
	return string(op)
}

func (e *EligibilityEvaluator) explain(a entities.EligibilityAssessment) []string {
	var lines []string
	if n := len(a.InclusionMatches); n > 0 {
		lines = append(lines, fmt.Sprintf("Meets %d inclusion criteria", n))
	}
	if n := len(a.InclusionViolations); n > 0 {
		lines = append(lines, fmt.Sprintf("Does not meet %d inclusion criteria", n))
	}
	if n := len(a.ExclusionMatches); n > 0 {
		lines = append(lines, fmt.Sprintf("Meets %d exclusion criteria", n))
	}

	switch score := a.OverallScore; {
	case score > e.config.StrongMatchAbove:
		lines = append(lines, "Strong match - likely eligible")
	case score > e.config.PartialMatchAbove:
		lines = append(lines, "Partial match - may be eligible with review")
	case score > e.config.WeakMatchAbove:
		lines = append(lines, "Weak match - unlikely to be eligible")
	default:
		lines = append(lines, "Poor match - probably not eligible")
	}
	return lines
}

// ProfileFromBundle derives a patient profile from extracted entities so
// that free-text screenings can be checked against trial criteria.
func ProfileFromBundle(bundle entities.EntityBundle) entities.PatientProfile {
	profile := entities.PatientProfile{}

	for _, d := range bundle.Demographics.Sorted() {
		switch {
		case containsDigit(d):
			if _, ok := profile[entities.CategoryAge]; !ok {
				profile[entities.CategoryAge] = d
			}
		case sexTerms.Has(d):
			profile[entities.CategoryGender] = d
		}
	}

	var conditions, biomarkers, stages []string
	for _, c := range bundle.Conditions.Sorted() {
		switch {
		case strings.HasPrefix(c, "stage"):
			stages = append(stages, c)
		case biomarkerPrefix.MatchString(c):
			biomarkers = append(biomarkers, c)
		default:
			conditions = append(conditions, c)
		}
	}
	setJoined(profile, entities.CategoryCondition, conditions)
	setJoined(profile, entities.CategoryBiomarker, biomarkers)
	setJoined(profile, entities.CategoryStage, stages)

	var medications, lifestyle []string
	for _, t := range bundle.Treatments.Sorted() {
		if strings.Contains(t, "smok") {
			lifestyle = append(lifestyle, t)
		} else {
			medications = append(medications, t)
		}
	}
	setJoined(profile, entities.CategoryMedication, medications)
	setJoined(profile, entities.CategoryLifestyle, lifestyle)
	if labs := bundle.LabValues.Sorted(); len(labs) > 0 {
		profile[entities.CategoryLaboratory] = strings.Join(labs, "; ")
	}

	return profile
}

func setJoined(profile entities.PatientProfile, category entities.CriterionCategory, values []string) {
	if len(values) > 0 {
		profile[category] = strings.Join(values, " ")
	}
}

func containsDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}
