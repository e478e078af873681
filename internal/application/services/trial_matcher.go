package services

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/zatekoja/trialmatch/internal/domain/entities"
	"github.com/zatekoja/trialmatch/pkg/utils"
)

// FieldWeight pairs a trial column with its contribution to the total score.
type FieldWeight struct {
	Column string
	Weight float64
}

// MatcherConfig holds the scoring constants. They are heuristics, not
// calibrated values, and can be tuned per deployment.
type MatcherConfig struct {
	Fields     []FieldWeight
	MaxResults int

	ConditionFuzzyThreshold float64
	GeneralFuzzyThreshold   float64
	// Entities shorter than this never count as a general substring hit
	// ("m" and "f" are in almost every field).
	MinGeneralEntityLength int
}

// DefaultMatcherConfig returns the standard field weights.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		Fields: []FieldWeight{
			{entities.ColumnConditions, 3.0},
			{entities.ColumnSex, 2.0},
			{entities.ColumnAge, 2.0},
			{entities.ColumnPhases, 1.5},
			{entities.ColumnStatus, 1.0},
			{entities.ColumnStudyType, 0.5},
			{entities.ColumnLocations, 0.3},
		},
		MaxResults:              20,
		ConditionFuzzyThreshold: 0.8,
		GeneralFuzzyThreshold:   0.7,
		MinGeneralEntityLength:  3,
	}
}

var (
	sexTerms = entities.NewEntitySet("male", "female", "m", "f", "man", "woman", "men", "women")

	sexAliases = map[string]string{
		"male": "male", "m": "male", "man": "male", "men": "male",
		"female": "female", "f": "female", "woman": "female", "women": "female",
		"all": "all",
	}

	phaseToken = regexp.MustCompile(`(early[\s_]*)?phase[\s_]*([1-4]|iv|i{1,3})\b`)

	romanPhases = map[string]string{"i": "1", "ii": "2", "iii": "3", "iv": "4"}

	fieldTermSeparator = regexp.MustCompile(`[,;|]`)

	// Tokens shared by nearly every oncology trial. They score, but never
	// earn the strong condition tag on their own.
	genericConditionTerms = entities.NewEntitySet("cancer", "carcinoma", "tumor", "tumour", "neoplasm", "malignancy")

	explanationRules = []struct {
		column    string
		threshold float64
		message   string
	}{
		{entities.ColumnConditions, 1.5, "Strong condition match"},
		{entities.ColumnSex, 1.5, "Gender criteria match"},
		{entities.ColumnAge, 1.0, "Age criteria match"},
		{entities.ColumnPhases, 1.0, "Study phase match"},
		{entities.ColumnStatus, 0.5, "Study status match"},
		{entities.ColumnStudyType, 0.5, "Study type match"},
		{entities.ColumnLocations, 0.5, "Location match"},
	}
)

const genericExplanation = "Partial match on general criteria"

// TrialMatcher ranks trials against extracted patient entities.
type TrialMatcher struct {
	config MatcherConfig
}

// NewTrialMatcher creates a matcher.
func NewTrialMatcher(config MatcherConfig) *TrialMatcher {
	if config.MaxResults <= 0 {
		config.MaxResults = DefaultMatcherConfig().MaxResults
	}
	return &TrialMatcher{config: config}
}

// Match scores every trial, drops those scoring zero or less and returns the
// best MaxResults by descending score. Ties keep table order. Confidence
// percentages are relative to the best score in this result.
func (m *TrialMatcher) Match(bundle entities.EntityBundle, trials []entities.Trial) []entities.TrialMatch {
	if bundle.IsEmpty() || len(trials) == 0 {
		return []entities.TrialMatch{}
	}

	patient := newPatientSignals(bundle)

	matches := make([]entities.TrialMatch, 0, len(trials))
	for _, trial := range trials {
		score, breakdown, explanations := m.score(patient, trial)
		if score <= 0 {
			continue
		}
		matches = append(matches, entities.TrialMatch{
			Trial:        trial,
			Score:        score,
			Breakdown:    breakdown,
			Explanations: explanations,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > m.config.MaxResults {
		matches = matches[:m.config.MaxResults]
	}
	if len(matches) > 0 {
		best := matches[0].Score
		for i := range matches {
			matches[i].ConfidencePct = math.Round(matches[i].Score/best*1000) / 10
		}
	}
	return matches
}

// ScoreTrial returns the total score of one trial with its weighted
// per-field breakdown.
func (m *TrialMatcher) ScoreTrial(bundle entities.EntityBundle, trial entities.Trial) (float64, map[string]float64) {
	score, breakdown, _ := m.score(newPatientSignals(bundle), trial)
	return score, breakdown
}

// patientSignals caches what every field scorer derives from the bundle.
type patientSignals struct {
	bundle     entities.EntityBundle
	all        []string
	conditions []string
	sexes      map[string]bool
	lifeStages map[string]bool
	age        float64
	hasAge     bool
	phases     map[string]bool
}

func newPatientSignals(bundle entities.EntityBundle) patientSignals {
	p := patientSignals{
		bundle:     bundle,
		all:        bundle.All.Sorted(),
		conditions: bundle.Conditions.Sorted(),
		sexes:      map[string]bool{},
		lifeStages: map[string]bool{},
		phases:     map[string]bool{},
	}

	for _, d := range bundle.Demographics.Sorted() {
		for _, tok := range utils.WordTokens(d) {
			if sex, ok := sexAliases[tok]; ok && sex != "all" {
				p.sexes[sex] = true
			}
		}
		for stage := range lifeStageTokens(d) {
			p.lifeStages[stage] = true
		}
		if !p.hasAge {
			p.age, p.hasAge = utils.FirstNumber(d)
		}
	}

	for _, e := range p.all {
		for phase := range phaseTokens(e) {
			p.phases[phase] = true
		}
	}
	return p
}

func (m *TrialMatcher) score(patient patientSignals, trial entities.Trial) (float64, map[string]float64, []string) {
	total := 0.0
	breakdown := make(map[string]float64, len(m.config.Fields))
	raw := make(map[string]float64, len(m.config.Fields))
	specificCondition := false

	for _, fw := range m.config.Fields {
		field := strings.ToLower(trial.Field(fw.Column))
		var sub float64
		if strings.TrimSpace(field) != "" {
			switch fw.Column {
			case entities.ColumnConditions:
				sub, specificCondition = m.scoreConditions(patient, field)
			case entities.ColumnSex:
				sub = scoreSex(patient, field)
			case entities.ColumnAge:
				sub = scoreAge(patient, field)
			case entities.ColumnPhases:
				sub = scorePhases(patient, field)
			default:
				sub = m.scoreGeneral(patient, field)
			}
		}
		raw[fw.Column] = sub
		breakdown[fw.Column] = sub * fw.Weight
		total += sub * fw.Weight
	}

	return total, breakdown, explain(raw, specificCondition)
}

// scoreConditions also reports whether a condition other than a generic
// cancer term matched.
func (m *TrialMatcher) scoreConditions(patient patientSignals, field string) (float64, bool) {
	score := 0.0
	specific := false
	for _, c := range patient.conditions {
		matched := true
		switch {
		case strings.Contains(field, c):
			score += 2.0
		case bestTermSimilarity(c, field) >= m.config.ConditionFuzzyThreshold:
			score += 1.5
		default:
			matched = false
		}
		if matched && !genericConditionTerms.Has(c) {
			specific = true
		}
	}
	for _, e := range patient.all {
		if patient.bundle.Conditions.Has(e) || utf8.RuneCountInString(e) < m.config.MinGeneralEntityLength {
			continue
		}
		if strings.Contains(field, e) {
			score += 0.5
		}
	}
	return math.Min(score, 5.0), specific
}

func scoreSex(patient patientSignals, field string) float64 {
	fieldSexes := map[string]bool{}
	for _, tok := range utils.WordTokens(field) {
		if sex, ok := sexAliases[tok]; ok {
			fieldSexes[sex] = true
		}
	}
	if len(fieldSexes) == 0 || len(patient.sexes) == 0 {
		return 0
	}

	score := 0.0
	for sex := range patient.sexes {
		if fieldSexes[sex] || fieldSexes["all"] {
			score += 2.0
			break
		}
	}
	// Weaker corroboration: both sides state a sex at all.
	score += 1.5
	return math.Min(score, 3.0)
}

func scoreAge(patient patientSignals, field string) float64 {
	score := 0.0

	stages := lifeStageTokens(field)
	consistent := false
	for stage := range stages {
		if patient.lifeStages[stage] {
			consistent = true
		}
		if patient.hasAge && ageInLifeStage(patient.age, stage) {
			consistent = true
		}
	}
	if consistent {
		score += 2.0
	}

	if patient.hasAge && ageInStatedRange(patient.age, field) {
		score += 1.0
	}
	return math.Min(score, 3.0)
}

func lifeStageTokens(text string) map[string]bool {
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, "older adult", "older_adult")
	stages := map[string]bool{}
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r == '_' || (r >= 'a' && r <= 'z'))
	}) {
		switch tok {
		case "adult", "older_adult", "child", "pediatric":
			stages[tok] = true
		}
	}
	return stages
}

func ageInLifeStage(age float64, stage string) bool {
	switch stage {
	case "adult":
		return age >= 18 && age <= 64
	case "older_adult":
		return age >= 65
	case "child", "pediatric":
		return age < 18
	}
	return false
}

// ageInStatedRange checks explicit bounds such as "18 - 75" or
// "18 years and older" or "up to 17 years".
func ageInStatedRange(age float64, field string) bool {
	field = strings.ToLower(field)
	bounds := utils.Numbers(field)
	switch {
	case len(bounds) >= 2:
		return age >= math.Min(bounds[0], bounds[1]) && age <= math.Max(bounds[0], bounds[1])
	case len(bounds) == 1 && (strings.Contains(field, "older") || strings.Contains(field, "over") || strings.Contains(field, "+")):
		return age >= bounds[0]
	case len(bounds) == 1 && (strings.Contains(field, "younger") || strings.Contains(field, "under") || strings.Contains(field, "up to")):
		return age <= bounds[0]
	}
	return false
}

func scorePhases(patient patientSignals, field string) float64 {
	score := 0.0
	for phase := range phaseTokens(field) {
		if patient.phases[phase] {
			score += 1.5
		}
	}
	return math.Min(score, 2.0)
}

// phaseTokens canonicalizes phase mentions ("Phase II", "PHASE2",
// "early phase 1") to phase1..phase4 and early_phase1.
func phaseTokens(text string) map[string]bool {
	tokens := map[string]bool{}
	for _, m := range phaseToken.FindAllStringSubmatch(strings.ToLower(text), -1) {
		n := m[2]
		if arabic, ok := romanPhases[n]; ok {
			n = arabic
		}
		if m[1] != "" {
			tokens["early_phase"+n] = true
		} else {
			tokens["phase"+n] = true
		}
	}
	return tokens
}

func (m *TrialMatcher) scoreGeneral(patient patientSignals, field string) float64 {
	score := 0.0
	for _, e := range patient.all {
		if utf8.RuneCountInString(e) < m.config.MinGeneralEntityLength {
			continue
		}
		switch {
		case strings.Contains(field, e):
			score += 1.0
		case bestTermSimilarity(e, field) >= m.config.GeneralFuzzyThreshold:
			score += 0.5
		}
	}
	return math.Min(score, 3.0)
}

// bestTermSimilarity compares an entity against the whole field and each of
// its comma, semicolon or pipe separated terms.
func bestTermSimilarity(entity, field string) float64 {
	best := utils.SimilarityRatio(entity, field)
	for _, term := range fieldTermSeparator.Split(field, -1) {
		if r := utils.SimilarityRatio(entity, strings.TrimSpace(term)); r > best {
			best = r
		}
	}
	return best
}

// explain tags each field whose raw sub-score clears its threshold. The sex
// tag needs a real sex match, since stating any sex alone scores 1.5.
func explain(raw map[string]float64, specificCondition bool) []string {
	var out []string
	for _, rule := range explanationRules {
		if rule.column == entities.ColumnConditions && !specificCondition {
			continue
		}
		if raw[rule.column] > rule.threshold {
			out = append(out, rule.message)
		}
	}
	if len(out) == 0 {
		out = append(out, genericExplanation)
	}
	return out
}
