package services

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zatekoja/trialmatch/internal/domain/entities"
	"github.com/zatekoja/trialmatch/pkg/utils"
)

const (
	// Fragments shorter than this are list debris ("1", "a)") and never parsed.
	minFragmentLength = 5
	// A fragment whose best category match does not beat this is dropped.
	minCriterionConfidence = 0.3
)

type categoryPatterns struct {
	category entities.CriterionCategory
	patterns []*regexp.Regexp
}

var (
	criterionPatterns = []categoryPatterns{
		{entities.CategoryAge, compileAll(
			`age\s*[<>≤≥=]\s*(\d+)`,
			`age\s+(\d+)\s*[-–]\s*(\d+)`,
			`(\d+)\s*years?\s*old`,
			`between\s+(\d+)\s*and\s*(\d+)\s*years?`,
			`(\d+)\s*to\s*(\d+)\s*years?`,
		)},
		{entities.CategoryWeight, compileAll(
			`weight\s*[<>≤≥=]\s*(\d+(?:\.\d+)?)\s*(kg|lbs?|pounds?)`,
			`body\s*mass\s*index\s*[<>≤≥=]\s*(\d+(?:\.\d+)?)`,
			`bmi\s*[<>≤≥=]\s*(\d+(?:\.\d+)?)`,
		)},
		{entities.CategoryGender, compileAll(
			`\b(male|female|men|women)\b`,
			`\b(m|f)\b`,
		)},
		{entities.CategoryCondition, compileAll(
			`(cancer|carcinoma|tumor|tumour|neoplasm|malignancy)`,
			`(breast|lung|prostate|colon|pancreatic|ovarian|brain|liver|kidney|bladder|cervical|endometrial|thyroid)\s+cancer`,
			`(leukemia|lymphoma|melanoma|sarcoma)`,
		)},
		{entities.CategoryStage, compileAll(
			`stage\s*([ivx0-9]+)`,
			`grade\s*([ivx0-9]+)`,
			`\bt[0-4]n[0-3]m[0-1]\b`,
		)},
		{entities.CategoryBiomarker, compileAll(
			`(her2|her-2|egfr|kras|braf|alk|ros1|pdl1|msi|tmb|brca1|brca2)\s*(positive|negative|high|low|mutated|wild|type)`,
			`(estrogen|progesterone)\s*(positive|negative)`,
			`triple\s*negative`,
		)},
		{entities.CategoryMedication, compileAll(
			`(chemotherapy|chemo|radiation|radiotherapy|surgery|surgical|immunotherapy|targeted\s+therapy|hormone\s+therapy)`,
			`(prior|previous|history\s+of|no\s+prior)\s+(chemotherapy|chemo|radiation|surgery)`,
			`concurrent\s+(chemotherapy|radiation)`,
		)},
		{entities.CategoryLaboratory, compileAll(
			`\b(hemoglobin|hgb|hct|hematocrit|wbc|white\s+blood\s+cell|platelets?|creatinine|alt|ast|bilirubin)\s*[<>≤≥=]\s*(\d+(?:\.\d+)?)`,
			`ecog\s*performance\s*status\s*[<>≤≥=]\s*([0-2])`,
			`karnofsky\s*performance\s*status\s*[<>≤≥=]\s*(\d+)`,
		)},
		{entities.CategoryLifestyle, compileAll(
			`(smoker|non-smoker|never\s+smoked|former\s+smoker|current\s+smoker)`,
			`(pregnant|pregnancy|breastfeeding|lactating)`,
			`(contraception|contraceptive)`,
		)},
		{entities.CategoryComorbidity, compileAll(
			`(diabetes|hypertension|heart\s+disease|kidney\s+disease|liver\s+disease|lung\s+disease)`,
			`(hiv|aids|hepatitis|tuberculosis)`,
			`(autoimmune|immune\s+deficiency)`,
		)},
	}

	exclusionKeywords = []string{
		"exclusion", "exclude", "not eligible", "ineligible", "contraindication",
		"contraindicated", "not suitable", "not appropriate", "must not",
		"cannot", "unable to", "prohibited",
	}

	inclusionKeywords = []string{
		"inclusion", "include", "eligible", "suitable", "appropriate",
		"must have", "must be", "required", "necessary", "criteria",
	}

	negativeLanguage = compileAll(
		`\b(no|not|without|lacking|absence|free\s+of)\b`,
		`\b(cannot|unable|prohibited|contraindicated)\b`,
	)

	highValueTerms = []string{"cancer", "tumor", "malignant", "metastatic", "biomarker"}

	operatorGreater = regexp.MustCompile(`>|≥|\bgreater\s+than\b|\bmore\s+than\b`)
	operatorLess    = regexp.MustCompile(`<|≤|\bless\s+than\b|\bfewer\s+than\b`)
	operatorEqual   = regexp.MustCompile(`=|\bequals?\b|\bequal\s+to\b`)
	operatorBetween = regexp.MustCompile(`\bbetween\b|[-–]|\bto\b`)

	// Bullets and item numbers open a new fragment wherever they stand in a
	// sentence, as long as they are set off by spaces. "her-2" and "18-65"
	// have no spaces and stay whole.
	listMarker    = regexp.MustCompile(`(?:^|\s)(?:[-*•]|\(?\d{1,2}[.)])(?:\s|$)|•`)
	leadingMarker = regexp.MustCompile(`^\s*(?:(?:[-*•]|\(?\d{1,2}[.)])\s*)+`)
	sectionHeader = regexp.MustCompile(`^(?:key\s+)?(inclusion|exclusion)\s+criteria\b\s*:?\s*`)
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = regexp.MustCompile(expr)
	}
	return out
}

// EligibilityParser turns free-text eligibility criteria into typed,
// categorized criteria. It is stateless and safe for concurrent use.
type EligibilityParser struct{}

// NewEligibilityParser creates a parser.
func NewEligibilityParser() *EligibilityParser {
	return &EligibilityParser{}
}

// Segment splits criteria text into candidate criterion fragments. Text is
// normalized first; sentences end at ';', newlines and '.' unless the dot
// sits inside a decimal number. Each sentence is then cut at bullet and
// numbered list markers, which are removed.
func (p *EligibilityParser) Segment(text string) []string {
	text = utils.NormalizeText(text)
	if text == "" {
		return nil
	}

	var fragments []string
	for _, sentence := range splitSentences(text) {
		for _, piece := range splitListItems(sentence) {
			piece = leadingMarker.ReplaceAllString(piece, "")
			if piece = strings.TrimSpace(piece); piece != "" {
				fragments = append(fragments, piece)
			}
		}
	}
	return fragments
}

// splitListItems cuts a sentence at every list marker. A spaced dash between
// two numbers ("18 - 65") is a range, not a bullet.
func splitListItems(sentence string) []string {
	var pieces []string
	start := 0
	for _, loc := range listMarker.FindAllStringIndex(sentence, -1) {
		if isNumericRange(sentence, loc) {
			continue
		}
		pieces = append(pieces, sentence[start:loc[0]])
		start = loc[1]
	}
	return append(pieces, sentence[start:])
}

func isNumericRange(sentence string, loc []int) bool {
	if !strings.Contains(sentence[loc[0]:loc[1]], "-") {
		return false
	}
	before := strings.TrimRightFunc(sentence[:loc[0]], unicode.IsSpace)
	after := strings.TrimLeftFunc(sentence[loc[1]:], unicode.IsSpace)
	if before == "" || after == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(before)
	first, _ := utf8.DecodeRuneInString(after)
	return unicode.IsDigit(last) && unicode.IsDigit(first)
}

func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0
	for i, r := range runes {
		boundary := r == ';' || r == '\n'
		if r == '.' {
			inDecimal := i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1])
			boundary = !inDecimal
		}
		if boundary {
			sentences = append(sentences, string(runes[start:i]))
			start = i + 1
		}
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

// Parse segments text and returns every fragment that yields a criterion,
// split by polarity. Fragments following an "exclusion criteria" header are
// always exclusions; elsewhere polarity comes from the keyword vote.
func (p *EligibilityParser) Parse(text string) entities.ParsedCriteria {
	result := entities.ParsedCriteria{
		Inclusion: []entities.Criterion{},
		Exclusion: []entities.Criterion{},
	}

	section := ""
	for _, fragment := range p.Segment(text) {
		if m := sectionHeader.FindStringSubmatch(fragment); m != nil {
			section = m[1]
			fragment = leadingMarker.ReplaceAllString(fragment[len(m[0]):], "")
		}

		criterion, ok := p.ParseFragment(fragment)
		if !ok {
			continue
		}
		if section == "exclusion" {
			criterion.Type = entities.CriterionExclusion
		}

		if criterion.Type == entities.CriterionExclusion {
			result.Exclusion = append(result.Exclusion, criterion)
		} else {
			result.Inclusion = append(result.Inclusion, criterion)
		}
	}
	return result
}

// ParseFragment classifies and categorizes a single fragment. It reports
// false when the fragment is too short or no pattern matches with enough
// confidence.
//
// Only the highest-confidence match survives, and ties go to the category
// listed first, so a fragment stating both an age and a lab limit yields
// one criterion.
func (p *EligibilityParser) ParseFragment(fragment string) (entities.Criterion, bool) {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if utf8.RuneCountInString(fragment) < minFragmentLength {
		return entities.Criterion{}, false
	}

	var (
		best           entities.Criterion
		bestConfidence float64
	)
	for _, group := range criterionPatterns {
		for _, re := range group.patterns {
			for _, loc := range re.FindAllStringSubmatchIndex(fragment, -1) {
				match := fragment[loc[0]:loc[1]]
				confidence := matchConfidence(match)
				if confidence <= bestConfidence {
					continue
				}
				bestConfidence = confidence
				best = entities.Criterion{
					Category:   group.category,
					Value:      extractValue(group.category, fragment, loc),
					Operator:   extractOperator(match),
					Confidence: confidence,
				}
			}
		}
	}

	if bestConfidence <= minCriterionConfidence {
		return entities.Criterion{}, false
	}

	best.Text = fragment
	best.Type = classifyPolarity(fragment)
	return best, true
}

// ParseTrial parses both criteria columns of a trial. Everything parsed
// from the exclusion column is an exclusion regardless of wording.
func (p *EligibilityParser) ParseTrial(trial entities.Trial) entities.ParsedCriteria {
	parsed := p.Parse(trial.InclusionCriteria)

	excluded := p.Parse(trial.ExclusionCriteria)
	for _, c := range append(excluded.Inclusion, excluded.Exclusion...) {
		c.Type = entities.CriterionExclusion
		parsed.Exclusion = append(parsed.Exclusion, c)
	}
	return parsed
}

// Structure groups parsed criteria by polarity and category.
func (p *EligibilityParser) Structure(parsed entities.ParsedCriteria) entities.StructuredCriteria {
	structured := entities.NewStructuredCriteria()
	add := func(t entities.CriterionType, c entities.Criterion) {
		category := c.Category
		if !category.IsKnown() {
			category = entities.CategoryOther
		}
		structured[t][category] = append(structured[t][category], entities.CriterionSummary{
			Text:       c.Text,
			Value:      c.Value,
			Operator:   c.Operator,
			Confidence: c.Confidence,
		})
	}

	for _, c := range parsed.Inclusion {
		add(entities.CriterionInclusion, c)
	}
	for _, c := range parsed.Exclusion {
		add(entities.CriterionExclusion, c)
	}
	return structured
}

// StructureText parses and structures criteria text in one step.
func (p *EligibilityParser) StructureText(text string) entities.StructuredCriteria {
	return p.Structure(p.Parse(text))
}

func classifyPolarity(fragment string) entities.CriterionType {
	exclusion := countKeywords(fragment, exclusionKeywords)
	inclusion := countKeywords(fragment, inclusionKeywords)

	negative := 0
	for _, re := range negativeLanguage {
		if re.MatchString(fragment) {
			negative++
		}
	}

	if exclusion > 0 || negative > inclusion {
		return entities.CriterionExclusion
	}
	return entities.CriterionInclusion
}

func countKeywords(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func matchConfidence(match string) float64 {
	confidence := 0.5
	if match != "" {
		confidence += 0.2
	}
	if utf8.RuneCountInString(match) > 10 {
		confidence += 0.1
	}
	for _, term := range highValueTerms {
		if strings.Contains(match, term) {
			confidence += 0.1
			break
		}
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// extractValue reads the criterion value from submatch indices: paired
// numeric captures are joined, otherwise the first capture or the whole
// match is used.
func extractValue(category entities.CriterionCategory, text string, loc []int) string {
	groups := make([]string, 0, len(loc)/2-1)
	for i := 2; i+1 < len(loc); i += 2 {
		if loc[i] < 0 {
			groups = append(groups, "")
			continue
		}
		groups = append(groups, text[loc[i]:loc[i+1]])
	}
	full := text[loc[0]:loc[1]]

	if len(groups) >= 2 && groups[0] != "" && groups[1] != "" {
		switch category {
		case entities.CategoryAge:
			return groups[0] + "-" + groups[1]
		case entities.CategoryWeight, entities.CategoryLaboratory:
			return groups[0] + " " + groups[1]
		}
	}
	if len(groups) == 0 || groups[0] == "" {
		return full
	}
	return groups[0]
}

func extractOperator(match string) entities.Operator {
	switch {
	case operatorGreater.MatchString(match):
		return entities.OperatorGreaterThan
	case operatorLess.MatchString(match):
		return entities.OperatorLessThan
	case operatorEqual.MatchString(match):
		return entities.OperatorEqual
	case operatorBetween.MatchString(match):
		return entities.OperatorBetween
	}
	return entities.OperatorNone
}
