package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/zatekoja/trialmatch/internal/domain/entities"
	"github.com/zatekoja/trialmatch/internal/domain/providers"
	"github.com/zatekoja/trialmatch/internal/infrastructure/observability"
	"github.com/zatekoja/trialmatch/pkg/utils"
)

var (
	conditionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(breast|lung|prostate|colon|colorectal|pancreatic|ovarian|brain|liver|kidney|bladder|cervical|endometrial|thyroid|leukemia|lymphoma|melanoma|sarcoma|myeloma|cancer|carcinoma|tumor|tumour|neoplasm)\b`),
		regexp.MustCompile(`\b(stage\s+[ivx0-9]+)\b`),
		regexp.MustCompile(`\b(her2|her-2|egfr|kras|braf|alk|ros1|pdl1|pd-l1|msi|tmb|brca1|brca2)\s*(positive|negative|high|low|mutated|wild|type)\b`),
		regexp.MustCompile(`\b(metastatic|metastasis|advanced|locally\s+advanced|recurrent|relapse)\b`),
	}

	demographicPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(male|female|m|f)\b`),
		regexp.MustCompile(`\b(\d+)\s*(years?\s*old\b|yo\b|y\.o\.)`),
		regexp.MustCompile(`\b(adult|older\s+adult|pediatric|child|infant)\b`),
	}

	treatmentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(chemotherapy|chemo|radiation|radiotherapy|surgery|surgical|immunotherapy|targeted\s+therapy|hormone\s+therapy)\b`),
		regexp.MustCompile(`\b(prior|previous|history\s+of|no\s+prior)\s+(chemotherapy|chemo|radiation|surgery)\b`),
		regexp.MustCompile(`\b(smoker|non-smoker|never\s+smoked|former\s+smoker)\b`),
	}

	labValuePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(hemoglobin|hgb|hematocrit|hct|wbc|white\s+blood\s+cell|platelets?|creatinine|alt|ast|bilirubin)\s*(?:of|is|:|=|<|>|≤|≥)?\s*(\d+(?:\.\d+)?)`),
		regexp.MustCompile(`\b(ecog)\s*(?:performance\s*status|ps)?\s*(?:of|is|:|=)?\s*([0-4])\b`),
	}

	// Trial phases are only useful to the matcher's phase field, so they go
	// to all_entities without a category.
	phasePattern = regexp.MustCompile(`\b(?:early\s+)?phase\s*(?:[1-4]|iv|i{1,3})\b`)

	// Single words that are useful match signals even when no pattern fires.
	medicalVocabulary = entities.NewEntitySet(
		"cancer", "tumor", "tumour", "malignant", "metastatic", "stage", "grade",
		"biopsy", "pathology", "oncology", "chemotherapy", "radiation", "surgery",
		"male", "female", "years", "old", "adult", "pediatric", "child",
	)
)

// RuleBasedExtractor tags patient text with a fixed regex battery. It holds
// no mutable state and is safe to share.
type RuleBasedExtractor struct{}

// NewRuleBasedExtractor creates the rule-based extractor.
func NewRuleBasedExtractor() RuleBasedExtractor {
	return RuleBasedExtractor{}
}

// Extract converts raw patient text into categorized entity sets. It never
// fails; empty input yields an empty bundle.
func (RuleBasedExtractor) Extract(text string) entities.EntityBundle {
	bundle := entities.NewEntityBundle()

	text = utils.NormalizeText(text)
	if text == "" {
		return bundle
	}

	collect(text, conditionPatterns, bundle.Conditions, bundle.All)
	collect(text, demographicPatterns, bundle.Demographics, bundle.All)
	collect(text, treatmentPatterns, bundle.Treatments, bundle.All)
	collect(text, labValuePatterns, bundle.LabValues, bundle.All)

	for _, phase := range phasePattern.FindAllString(text, -1) {
		bundle.All.Add(phase)
	}

	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ",.;:!?()[]\"'")
		if medicalVocabulary.Has(word) {
			bundle.All.Add(word)
		}
	}

	return bundle
}

func collect(text string, patterns []*regexp.Regexp, category, all entities.EntitySet) {
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			entity := joinGroups(m)
			category.Add(entity)
			all.Add(entity)
		}
	}
}

// joinGroups flattens a submatch: the full match when the pattern has no
// groups, otherwise the participating groups joined by a single space.
func joinGroups(m []string) string {
	if len(m) == 1 {
		return m[0]
	}
	parts := make([]string, 0, len(m)-1)
	for _, g := range m[1:] {
		if g != "" {
			parts = append(parts, g)
		}
	}
	return strings.Join(parts, " ")
}

// EntityExtractionService prefers an external recognizer when one is
// configured and falls back to the rule-based extractor on any failure.
type EntityExtractionService struct {
	rules      RuleBasedExtractor
	recognizer providers.EntityRecognizer
	timeout    time.Duration
	metrics    *observability.Metrics
}

// NewEntityExtractionService creates the extraction service. recognizer may be nil.
func NewEntityExtractionService(recognizer providers.EntityRecognizer, timeout time.Duration, metrics *observability.Metrics) *EntityExtractionService {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &EntityExtractionService{
		rules:      NewRuleBasedExtractor(),
		recognizer: recognizer,
		timeout:    timeout,
		metrics:    metrics,
	}
}

// Extract returns the entity bundle for text.
func (s *EntityExtractionService) Extract(ctx context.Context, text string) entities.EntityBundle {
	if strings.TrimSpace(text) == "" {
		return entities.NewEntityBundle()
	}
	if s.recognizer == nil {
		return s.rules.Extract(text)
	}

	logger := observability.LoggerFromContext(ctx)

	nerCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	spans, err := s.recognizer.Recognize(nerCtx, utils.NormalizeText(text))
	if err != nil {
		logger.Warn().Err(err).Msg("entity recognizer failed; using rule-based extraction")
		observability.RecordFallback(ctx, s.metrics, "ner")
		return s.rules.Extract(text)
	}
	if len(spans) == 0 {
		return s.rules.Extract(text)
	}

	return bundleFromSpans(spans)
}

func bundleFromSpans(spans []providers.RecognizedEntity) entities.EntityBundle {
	bundle := entities.NewEntityBundle()
	for _, span := range spans {
		word := strings.ToLower(strings.TrimSpace(span.Text))
		if word == "" {
			continue
		}
		bundle.All.Add(word)

		switch strings.ToUpper(span.Group) {
		case providers.EntityGroupDisease, providers.EntityGroupSymptom:
			bundle.Conditions.Add(word)
		case providers.EntityGroupAge, providers.EntityGroupSex, providers.EntityGroupGender:
			bundle.Demographics.Add(word)
		case providers.EntityGroupDrug, providers.EntityGroupTreatment:
			bundle.Treatments.Add(word)
		case providers.EntityGroupLabValue, providers.EntityGroupBiomarker:
			bundle.LabValues.Add(word)
		}
	}
	return bundle
}
