package providers

import (
	"context"
)

// Entity groups reported by an external NER service.
const (
	EntityGroupDisease   = "DISEASE"
	EntityGroupSymptom   = "SYMPTOM"
	EntityGroupAge       = "AGE"
	EntityGroupSex       = "SEX"
	EntityGroupGender    = "GENDER"
	EntityGroupDrug      = "DRUG"
	EntityGroupTreatment = "TREATMENT"
	EntityGroupLabValue  = "LAB_VALUE"
	EntityGroupBiomarker = "BIOMARKER"
)

// RecognizedEntity is one span returned by an entity recognizer.
type RecognizedEntity struct {
	Text  string  `json:"word"`
	Group string  `json:"entity_group"`
	Score float64 `json:"score"`
}

// EntityRecognizer is an external named-entity recognition service.
type EntityRecognizer interface {
	Recognize(ctx context.Context, text string) ([]RecognizedEntity, error)
}
