package clinicaltrials

import (
	"regexp"
	"strings"

	"github.com/zatekoja/trialmatch/internal/domain/entities"
)

const studyURLPrefix = "https://clinicaltrials.gov/study/"

var (
	exclusionHeader = regexp.MustCompile(`(?i)\bexclusion\s+criteria\s*:?`)
	inclusionHeader = regexp.MustCompile(`(?i)^\s*(?:key\s+)?inclusion\s+criteria\s*:?`)
)

// SearchResponse is one page of the v2 studies endpoint.
type SearchResponse struct {
	Studies       []Study `json:"studies"`
	NextPageToken string  `json:"nextPageToken"`
	TotalCount    int     `json:"totalCount"`
}

// Study mirrors the parts of a v2 study record the trial table uses.
type Study struct {
	ProtocolSection ProtocolSection `json:"protocolSection"`
}

type ProtocolSection struct {
	Identification struct {
		NCTID      string `json:"nctId"`
		BriefTitle string `json:"briefTitle"`
	} `json:"identificationModule"`
	Status struct {
		OverallStatus string `json:"overallStatus"`
	} `json:"statusModule"`
	Description struct {
		BriefSummary string `json:"briefSummary"`
	} `json:"descriptionModule"`
	Conditions struct {
		Conditions []string `json:"conditions"`
	} `json:"conditionsModule"`
	ArmsInterventions struct {
		Interventions []Intervention `json:"interventions"`
	} `json:"armsInterventionsModule"`
	Eligibility struct {
		EligibilityCriteria string   `json:"eligibilityCriteria"`
		Sex                 string   `json:"sex"`
		MinimumAge          string   `json:"minimumAge"`
		MaximumAge          string   `json:"maximumAge"`
		StdAges             []string `json:"stdAges"`
	} `json:"eligibilityModule"`
	Design struct {
		StudyType string   `json:"studyType"`
		Phases    []string `json:"phases"`
	} `json:"designModule"`
	ContactsLocations struct {
		Locations []StudyLocation `json:"locations"`
	} `json:"contactsLocationsModule"`
}

type Intervention struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type StudyLocation struct {
	Facility string `json:"facility"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
	Status   string `json:"status"`
}

// MapStudy normalizes a registry study into a trial table row. Studies
// without an NCT id are skipped.
func MapStudy(study Study) (entities.Trial, bool) {
	p := study.ProtocolSection
	nctID := strings.TrimSpace(p.Identification.NCTID)
	if nctID == "" {
		return entities.Trial{}, false
	}

	sex := p.Eligibility.Sex
	if sex == "" {
		sex = "ALL"
	}
	inclusion, exclusion := splitEligibility(p.Eligibility.EligibilityCriteria)

	return entities.Trial{
		NCTNumber:         nctID,
		Title:             p.Identification.BriefTitle,
		URL:               studyURLPrefix + nctID,
		Status:            p.Status.OverallStatus,
		BriefSummary:      strings.TrimSpace(p.Description.BriefSummary),
		Conditions:        strings.Join(p.Conditions.Conditions, ", "),
		Interventions:     interventions(p.ArmsInterventions.Interventions),
		Sex:               sex,
		Age:               ageText(p.Eligibility.MinimumAge, p.Eligibility.MaximumAge, p.Eligibility.StdAges),
		Phases:            strings.Join(p.Design.Phases, ", "),
		StudyType:         p.Design.StudyType,
		Locations:         locations(p.ContactsLocations.Locations),
		InclusionCriteria: inclusion,
		ExclusionCriteria: exclusion,
	}, true
}

func interventions(items []Intervention) string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item.Name == "" {
			continue
		}
		out = append(out, item.Type+": "+item.Name)
	}
	return strings.Join(out, "; ")
}

// ageText renders "18 Years - 75 Years", "18 Years and older" or
// "up to 17 Years", followed by the standard age groups in parentheses.
func ageText(minimum, maximum string, stdAges []string) string {
	var text string
	switch {
	case minimum != "" && maximum != "":
		text = minimum + " - " + maximum
	case minimum != "":
		text = minimum + " and older"
	case maximum != "":
		text = "up to " + maximum
	default:
		text = "Not specified"
	}
	if len(stdAges) > 0 {
		text += " (" + strings.Join(stdAges, ", ") + ")"
	}
	return text
}

// locations renders "facility, city, state, country" entries joined by
// "; ". Entries with no place parts are dropped.
func locations(sites []StudyLocation) string {
	out := make([]string, 0, len(sites))
	for _, site := range sites {
		parts := make([]string, 0, 4)
		for _, part := range []string{site.City, site.State, site.Country} {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, strings.TrimSpace(site.Facility)+", "+strings.Join(parts, ", "))
	}
	return strings.Join(out, "; ")
}

// splitEligibility separates the registry's single criteria block into its
// inclusion and exclusion sections, dropping the section headers.
func splitEligibility(text string) (string, string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	inclusion, exclusion := text, ""
	if loc := exclusionHeader.FindStringIndex(text); loc != nil {
		inclusion, exclusion = text[:loc[0]], text[loc[1]:]
	}
	inclusion = inclusionHeader.ReplaceAllString(inclusion, "")
	return strings.TrimSpace(inclusion), strings.TrimSpace(exclusion)
}
