package trialtable

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/zatekoja/trialmatch/internal/domain/entities"
)

// Columns appended to the trial columns in a match export.
const (
	ColumnConfidenceScore  = "Confidence Score"
	ColumnConfidencePct    = "Confidence %"
	ColumnDistance         = "Distance (mi)"
	ColumnClosestFacility  = "Closest Facility"
	ColumnTravelCategory   = "Travel Category"
	ColumnMatchExplanation = "Match Explanation"
)

var matchColumns = []string{
	ColumnConfidenceScore,
	ColumnConfidencePct,
	ColumnDistance,
	ColumnClosestFacility,
	ColumnTravelCategory,
	ColumnMatchExplanation,
}

// WriteMatches exports ranked matches. Distance columns are blank for
// matches that were not geographically filtered.
func WriteMatches(w io.Writer, matches []entities.TrialMatch) error {
	writer := csv.NewWriter(w)

	header := make([]string, 0, len(entities.TrialColumns)+len(matchColumns))
	header = append(header, entities.TrialColumns...)
	header = append(header, matchColumns...)
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, m := range matches {
		distance := ""
		if m.DistanceMiles != nil {
			distance = strconv.FormatFloat(*m.DistanceMiles, 'f', 1, 64)
		}
		row := append(m.Trial.Row(),
			strconv.FormatFloat(m.Score, 'f', 2, 64),
			strconv.FormatFloat(m.ConfidencePct, 'f', 1, 64),
			distance,
			m.ClosestFacility,
			m.TravelCategory,
			strings.Join(m.Explanations, "; "),
		)
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
