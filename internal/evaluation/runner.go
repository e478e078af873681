package evaluation

import (
	"context"
	"time"

	"github.com/zatekoja/trialmatch/internal/application/services"
)

// cutoff is the ranking depth every metric is computed at.
const cutoff = 10

// Screener is the part of the screening service the runner drives.
type Screener interface {
	Screen(ctx context.Context, req services.ScreeningRequest) services.ScreeningResult
}

// Runner runs evaluation across a set of golden cases.
type Runner struct {
	screener Screener
}

func NewRunner(screener Screener) *Runner {
	return &Runner{screener: screener}
}

func (r *Runner) Run(ctx context.Context, cases []GoldenCase) (*EvalSummary, error) {
	summary := &EvalSummary{
		TotalCases: len(cases),
		ByFocus:    make(map[Focus]*FocusSummary),
	}

	for _, gc := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		result := r.screener.Screen(ctx, services.ScreeningRequest{
			PatientText:      gc.PatientText,
			Location:         gc.Location,
			MaxDistanceMiles: gc.MaxDistanceMiles,
			MaxResults:       cutoff,
		})
		duration := time.Since(start)

		ids := make([]string, len(result.Matches))
		for i, m := range result.Matches {
			ids[i] = m.Trial.NCTNumber
		}

		r.updateSummary(summary, EvalResult{
			CaseID:       gc.ID,
			Focus:        gc.Focus,
			RecallAt10:   RecallAtK(gc.ExpectedTrials, ids, cutoff),
			MRRAt10:      MRRAtK(gc.ExpectedTrials, ids, cutoff),
			ExcludedHits: HitsAtK(gc.ExcludedTrials, ids, cutoff),
			MatchCount:   len(ids),
			RetrievedIDs: ids,
			Warnings:     result.Warnings,
			Latency:      duration,
		})
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.Results = append(s.Results, res)
	s.AvgRecallAt10 += res.RecallAt10
	s.AvgMRRAt10 += res.MRRAt10
	s.AvgLatency += res.Latency
	s.ExcludedHits += res.ExcludedHits
	if res.MatchCount > 0 {
		s.CasesWithHits++
	}

	if _, ok := s.ByFocus[res.Focus]; !ok {
		s.ByFocus[res.Focus] = &FocusSummary{}
	}
	fs := s.ByFocus[res.Focus]
	fs.Count++
	fs.AvgRecallAt10 += res.RecallAt10
	fs.AvgMRRAt10 += res.MRRAt10
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	if s.TotalCases > 0 {
		n := float64(s.TotalCases)
		s.AvgRecallAt10 /= n
		s.AvgMRRAt10 /= n
		s.AvgLatency /= time.Duration(s.TotalCases)
	}

	for _, fs := range s.ByFocus {
		if fs.Count > 0 {
			n := float64(fs.Count)
			fs.AvgRecallAt10 /= n
			fs.AvgMRRAt10 /= n
		}
	}
}
