package evaluation

import "fmt"

// QualityGates are the minimum aggregate scores a matcher change must keep.
type QualityGates struct {
	MinRecallAt10   float64
	MinMRRAt10      float64
	MaxExcludedHits int
}

// DefaultQualityGates returns the thresholds cmd/evaluate enforces.
func DefaultQualityGates() QualityGates {
	return QualityGates{
		MinRecallAt10:   0.8,
		MinMRRAt10:      0.6,
		MaxExcludedHits: 0,
	}
}

// Check returns one message per violated gate; an empty slice means the run passed.
func (g QualityGates) Check(s *EvalSummary) []string {
	var violations []string
	if s.AvgRecallAt10 < g.MinRecallAt10 {
		violations = append(violations, fmt.Sprintf("recall@10 %.3f below %.3f", s.AvgRecallAt10, g.MinRecallAt10))
	}
	if s.AvgMRRAt10 < g.MinMRRAt10 {
		violations = append(violations, fmt.Sprintf("mrr@10 %.3f below %.3f", s.AvgMRRAt10, g.MinMRRAt10))
	}
	if s.ExcludedHits > g.MaxExcludedHits {
		violations = append(violations, fmt.Sprintf("%d excluded trials ranked in the top 10 (max %d)", s.ExcludedHits, g.MaxExcludedHits))
	}
	return violations
}
