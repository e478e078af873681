package evaluation

// RecallAtK computes Recall@K: the fraction of expected trials found in the
// top-K matches. Returns 0.0 if expected is empty.
func RecallAtK(expected, retrieved []string, k int) float64 {
	if len(expected) == 0 {
		return 0.0
	}
	return float64(HitsAtK(expected, retrieved, k)) / float64(len(expected))
}

// MRRAtK computes Mean Reciprocal Rank at K: the reciprocal of the rank of
// the first expected trial in the top-K matches, or 0.0 when none is there.
func MRRAtK(expected, retrieved []string, k int) float64 {
	want := asSet(expected)
	for i, id := range topK(retrieved, k) {
		if _, ok := want[id]; ok {
			return 1.0 / float64(i+1)
		}
	}
	return 0.0
}

// HitsAtK counts how many of ids appear in the top-K matches.
func HitsAtK(ids, retrieved []string, k int) int {
	want := asSet(ids)
	hits := 0
	for _, id := range topK(retrieved, k) {
		if _, ok := want[id]; ok {
			hits++
		}
	}
	return hits
}

func topK(retrieved []string, k int) []string {
	if k < len(retrieved) {
		return retrieved[:k]
	}
	return retrieved
}

func asSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
