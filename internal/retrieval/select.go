package retrieval

// DefaultRerankTopM is the size of the grounding set.
const DefaultRerankTopM = 12

// Select keeps the first min(topM, len) results and numbers them 1..N.
// The returned slice is a copy; ranked is not modified.
func Select(ranked []RankedResult, topM int) []RankedResult {
	if topM <= 0 {
		topM = DefaultRerankTopM
	}
	n := min(topM, len(ranked))
	out := make([]RankedResult, n)
	copy(out, ranked[:n])
	for i := range out {
		out[i].CitationIndex = i + 1
	}
	return out
}
