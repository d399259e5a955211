package rerank

import (
	"context"
	"math"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/embed"
)

// Overlap is an offline Scorer: the fraction of query terms present in the
// passage, with a small length normalization.
type Overlap struct{}

var _ Scorer = Overlap{}

func (Overlap) Score(_ context.Context, query string, texts []string) ([]float64, error) {
	qTerms := make(map[string]struct{})
	for _, t := range embed.Tokenize(query) {
		qTerms[t] = struct{}{}
	}
	scores := make([]float64, len(texts))
	if len(qTerms) == 0 {
		return scores, nil
	}
	for i, text := range texts {
		terms := embed.Tokenize(text)
		present := make(map[string]struct{})
		for _, t := range terms {
			if _, ok := qTerms[t]; ok {
				present[t] = struct{}{}
			}
		}
		coverage := float64(len(present)) / float64(len(qTerms))
		scores[i] = coverage / (1 + 0.1*math.Log1p(float64(len(terms))))
	}
	return scores, nil
}
