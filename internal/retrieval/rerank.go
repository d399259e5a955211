package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/rerank"
)

// Reranker scores deduplicated candidates against the original query.
type Reranker struct {
	scorer rerank.Scorer
}

func NewReranker(scorer rerank.Scorer) *Reranker {
	return &Reranker{scorer: scorer}
}

// Rerank scores every candidate in one batched scorer call and orders the
// result by score, descending, ties by ascending chunk id.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []DedupedCandidate) ([]RankedResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Chunk.Text
	}
	scores, err := r.scorer.Score(ctx, query, texts)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("%w: %d scores for %d candidates", ErrMalformedResponse, len(scores), len(candidates))
	}

	out := make([]RankedResult, len(candidates))
	for i, c := range candidates {
		out[i] = RankedResult{ChunkID: c.ChunkID, RerankScore: scores[i], Chunk: c.Chunk}
	}
	SortRanked(out)
	return out, nil
}

// SortRanked orders results by RerankScore descending, then ChunkID ascending.
func SortRanked(results []RankedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RerankScore != results[j].RerankScore {
			return results[i].RerankScore > results[j].RerankScore
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}
