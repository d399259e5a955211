package retrieval

import (
	"context"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/document"
)

// ChunkLookup resolves chunk ids to stored chunks.
type ChunkLookup interface {
	GetChunks(ctx context.Context, ids []string) (map[string]document.Chunk, error)
}

// Deduplicate groups candidates by chunk id in one pass. BestScore is the
// maximum score; on equal scores the first-seen variant is kept. Output is
// in first-seen order.
func Deduplicate(candidates []Candidate) []DedupedCandidate {
	pos := make(map[string]int, len(candidates))
	out := make([]DedupedCandidate, 0, len(candidates))
	for _, c := range candidates {
		i, ok := pos[c.ChunkID]
		if !ok {
			pos[c.ChunkID] = len(out)
			out = append(out, DedupedCandidate{ChunkID: c.ChunkID, BestScore: c.Score, Variant: c.Variant})
			continue
		}
		if c.Score > out[i].BestScore {
			out[i].BestScore = c.Score
			out[i].Variant = c.Variant
		}
	}
	return out
}

// Hydrate attaches stored chunks in one lookup. Candidates whose chunk is no
// longer stored are dropped.
func Hydrate(ctx context.Context, store ChunkLookup, deduped []DedupedCandidate) ([]DedupedCandidate, error) {
	if len(deduped) == 0 {
		return nil, nil
	}
	ids := make([]string, len(deduped))
	for i, d := range deduped {
		ids[i] = d.ChunkID
	}
	chunks, err := store.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]DedupedCandidate, 0, len(deduped))
	for _, d := range deduped {
		ch, ok := chunks[d.ChunkID]
		if !ok {
			continue
		}
		d.Chunk = ch
		out = append(out, d)
	}
	return out, nil
}
