package retrieval

import (
	"context"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/embed"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/index"
)

// DefaultSearchTopK bounds the candidates returned per variant.
const DefaultSearchTopK = 25

// HybridSearcher queries the index with both a dense and a sparse
// representation of one variant. Fusion happens index-side.
type HybridSearcher struct {
	embedder embed.Embedder
	sparse   *embed.SparseEncoder
	index    index.Index
	topK     int
}

func NewHybridSearcher(embedder embed.Embedder, sparse *embed.SparseEncoder, idx index.Index, topK int) *HybridSearcher {
	if topK <= 0 {
		topK = DefaultSearchTopK
	}
	if sparse == nil {
		sparse = embed.NewSparseEncoder()
	}
	return &HybridSearcher{embedder: embedder, sparse: sparse, index: idx, topK: topK}
}

// Embed returns the dense vector for one text.
func (s *HybridSearcher) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, ErrMalformedResponse
	}
	return vecs[0], nil
}

// Query runs one index query for variant with a precomputed dense vector,
// passing the index's ordering through.
func (s *HybridSearcher) Query(ctx context.Context, variant string, dense []float32) ([]Candidate, error) {
	hits, err := s.index.Query(ctx, index.HybridQuery{
		Dense:  dense,
		Sparse: s.sparse.EncodeQuery(variant),
		Limit:  s.topK,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, len(hits))
	for i, h := range hits {
		out[i] = Candidate{ChunkID: h.ChunkID, Score: h.Score, Variant: variant}
	}
	return out, nil
}

// Search embeds variant and queries the index.
func (s *HybridSearcher) Search(ctx context.Context, variant string) ([]Candidate, error) {
	dense, err := s.Embed(ctx, variant)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, variant, dense)
}
