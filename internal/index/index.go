// Package index stores chunk vectors and answers hybrid dense+sparse queries.
package index

import (
	"context"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/embed"
)

// Point is one indexed chunk.
type Point struct {
	ChunkID    string
	DocumentID string
	ChunkIndex int
	Dense      []float32
	Sparse     embed.SparseVector
}

// HybridQuery carries both representations of one query text.
type HybridQuery struct {
	Dense  []float32
	Sparse embed.SparseVector
	Limit  int
}

// Hit is one fused result, ordered by the index.
type Hit struct {
	ChunkID string
	Score   float64
}

// Index is the vector index used for hybrid retrieval.
type Index interface {
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, points []Point) error
	Query(ctx context.Context, q HybridQuery) ([]Hit, error)
	DeleteDocument(ctx context.Context, documentID string) error
	Close()
}

// rrfK dampens the contribution of top ranks in reciprocal rank fusion.
const rrfK = 60
