package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/embed"
)

func point(id, doc string, dense []float32, idx []uint32, vals []float32) Point {
	return Point{ChunkID: id, DocumentID: doc, Dense: dense, Sparse: embed.SparseVector{Indices: idx, Values: vals}}
}

func TestMemory_HybridQueryFusesBothLists(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	require.NoError(t, m.EnsureCollection(ctx, 2))
	require.NoError(t, m.Upsert(ctx, []Point{
		point("a", "d1", []float32{1, 0}, []uint32{1}, []float32{1}),
		point("b", "d1", []float32{0.9, 0.1}, []uint32{2}, []float32{1}),
		point("c", "d2", []float32{0, 1}, []uint32{1, 2}, []float32{1, 1}),
	}))

	hits, err := m.Query(ctx, HybridQuery{
		Dense:  []float32{1, 0},
		Sparse: embed.SparseVector{Indices: []uint32{1}, Values: []float32{1}},
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	// "a" ranks first in both lists.
	assert.Equal(t, "a", hits[0].ChunkID)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestMemory_LimitAndEmptyQuery(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	var pts []Point
	for i, id := range []string{"p1", "p2", "p3", "p4"} {
		pts = append(pts, point(id, "d", []float32{float32(i + 1), 1}, nil, nil))
	}
	require.NoError(t, m.Upsert(ctx, pts))

	hits, err := m.Query(ctx, HybridQuery{Dense: []float32{1, 1}, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = m.Query(ctx, HybridQuery{Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemory_DeleteDocumentAndReplace(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	require.NoError(t, m.Upsert(ctx, []Point{
		point("a", "d1", []float32{1, 0}, []uint32{7}, []float32{1}),
		point("b", "d2", []float32{0, 1}, []uint32{7}, []float32{1}),
	}))
	require.NoError(t, m.Upsert(ctx, []Point{point("a", "d1", []float32{1, 0}, []uint32{7}, []float32{1})}))
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 2, m.df[7])

	require.NoError(t, m.DeleteDocument(ctx, "d1"))
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1, m.df[7])

	hits, err := m.Query(ctx, HybridQuery{Sparse: embed.SparseVector{Indices: []uint32{7}, Values: []float32{1}}, Limit: 5})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ChunkID)
}

func TestFuse_TiesBrokenByID(t *testing.T) {
	hits := fuse(10, []scored{{id: "z", score: 1}}, []scored{{id: "y", score: 1}})
	require.Len(t, hits, 2)
	assert.Equal(t, "y", hits[0].ChunkID)
	assert.Equal(t, "z", hits[1].ChunkID)
	assert.InDelta(t, 1.0/61, hits[0].Score, 1e-12)
}
