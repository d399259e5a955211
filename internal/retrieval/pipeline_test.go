package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/document"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/index"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/llm"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/store"
)

type fixture struct {
	gen      *fakeGen
	embedder *fakeEmbedder
	index    *fakeIndex
	scorer   *numberScorer
	store    *store.Memory
	pipeline *Pipeline
}

func newFixture(t *testing.T, timeouts Timeouts) *fixture {
	t.Helper()
	f := &fixture{
		gen: &fakeGen{expandOut: "v0\nv1\nv2"},
		embedder: &fakeEmbedder{vecs: map[string]float32{
			"What is X?": 9, "v0": 0, "v1": 1, "v2": 2,
		}},
		index:  &fakeIndex{hits: map[float32][]index.Hit{}},
		scorer: &numberScorer{},
		store:  store.NewMemory(),
	}
	var chunks []document.Chunk
	for i := range 60 {
		chunks = append(chunks, document.Chunk{ID: chunkID(i), DocumentID: "doc", Index: i, Text: fmt.Sprintf("chunk %d", i)})
	}
	require.NoError(t, f.store.SaveDocument(context.Background(), document.Info{ID: "doc"}, chunks))

	f.pipeline = NewPipeline(
		NewExpander(f.gen, 3, timeouts.Expand, 0, nil),
		NewHybridSearcher(f.embedder, nil, f.index, 25),
		f.store,
		NewReranker(f.scorer),
		Options{RerankTopM: 12, SearchConcurrency: 2, Timeouts: timeouts},
		nil,
	)
	return f
}

func TestPipeline_ThreeVariantsWithOverlap(t *testing.T) {
	f := newFixture(t, Timeouts{})
	// 75 candidates, 30 of them repeats: 45 distinct chunks.
	f.index.hits[0] = hitsFor(span(0, 25)...)
	f.index.hits[1] = hitsFor(append(span(0, 10), span(25, 40)...)...)
	f.index.hits[2] = hitsFor(append(span(10, 30), span(40, 45)...)...)

	gs, err := f.pipeline.Retrieve(context.Background(), "What is X?")
	require.NoError(t, err)

	assert.Equal(t, []string{"v0", "v1", "v2"}, gs.Variants)
	assert.Equal(t, 75, gs.Candidates)
	assert.Equal(t, 45, gs.Deduped)
	assert.LessOrEqual(t, gs.Deduped, 45)
	require.Len(t, gs.Results, 12)
	for i, r := range gs.Results {
		assert.Equal(t, i+1, r.CitationIndex)
		assert.Equal(t, chunkID(44-i), r.ChunkID)
		if i > 0 {
			assert.GreaterOrEqual(t, gs.Results[i-1].RerankScore, r.RerankScore)
		}
	}
	assert.EqualValues(t, 3, f.index.queries.Load())
	assert.EqualValues(t, 1, f.scorer.calls.Load(), "rerank should be one batched call")
}

func TestPipeline_OriginalQueryEmbeddingIsReused(t *testing.T) {
	f := newFixture(t, Timeouts{})
	f.gen.expandOut = "v0"
	f.index.hits[9] = hitsFor(1, 2)
	f.index.hits[0] = hitsFor(2, 3)

	gs, err := f.pipeline.Retrieve(context.Background(), "What is X?")
	require.NoError(t, err)
	assert.Equal(t, []string{"v0", "What is X?"}, gs.Variants)
	assert.Equal(t, 3, gs.Deduped)
	// One call for the original query, one for "v0".
	assert.Equal(t, 2, f.embedder.calls)
}

func TestPipeline_MissingChunksAreDropped(t *testing.T) {
	f := newFixture(t, Timeouts{})
	f.gen.expandOut = "v0"
	f.index.hits[0] = []index.Hit{{ChunkID: "gone", Score: 1}, {ChunkID: chunkID(5), Score: 0.5}}

	gs, err := f.pipeline.Retrieve(context.Background(), "What is X?")
	require.NoError(t, err)
	require.Len(t, gs.Results, 1)
	assert.Equal(t, chunkID(5), gs.Results[0].ChunkID)
}

func TestPipeline_SearchTimeoutFailsQuery(t *testing.T) {
	f := newFixture(t, Timeouts{Search: 20 * time.Millisecond})
	f.index.block = true

	_, err := f.pipeline.Retrieve(context.Background(), "What is X?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExternalTimeout)

	var callErr *ExternalCallError
	require.True(t, errors.As(err, &callErr))
	assert.Equal(t, "search", callErr.Op)
}

func TestPipeline_ExpansionTimeoutFailsQuery(t *testing.T) {
	f := newFixture(t, Timeouts{Expand: 20 * time.Millisecond})
	f.gen.block = true

	_, err := f.pipeline.Retrieve(context.Background(), "What is X?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExternalTimeout)
	assert.Zero(t, f.index.queries.Load())
}

func TestPipeline_CancelStopsSearches(t *testing.T) {
	f := newFixture(t, Timeouts{})
	f.index.block = true
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := f.pipeline.Retrieve(ctx, "What is X?")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrExternalTimeout)
}

func TestPipeline_EmptyQuery(t *testing.T) {
	f := newFixture(t, Timeouts{})
	_, err := f.pipeline.Retrieve(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestAnswerer_ZeroHitsYieldsUnknown(t *testing.T) {
	f := newFixture(t, Timeouts{})
	f.gen.answer = "X is 42 [Source 1]."
	a := NewAnswerer(f.pipeline, f.gen, time.Second, nil)

	ans, err := a.Answer(context.Background(), "What is X?")
	require.NoError(t, err)
	assert.Equal(t, llm.UnknownAnswer, ans.Text)
	assert.True(t, ans.Unknown)
	assert.Empty(t, ans.Sources)
	assert.Empty(t, ans.Citations)
	assert.Zero(t, f.gen.genCalls.Load())
}

func TestAnswerer_ReportsCitations(t *testing.T) {
	f := newFixture(t, Timeouts{})
	f.gen.expandOut = "v0"
	f.index.hits[0] = hitsFor(3, 7)
	f.gen.answer = "X is 7 [Source 1]. Also [Source 2] and [Source 9]."
	a := NewAnswerer(f.pipeline, f.gen, time.Second, nil)

	ans, err := a.Answer(context.Background(), "What is X?")
	require.NoError(t, err)
	assert.False(t, ans.Unknown)
	assert.Equal(t, []int{1, 2}, ans.Citations)
	assert.Equal(t, []int{9}, ans.InvalidCitations)
	assert.Equal(t, []string{"chunk 7", "chunk 3"}, f.gen.lastSources)
}
