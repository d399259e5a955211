package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/index"
)

type fakeGen struct {
	expandOut   string
	expandErr   error
	answer      string
	block       bool
	expandCalls atomic.Int32
	genCalls    atomic.Int32
	lastSources []string
}

func (g *fakeGen) Expand(ctx context.Context, _ string, _ int) (string, error) {
	g.expandCalls.Add(1)
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.expandOut, g.expandErr
}

func (g *fakeGen) Generate(_ context.Context, _ string, sources []string) (string, error) {
	g.genCalls.Add(1)
	g.lastSources = sources
	return g.answer, nil
}

// fakeEmbedder maps each known text to a one-dimensional vector.
type fakeEmbedder struct {
	mu    sync.Mutex
	vecs  map[string]float32
	calls int
}

func (e *fakeEmbedder) Name() string   { return "fake" }
func (e *fakeEmbedder) Dimension() int { return 1 }

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{e.vecs[t]}
	}
	return out, nil
}

// fakeIndex returns canned hits keyed by the first dense component.
type fakeIndex struct {
	hits    map[float32][]index.Hit
	block   bool
	queries atomic.Int32
}

func (f *fakeIndex) EnsureCollection(context.Context, int) error { return nil }
func (f *fakeIndex) Upsert(context.Context, []index.Point) error { return nil }
func (f *fakeIndex) DeleteDocument(context.Context, string) error { return nil }
func (f *fakeIndex) Close()                                       {}

func (f *fakeIndex) Query(ctx context.Context, q index.HybridQuery) ([]index.Hit, error) {
	f.queries.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	hits := f.hits[q.Dense[0]]
	if len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

// numberScorer scores "chunk NN" texts by NN.
type numberScorer struct {
	calls atomic.Int32
}

func (s *numberScorer) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	s.calls.Add(1)
	out := make([]float64, len(texts))
	for i, t := range texts {
		n, err := strconv.Atoi(strings.TrimPrefix(t, "chunk "))
		if err != nil {
			return nil, fmt.Errorf("unexpected text %q", t)
		}
		out[i] = float64(n)
	}
	return out, nil
}

func chunkID(n int) string { return fmt.Sprintf("c%02d", n) }

func hitsFor(ids ...int) []index.Hit {
	out := make([]index.Hit, len(ids))
	for i, id := range ids {
		out[i] = index.Hit{ChunkID: chunkID(id), Score: 1 / float64(i+61)}
	}
	return out
}

func span(lo, hi int) []int {
	var out []int
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}
