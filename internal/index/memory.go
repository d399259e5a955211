package index

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/metrics"
)

// Memory is an in-process index: brute-force cosine over dense vectors and
// IDF-weighted dot product over sparse vectors, fused with RRF.
type Memory struct {
	mu     sync.RWMutex
	dim    int
	points map[string]Point
	df     map[uint32]int
	calls  *metrics.Calls
}

func NewMemory(calls *metrics.Calls) *Memory {
	return &Memory{
		points: make(map[string]Point),
		df:     make(map[uint32]int),
		calls:  calls,
	}
}

func (m *Memory) EnsureCollection(_ context.Context, dimension int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dim == 0 {
		m.dim = dimension
	}
	return nil
}

func (m *Memory) Upsert(_ context.Context, points []Point) error {
	start := time.Now()
	m.mu.Lock()
	for _, p := range points {
		if old, ok := m.points[p.ChunkID]; ok {
			m.removeTermsLocked(old)
		}
		p.Dense = append([]float32(nil), p.Dense...)
		m.points[p.ChunkID] = p
		for _, idx := range p.Sparse.Indices {
			m.df[idx]++
		}
	}
	m.mu.Unlock()
	m.calls.Observe(metrics.OpUpsert, start, nil)
	return nil
}

func (m *Memory) DeleteDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.points {
		if p.DocumentID == documentID {
			m.removeTermsLocked(p)
			delete(m.points, id)
		}
	}
	return nil
}

func (m *Memory) removeTermsLocked(p Point) {
	for _, idx := range p.Sparse.Indices {
		if m.df[idx] <= 1 {
			delete(m.df, idx)
		} else {
			m.df[idx]--
		}
	}
}

type scored struct {
	id    string
	score float64
}

func (m *Memory) Query(_ context.Context, q HybridQuery) ([]Hit, error) {
	start := time.Now()
	defer func() { m.calls.Observe(metrics.OpSearch, start, nil) }()

	limit := q.Limit
	if limit <= 0 {
		limit = 25
	}

	m.mu.RLock()
	var dense, sparse []scored
	if len(q.Dense) > 0 {
		for id, p := range m.points {
			if len(p.Dense) != len(q.Dense) {
				continue
			}
			dense = append(dense, scored{id: id, score: cosine(q.Dense, p.Dense)})
		}
	}
	if q.Sparse.Len() > 0 {
		n := float64(len(m.points))
		idf := make(map[uint32]float64, q.Sparse.Len())
		for _, idx := range q.Sparse.Indices {
			df := float64(m.df[idx])
			idf[idx] = math.Log((n-df+0.5)/(df+0.5) + 1)
		}
		for id, p := range m.points {
			s := sparseDot(q.Sparse.Indices, q.Sparse.Values, p.Sparse.Indices, p.Sparse.Values, idf)
			if s > 0 {
				sparse = append(sparse, scored{id: id, score: s})
			}
		}
	}
	m.mu.RUnlock()

	dense = topN(dense, limit)
	sparse = topN(sparse, limit)
	return fuse(limit, dense, sparse), nil
}

func (m *Memory) Close() {}

// Len returns the number of stored points.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

func sortScored(s []scored) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].score != s[j].score {
			return s[i].score > s[j].score
		}
		return s[i].id < s[j].id
	})
}

func topN(s []scored, n int) []scored {
	sortScored(s)
	if len(s) > n {
		s = s[:n]
	}
	return s
}

// fuse combines ranked lists with reciprocal rank fusion.
func fuse(limit int, lists ...[]scored) []Hit {
	scores := make(map[string]float64)
	for _, list := range lists {
		for rank, s := range list {
			scores[s.id] += 1.0 / float64(rrfK+rank+1)
		}
	}
	merged := make([]scored, 0, len(scores))
	for id, s := range scores {
		merged = append(merged, scored{id: id, score: s})
	}
	merged = topN(merged, limit)

	hits := make([]Hit, len(merged))
	for i, s := range merged {
		hits[i] = Hit{ChunkID: s.id, Score: s.score}
	}
	return hits
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// sparseDot merges two index-sorted sparse vectors.
func sparseDot(qi []uint32, qv []float32, di []uint32, dv []float32, idf map[uint32]float64) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(qi) && j < len(di) {
		switch {
		case qi[i] == di[j]:
			sum += float64(qv[i]) * float64(dv[j]) * idf[qi[i]]
			i++
			j++
		case qi[i] < di[j]:
			i++
		default:
			j++
		}
	}
	return sum
}
