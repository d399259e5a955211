package metrics

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
	failed     bool
}

// Snapshot is a point-in-time aggregate of latency samples for one operation.
type Snapshot struct {
	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	MinMs  int64   `json:"min_ms"`
	MaxMs  int64   `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// Latency tracks recent call latencies within a rolling window.
type Latency struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

func NewLatency(maxAge time.Duration) *Latency {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Latency{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// Record adds one sample. Failed calls count toward Errors but not latency.
func (s *Latency) Record(durationMs int64, failed bool) {
	if durationMs < 0 {
		durationMs = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		timestamp:  now,
		durationMs: durationMs,
		failed:     failed,
	})
}

func (s *Latency) Snapshot() Snapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	var snap Snapshot
	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		if sm.failed {
			snap.Errors++
			continue
		}
		values = append(values, sm.durationMs)
		sum += sm.durationMs
	}
	if len(values) == 0 {
		return snap
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	snap.Count = len(values)
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *Latency) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	writeIdx := 0
	for _, sm := range s.samples {
		if !sm.timestamp.Before(cutoff) {
			s.samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples = s.samples[:writeIdx]
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}

// Operation names recorded by the external-call adapters.
const (
	OpExpand   = "expand"
	OpEmbed    = "embed"
	OpSearch   = "search"
	OpUpsert   = "upsert"
	OpRerank   = "rerank"
	OpGenerate = "generate"
)

// Calls keeps one rolling latency window per external operation.
// A nil *Calls is valid and records nothing.
type Calls struct {
	mu     sync.Mutex
	maxAge time.Duration
	ops    map[string]*Latency
}

func NewCalls(maxAge time.Duration) *Calls {
	return &Calls{maxAge: maxAge, ops: make(map[string]*Latency)}
}

// Observe records the outcome of a call that started at start.
func (c *Calls) Observe(op string, start time.Time, err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	l, ok := c.ops[op]
	if !ok {
		l = NewLatency(c.maxAge)
		c.ops[op] = l
	}
	c.mu.Unlock()
	l.Record(time.Since(start).Milliseconds(), err != nil)
}

// Snapshot returns per-operation aggregates.
func (c *Calls) Snapshot() map[string]Snapshot {
	out := make(map[string]Snapshot)
	if c == nil {
		return out
	}
	c.mu.Lock()
	ops := make(map[string]*Latency, len(c.ops))
	for k, v := range c.ops {
		ops[k] = v
	}
	c.mu.Unlock()
	for k, v := range ops {
		out[k] = v.Snapshot()
	}
	return out
}
