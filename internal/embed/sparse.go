package embed

import (
	"hash/fnv"
	"sort"
)

// SparseEncoder builds lexical vectors for the index's sparse channel.
// Document vectors carry saturated term frequencies; inverse document
// frequency is applied by the index at query time.
type SparseEncoder struct {
	k1 float64
}

func NewSparseEncoder() *SparseEncoder {
	return &SparseEncoder{k1: 1.2}
}

// EncodeDocument weights each term by tf*(k1+1)/(tf+k1).
func (e *SparseEncoder) EncodeDocument(text string) SparseVector {
	tf := termCounts(Tokenize(text))
	return e.build(tf, func(n int) float32 {
		f := float64(n)
		return float32(f * (e.k1 + 1) / (f + e.k1))
	})
}

// EncodeQuery gives every distinct query term weight 1.
func (e *SparseEncoder) EncodeQuery(text string) SparseVector {
	tf := termCounts(Tokenize(text))
	return e.build(tf, func(int) float32 { return 1 })
}

func (e *SparseEncoder) build(tf map[uint32]int, weight func(int) float32) SparseVector {
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	values := make([]float32, len(indices))
	for i, idx := range indices {
		values[i] = weight(tf[idx])
	}
	return SparseVector{Indices: indices, Values: values}
}

func termCounts(tokens []string) map[uint32]int {
	tf := make(map[uint32]int, len(tokens))
	for _, t := range tokens {
		tf[TermIndex(t)]++
	}
	return tf
}

// TermIndex hashes a token into the sparse vector index space.
func TermIndex(token string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(token))
	return h.Sum32()
}
