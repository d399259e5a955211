// Package retrieval turns a question into an ordered, citation-numbered set
// of grounding chunks: expansion, hybrid search per variant, deduplication,
// cross-encoder reranking and selection.
package retrieval

import (
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/document"
)

// Candidate is one index hit for one query variant.
type Candidate struct {
	ChunkID string
	Score   float64
	Variant string
}

// DedupedCandidate is one distinct chunk across all variants.
type DedupedCandidate struct {
	ChunkID   string
	BestScore float64
	Variant   string
	Chunk     document.Chunk
}

// RankedResult is a reranked chunk. CitationIndex is set by Select.
type RankedResult struct {
	ChunkID       string         `json:"chunk_id"`
	RerankScore   float64        `json:"rerank_score"`
	CitationIndex int            `json:"citation_index"`
	Chunk         document.Chunk `json:"chunk"`
}

// GroundingSet is the ordered, numbered context handed to the generator.
type GroundingSet struct {
	Query      string         `json:"query"`
	Variants   []string       `json:"variants"`
	Candidates int            `json:"candidates"`
	Deduped    int            `json:"deduped"`
	Results    []RankedResult `json:"results"`
}

// Empty reports whether no grounding is available.
func (g GroundingSet) Empty() bool { return len(g.Results) == 0 }

// Texts returns the chunk texts in citation order.
func (g GroundingSet) Texts() []string {
	out := make([]string, len(g.Results))
	for i, r := range g.Results {
		out[i] = r.Chunk.Text
	}
	return out
}
