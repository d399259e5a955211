package retrieval

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/llm"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/metrics"
)

// Answer is a generated response with its grounding.
type Answer struct {
	Query            string         `json:"query"`
	Text             string         `json:"answer"`
	Unknown          bool           `json:"unknown"`
	Variants         []string       `json:"variants"`
	Sources          []RankedResult `json:"sources"`
	Citations        []int          `json:"citations"`
	InvalidCitations []int          `json:"invalid_citations,omitempty"`
	DurationMs       int64          `json:"duration_ms"`
}

// Answerer retrieves grounding for a query and asks the generator to answer from it.
type Answerer struct {
	pipeline *Pipeline
	gen      llm.Generator
	timeout  time.Duration
	log      *slog.Logger
}

func NewAnswerer(pipeline *Pipeline, gen llm.Generator, timeout time.Duration, log *slog.Logger) *Answerer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Answerer{pipeline: pipeline, gen: gen, timeout: timeout, log: log}
}

// Answer runs retrieval then generation. An empty grounding set yields the
// fixed unknown answer without calling the generator.
func (a *Answerer) Answer(ctx context.Context, query string) (Answer, error) {
	start := time.Now()
	gs, err := a.pipeline.Retrieve(ctx, query)
	if err != nil {
		return Answer{}, err
	}
	ans, err := a.Generate(ctx, gs)
	if err != nil {
		return Answer{}, err
	}
	ans.DurationMs = time.Since(start).Milliseconds()
	return ans, nil
}

// Generate answers from an existing grounding set.
func (a *Answerer) Generate(ctx context.Context, gs GroundingSet) (Answer, error) {
	ans := Answer{Query: gs.Query, Variants: gs.Variants, Sources: gs.Results, Citations: []int{}}
	if gs.Empty() {
		ans.Text = llm.UnknownAnswer
		ans.Unknown = true
		ans.Sources = []RankedResult{}
		return ans, nil
	}

	text, err := callExternal(ctx, metrics.OpGenerate, a.timeout, func(ctx context.Context) (string, error) {
		return a.gen.Generate(ctx, gs.Query, gs.Texts())
	})
	if err != nil {
		return Answer{}, err
	}
	ans.Text = text
	ans.Unknown = IsUnknown(text)
	ans.Citations, ans.InvalidCitations = ParseCitations(text, len(gs.Results))
	if len(ans.InvalidCitations) > 0 {
		a.log.Warn("answer cites sources outside the grounding set",
			"invalid", ans.InvalidCitations, "sources", len(gs.Results))
	}
	return ans, nil
}

var citationRe = regexp.MustCompile(`\[Source\s+(\d+)\]`)

// ParseCitations returns the distinct [Source i] indices in text, ascending,
// split into those within 1..n and those outside it.
func ParseCitations(text string, n int) (valid, invalid []int) {
	seen := make(map[int]bool)
	for _, m := range citationRe.FindAllStringSubmatch(text, -1) {
		i, err := strconv.Atoi(m[1])
		if err != nil || seen[i] {
			continue
		}
		seen[i] = true
		if i >= 1 && i <= n {
			valid = append(valid, i)
		} else {
			invalid = append(invalid, i)
		}
	}
	sort.Ints(valid)
	sort.Ints(invalid)
	if valid == nil {
		valid = []int{}
	}
	return valid, invalid
}

// IsUnknown reports whether text is the fixed unknown answer.
func IsUnknown(text string) bool {
	return normalizeAnswer(text) == normalizeAnswer(llm.UnknownAnswer)
}

var answerPunctRe = regexp.MustCompile(`[\s."']+`)

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(answerPunctRe.ReplaceAllString(s, " ")))
}
