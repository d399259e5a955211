package retrieval

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/metrics"
)

// Timeouts bound each external call made while answering a query.
type Timeouts struct {
	Expand   time.Duration
	Embed    time.Duration
	Search   time.Duration
	Rerank   time.Duration
	Generate time.Duration
}

// Options configures the retrieval pipeline.
type Options struct {
	RerankTopM        int
	SearchConcurrency int
	Timeouts          Timeouts
}

// Pipeline runs expansion, hybrid search, deduplication, reranking and selection.
type Pipeline struct {
	expander *Expander
	searcher *HybridSearcher
	store    ChunkLookup
	reranker *Reranker
	opts     Options
	log      *slog.Logger
}

func NewPipeline(expander *Expander, searcher *HybridSearcher, store ChunkLookup, reranker *Reranker, opts Options, log *slog.Logger) *Pipeline {
	if opts.RerankTopM <= 0 {
		opts.RerankTopM = DefaultRerankTopM
	}
	if opts.SearchConcurrency <= 0 {
		opts.SearchConcurrency = 4
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		expander: expander,
		searcher: searcher,
		store:    store,
		reranker: reranker,
		opts:     opts,
		log:      log,
	}
}

// Retrieve builds the grounding set for query. Any external timeout fails
// the whole call; no partial grounding set is returned.
func (p *Pipeline) Retrieve(ctx context.Context, query string) (GroundingSet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return GroundingSet{}, ErrEmptyQuery
	}
	log := p.log.With("query", truncate(query, 120))
	start := time.Now()

	// Expansion and the original query's embedding are independent.
	var variants []string
	var originalVec []float32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := p.expander.Expand(gctx, query)
		variants = v
		return err
	})
	g.Go(func() error {
		v, err := callExternal(gctx, metrics.OpEmbed, p.opts.Timeouts.Embed, func(ctx context.Context) ([]float32, error) {
			return p.searcher.Embed(ctx, query)
		})
		originalVec = v
		return err
	})
	if err := g.Wait(); err != nil {
		return GroundingSet{}, err
	}

	perVariant, err := p.searchVariants(ctx, query, originalVec, variants)
	if err != nil {
		return GroundingSet{}, err
	}
	var candidates []Candidate
	for _, c := range perVariant {
		candidates = append(candidates, c...)
	}

	deduped := Deduplicate(candidates)
	hydrated, err := Hydrate(ctx, p.store, deduped)
	if err != nil {
		return GroundingSet{}, err
	}
	if dropped := len(deduped) - len(hydrated); dropped > 0 {
		log.Warn("index hits missing from chunk store", "dropped", dropped)
	}

	gs := GroundingSet{
		Query:      query,
		Variants:   variants,
		Candidates: len(candidates),
		Deduped:    len(hydrated),
	}
	if len(hydrated) == 0 {
		log.Info("empty retrieval", "variants", len(variants))
		return gs, nil
	}

	ranked, err := callExternal(ctx, metrics.OpRerank, p.opts.Timeouts.Rerank, func(ctx context.Context) ([]RankedResult, error) {
		return p.reranker.Rerank(ctx, query, hydrated)
	})
	if err != nil {
		return GroundingSet{}, err
	}
	gs.Results = Select(ranked, p.opts.RerankTopM)

	log.Info("retrieval complete",
		"variants", len(variants),
		"candidates", gs.Candidates,
		"deduped", gs.Deduped,
		"selected", len(gs.Results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return gs, nil
}

// searchVariants runs one hybrid search per variant with bounded concurrency.
// Results are indexed by variant position so concatenation order is stable.
func (p *Pipeline) searchVariants(ctx context.Context, original string, originalVec []float32, variants []string) ([][]Candidate, error) {
	results := make([][]Candidate, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.SearchConcurrency)
	for i, variant := range variants {
		g.Go(func() error {
			dense := originalVec
			if variant != original {
				v, err := callExternal(gctx, metrics.OpEmbed, p.opts.Timeouts.Embed, func(ctx context.Context) ([]float32, error) {
					return p.searcher.Embed(ctx, variant)
				})
				if err != nil {
					return err
				}
				dense = v
			}
			cands, err := callExternal(gctx, metrics.OpSearch, p.opts.Timeouts.Search, func(ctx context.Context) ([]Candidate, error) {
				return p.searcher.Query(ctx, variant, dense)
			})
			if err != nil {
				return err
			}
			results[i] = cands
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
