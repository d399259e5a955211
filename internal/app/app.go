// Package app wires configured backends into the ingestion and query services.
package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/chunker"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/config"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/embed"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/index"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/llm"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/metrics"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/pipeline"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/rerank"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/retrieval"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/store"
)

// App holds every long-lived component built from a Config.
type App struct {
	Calls     *metrics.Calls
	Chunker   *chunker.Chunker
	Embedder  embed.Embedder
	Index     index.Index
	Store     store.ChunkStore
	Generator llm.Generator
	Scorer    rerank.Scorer
	Worker    *pipeline.Worker
	Pipeline  *retrieval.Pipeline
	Answerer  *retrieval.Answerer

	closers []func()
}

// New builds all backends selected by cfg. The caller must Close the App.
func New(cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{Calls: metrics.NewCalls(time.Hour)}

	a.Chunker = chunker.New(chunker.Config{
		MinChunkChars:   cfg.MinChunkChars,
		MaxChunkChars:   cfg.MaxChunkChars,
		SubjectKeywords: cfg.SubjectKeywords,
		EmphaticHeaders: cfg.EmphaticHeaders,
	}, log)

	switch cfg.Embedder {
	case "openai":
		a.Embedder = embed.NewOpenAI(embed.OpenAIConfig{
			BaseURL:    cfg.EmbedBaseURL,
			APIKey:     cfg.EmbedAPIKey,
			Model:      cfg.EmbedModel,
			Dimensions: cfg.EmbedDimensions,
			Timeout:    cfg.EmbedTimeout,
		}, a.Calls)
	default:
		a.Embedder = embed.NewHashEmbedder(cfg.EmbedDimensions)
	}

	switch cfg.Index {
	case "qdrant":
		q := index.NewQdrant(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.QdrantCollection, a.Calls)
		a.Index = q
		a.closers = append(a.closers, q.Close)
	default:
		a.Index = index.NewMemory(a.Calls)
	}

	switch cfg.Store {
	case "sqlite":
		st, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open chunk store: %w", err)
		}
		a.Store = st
	default:
		a.Store = store.NewMemory()
	}
	a.closers = append(a.closers, func() {
		if err := a.Store.Close(); err != nil {
			log.Warn("close chunk store", "error", err)
		}
	})

	switch cfg.LLM {
	case "openai":
		a.Generator = llm.NewClient(llm.Config{
			BaseURL:           cfg.LLMBaseURL,
			APIKey:            cfg.LLMAPIKey,
			Model:             cfg.LLMModel,
			ExpandModel:       cfg.ExpandModel,
			RequestsPerSecond: cfg.LLMRequestsPerSecond,
			Timeout:           cfg.GenerateTimeout,
		}, a.Calls)
	default:
		a.Generator = llm.Offline{}
	}

	switch cfg.Reranker {
	case "http":
		rc := rerank.NewClient(rerank.Config{
			BaseURL:           cfg.RerankURL,
			APIKey:            cfg.RerankAPIKey,
			Model:             cfg.RerankModel,
			BatchSize:         cfg.RerankBatchSize,
			RequestsPerSecond: cfg.RerankRequestsPerSecond,
			Timeout:           cfg.RerankTimeout,
		}, a.Calls)
		a.Scorer = rc
		a.closers = append(a.closers, rc.Close)
	default:
		a.Scorer = rerank.Overlap{}
	}

	a.Worker = pipeline.NewWorker(a.Chunker, a.Embedder, a.Index, a.Store, log, pipeline.WorkerOptions{
		EmbedBatchSize:       cfg.EmbedBatchSize,
		EmbedBatchTokens:     cfg.EmbedBatchTokens,
		MaxConcurrentEmbed:   cfg.MaxConcurrentEmbed,
		PDFFallbackPdftotext: cfg.PDFFallbackPdftotext,
	})

	expander := retrieval.NewExpander(a.Generator, cfg.VariantCount, cfg.ExpandTimeout, cfg.ExpansionCacheTTL, log)
	searcher := retrieval.NewHybridSearcher(a.Embedder, embed.NewSparseEncoder(), a.Index, cfg.SearchTopK)
	a.Pipeline = retrieval.NewPipeline(expander, searcher, a.Store, retrieval.NewReranker(a.Scorer), retrieval.Options{
		RerankTopM:        cfg.RerankTopM,
		SearchConcurrency: cfg.SearchConcurrency,
		Timeouts: retrieval.Timeouts{
			Expand:   cfg.ExpandTimeout,
			Embed:    cfg.EmbedTimeout,
			Search:   cfg.SearchTimeout,
			Rerank:   cfg.RerankTimeout,
			Generate: cfg.GenerateTimeout,
		},
	}, log)
	a.Answerer = retrieval.NewAnswerer(a.Pipeline, a.Generator, cfg.GenerateTimeout, log)

	log.Info("backends ready",
		"embedder", a.Embedder.Name(),
		"index", cfg.Index,
		"store", cfg.Store,
		"llm", cfg.LLM,
		"reranker", cfg.Reranker,
	)
	return a, nil
}

// Close releases clients and the chunk store in reverse build order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
