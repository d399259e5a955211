package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/chunker"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/document"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/embed"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/index"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/parser"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/retry"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/store"
)

const upsertBatchSize = 256

// WorkerOptions bounds embedding batches and concurrency.
type WorkerOptions struct {
	EmbedBatchSize       int
	EmbedBatchTokens     int
	MaxConcurrentEmbed   int
	PDFFallbackPdftotext bool
}

// Worker processes document jobs: parse, chunk, embed, index, store.
// It holds no per-job state and is shared by all pipeline goroutines.
type Worker struct {
	chunker  *chunker.Chunker
	embedder embed.Embedder
	sparse   *embed.SparseEncoder
	index    index.Index
	store    store.ChunkStore
	log      *slog.Logger
	opts     WorkerOptions

	collectionDim atomic.Int64
}

func NewWorker(c *chunker.Chunker, embedder embed.Embedder, idx index.Index, st store.ChunkStore, log *slog.Logger, opts WorkerOptions) *Worker {
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = 64
	}
	if opts.MaxConcurrentEmbed <= 0 {
		opts.MaxConcurrentEmbed = 4
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Worker{
		chunker:  c,
		embedder: embedder,
		sparse:   embed.NewSparseEncoder(),
		index:    idx,
		store:    st,
		log:      log,
		opts:     opts,
	}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)
	start := time.Now()

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	doc, err := w.parse(job)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.releaseFileData()

	// Phase 1.5: Dedup check on the parsed text.
	hash := document.ContentHashHex([]byte(doc.Text()))
	job.setHash(hash)
	if !job.Force {
		existing, found, err := w.store.FindByHash(ctx, hash)
		if err != nil {
			log.Warn("dedup check failed, proceeding", "error", err)
		} else if found {
			log.Info("duplicate document, skipping", "existing_doc_id", existing.ID)
			job.setDuplicateOf(existing.ID)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	chunks := w.chunker.Chunk(doc)
	forced := 0
	for _, ch := range chunks {
		if ch.BoundaryForced {
			forced++
		}
	}
	job.SetTotalChunks(len(chunks), forced)
	log.Info("chunked document", "lines", len(doc.Lines), "chunks", len(chunks), "forced_splits", forced)

	if len(chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "chunking")
		return
	}

	// Phase 3: Embed
	job.SetStatus(StatusEmbedding, "embedding")
	vectors, err := w.embedChunks(ctx, job, chunks, log)
	if err != nil {
		log.Error("embedding failed", "error", err)
		job.AddError(fmt.Sprintf("embed: %s", err))
		job.SetStatus(StatusFailed, "embedding")
		return
	}

	// Phase 4: Index and store
	job.SetStatus(StatusIndexing, "indexing")
	if err := w.indexChunks(ctx, job, chunks, vectors, log); err != nil {
		log.Error("indexing failed", "error", err)
		job.AddError(fmt.Sprintf("index: %s", err))
		job.SetStatus(StatusFailed, "indexing")
		return
	}

	info := document.Info{
		ID:          doc.ID,
		Title:       doc.Title,
		Filename:    job.Filename,
		ContentHash: hash,
		ChunkCount:  len(chunks),
		CreatedAt:   job.CreatedAt.UTC().Format(time.RFC3339),
	}
	if err := w.store.SaveDocument(ctx, info, chunks); err != nil {
		log.Error("store failed", "error", err)
		job.AddError(fmt.Sprintf("store: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}

	log.Info("ingestion complete", "chunks", len(chunks), "duration_ms", time.Since(start).Milliseconds())
	job.SetStatus(StatusCompleted, "done")
}

func (w *Worker) parse(job *Job) (*document.Document, error) {
	p, err := parser.ForFile(job.Filename)
	if err != nil {
		return nil, err
	}
	if pp, ok := p.(*parser.PDFParser); ok {
		pp.FallbackPdftotext = w.opts.PDFFallbackPdftotext
	}
	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		return nil, err
	}
	if job.Title != "" {
		doc.Title = job.Title
	}
	doc.SetID(job.DocID)
	return doc, nil
}

// embedChunks embeds chunk texts in token-bounded batches with bounded
// concurrency. Retryable failures are retried with backoff.
func (w *Worker) embedChunks(ctx context.Context, job *Job, chunks []document.Chunk, log *slog.Logger) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.MaxConcurrentEmbed)
	for _, b := range chunker.BatchByTokens(texts, w.opts.EmbedBatchSize, w.opts.EmbedBatchTokens) {
		g.Go(func() error {
			lo, hi := b[0], b[1]
			return retry.Do(gctx, log, "embed", func(ctx context.Context) error {
				vecs, err := w.embedder.Embed(ctx, texts[lo:hi])
				if err != nil {
					return err
				}
				if len(vecs) != hi-lo {
					return fmt.Errorf("expected %d vectors, got %d", hi-lo, len(vecs))
				}
				copy(vectors[lo:hi], vecs)
				job.AddEmbedded(hi - lo)
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// indexChunks replaces the document's points in the vector index.
func (w *Worker) indexChunks(ctx context.Context, job *Job, chunks []document.Chunk, vectors [][]float32, log *slog.Logger) error {
	dim := len(vectors[0])
	if dim == 0 {
		return errors.New("embedder returned empty vectors")
	}
	if w.collectionDim.Load() != int64(dim) {
		if err := retry.Do(ctx, log, "ensure_collection", func(ctx context.Context) error {
			return w.index.EnsureCollection(ctx, dim)
		}); err != nil {
			return err
		}
		w.collectionDim.Store(int64(dim))
	}

	if err := retry.Do(ctx, log, "delete_document", func(ctx context.Context) error {
		return w.index.DeleteDocument(ctx, job.DocID)
	}); err != nil {
		return err
	}

	points := make([]index.Point, len(chunks))
	for i, ch := range chunks {
		points[i] = index.Point{
			ChunkID:    ch.ID,
			DocumentID: ch.DocumentID,
			ChunkIndex: ch.Index,
			Dense:      vectors[i],
			Sparse:     w.sparse.EncodeDocument(ch.Text),
		}
	}
	for lo := 0; lo < len(points); lo += upsertBatchSize {
		batch := points[lo:min(lo+upsertBatchSize, len(points))]
		if err := retry.Do(ctx, log, "upsert", func(ctx context.Context) error {
			return w.index.Upsert(ctx, batch)
		}); err != nil {
			return err
		}
		job.AddIndexed(len(batch))
	}
	return nil
}

// DeleteDocument removes a document from both the index and the chunk store.
func (w *Worker) DeleteDocument(ctx context.Context, docID string) error {
	if err := w.index.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("delete from index: %w", err)
	}
	if err := w.store.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("delete from store: %w", err)
	}
	return nil
}

// Store returns the chunk store the worker writes to.
func (w *Worker) Store() store.ChunkStore {
	return w.store
}

// Chunker returns the chunker used for ingestion.
func (w *Worker) Chunker() *chunker.Chunker {
	return w.chunker
}
