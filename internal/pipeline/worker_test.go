package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/chunker"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/config"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/embed"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/index"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/store"
)

const handbook = `SUBJECT: Networks
1. Introduction
Networks connect computers so they can exchange data.
1.1 History
The first packet switched network went live in 1969.
SUBJECT: Databases
1. Storage
Relational databases store rows in tables with fixed schemas.
`

type failingEmbedder struct{}

func (failingEmbedder) Name() string   { return "failing" }
func (failingEmbedder) Dimension() int { return 8 }
func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding backend rejected request")
}

type fixture struct {
	worker *Worker
	index  *index.Memory
	store  *store.Memory
}

func newFixture(t *testing.T, embedder embed.Embedder) fixture {
	t.Helper()
	idx := index.NewMemory(nil)
	st := store.NewMemory()
	c := chunker.New(chunker.Config{MinChunkChars: 20, MaxChunkChars: 200}, nil)
	w := NewWorker(c, embedder, idx, st, nil, WorkerOptions{EmbedBatchSize: 2})
	return fixture{worker: w, index: idx, store: st}
}

func ingest(t *testing.T, w *Worker, docID, filename, text string, force bool) JobSnapshot {
	t.Helper()
	job := NewJob(docID, filename, "", force, []byte(text))
	w.Process(context.Background(), job)
	return job.Snapshot()
}

func TestWorker_ProcessIndexesAndStores(t *testing.T) {
	f := newFixture(t, embed.NewHashEmbedder(32))

	snap := ingest(t, f.worker, "doc-1", "handbook.txt", handbook, false)
	require.Equal(t, StatusCompleted, snap.Status, "errors: %v", snap.Progress.Errors)
	assert.Equal(t, 3, snap.Progress.TotalChunks)
	assert.Equal(t, 3, snap.Progress.ChunksEmbedded)
	assert.Equal(t, 3, snap.Progress.ChunksIndexed)
	assert.NotEmpty(t, snap.ContentHash)

	info, chunks, err := f.store.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "handbook", info.Title)
	assert.Equal(t, 3, info.ChunkCount)
	require.Len(t, chunks, 3)
	assert.True(t, strings.HasPrefix(chunks[2].Text, "Subject: Databases - 1. Storage\n"))
	assert.Equal(t, 3, f.index.Len())
}

func TestWorker_DuplicateSkippedUnlessForced(t *testing.T) {
	f := newFixture(t, embed.NewHashEmbedder(32))
	require.Equal(t, StatusCompleted, ingest(t, f.worker, "doc-1", "a.txt", handbook, false).Status)

	dup := ingest(t, f.worker, "doc-2", "b.txt", handbook, false)
	assert.Equal(t, StatusDupSkipped, dup.Status)
	assert.Equal(t, "doc-1", dup.DuplicateOf)
	assert.Equal(t, 3, f.index.Len())

	forced := ingest(t, f.worker, "doc-2", "b.txt", handbook, true)
	assert.Equal(t, StatusCompleted, forced.Status)
	assert.Equal(t, 6, f.index.Len())
}

func TestWorker_ReindexReplacesDocument(t *testing.T) {
	f := newFixture(t, embed.NewHashEmbedder(32))
	require.Equal(t, StatusCompleted, ingest(t, f.worker, "doc-1", "a.txt", handbook, false).Status)

	short := "SUBJECT: Networks\nOnly one short section remains after the edit."
	snap := ingest(t, f.worker, "doc-1", "a.txt", short, false)
	require.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 1, f.index.Len())

	_, chunks, err := f.store.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestWorker_Failures(t *testing.T) {
	tests := []struct {
		name     string
		embedder embed.Embedder
		filename string
		text     string
		phase    string
	}{
		{"unsupported extension", embed.NewHashEmbedder(8), "image.png", "data", "parsing"},
		{"no content", embed.NewHashEmbedder(8), "empty.txt", "\n\n", "chunking"},
		{"embedder error", failingEmbedder{}, "a.txt", handbook, "embedding"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.embedder)
			snap := ingest(t, f.worker, "doc-x", tc.filename, tc.text, false)
			assert.Equal(t, StatusFailed, snap.Status)
			assert.Equal(t, tc.phase, snap.Phase)
			assert.NotEmpty(t, snap.Progress.Errors)
			assert.Zero(t, f.index.Len())
		})
	}
}

func TestWorker_DeleteDocument(t *testing.T) {
	f := newFixture(t, embed.NewHashEmbedder(32))
	require.Equal(t, StatusCompleted, ingest(t, f.worker, "doc-1", "a.txt", handbook, false).Status)

	require.NoError(t, f.worker.DeleteDocument(context.Background(), "doc-1"))
	assert.Zero(t, f.index.Len())
	_, _, err := f.store.GetDocument(context.Background(), "doc-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = f.worker.DeleteDocument(context.Background(), "doc-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testConfig(queue int) config.Config {
	cfg := config.Defaults()
	cfg.WorkerCount = 1
	cfg.MaxQueueSize = queue
	cfg.JobTTL = time.Hour
	return cfg
}

func TestOrchestrator_RejectsDocumentInFlight(t *testing.T) {
	f := newFixture(t, embed.NewHashEmbedder(8))
	o := NewOrchestrator(testConfig(4), f.worker, nil)

	first := NewJob("doc-1", "a.txt", "", false, []byte(handbook))
	require.NoError(t, o.Submit(first))

	err := o.Submit(NewJob("doc-1", "a.txt", "", true, []byte(handbook)))
	assert.ErrorIs(t, err, ErrDocumentInFlight)

	require.NoError(t, o.Submit(NewJob("doc-2", "b.txt", "", false, []byte(handbook))))
	assert.Equal(t, 2, o.QueueDepth())
	assert.Same(t, first, o.GetJob(first.ID))
}

func TestOrchestrator_QueueFull(t *testing.T) {
	f := newFixture(t, embed.NewHashEmbedder(8))
	o := NewOrchestrator(testConfig(1), f.worker, nil)

	require.NoError(t, o.Submit(NewJob("doc-1", "a.txt", "", false, []byte(handbook))))
	overflow := NewJob("doc-2", "b.txt", "", false, []byte(handbook))
	err := o.Submit(overflow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job queue is full")
	assert.Equal(t, StatusFailed, overflow.Snapshot().Status)

	// The rejected document is not left in flight.
	<-o.queue
	assert.NoError(t, o.Submit(NewJob("doc-2", "b.txt", "", false, []byte(handbook))))
}

func TestOrchestrator_ProcessesJobs(t *testing.T) {
	f := newFixture(t, embed.NewHashEmbedder(16))
	o := NewOrchestrator(testConfig(4), f.worker, nil)
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("doc-1", "a.txt", "", false, []byte(handbook))
	require.NoError(t, o.Submit(job))

	require.Eventually(t, func() bool {
		return job.Snapshot().Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, StatusCompleted, job.Snapshot().Status)

	// Once finished the document may be submitted again.
	require.Eventually(t, func() bool {
		return o.Submit(NewJob("doc-1", "a.txt", "", true, []byte(handbook))) == nil
	}, 5*time.Second, 10*time.Millisecond)
}
