package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/config"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/llm"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/pipeline"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/store"
)

func TestNew_OfflineEndToEnd(t *testing.T) {
	cfg := config.Defaults()
	cfg.Offline()
	cfg.Store = "memory"
	cfg.MinChunkChars = 20
	cfg.MaxChunkChars = 300

	a, err := New(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer a.Close()

	text := "SUBJECT: Networks\n1. Routing\nRouters forward packets between networks using routing tables.\n" +
		"SUBJECT: Databases\n1. Indexes\nA B-tree index speeds up lookups on large tables.\n"
	job := pipeline.NewJob("handbook", "handbook.txt", "", false, []byte(text))
	a.Worker.Process(context.Background(), job)
	require.Equal(t, pipeline.StatusCompleted, job.Snapshot().Status, "%v", job.Snapshot().Progress.Errors)

	ans, err := a.Answerer.Answer(context.Background(), "How do routers forward packets?")
	require.NoError(t, err)
	assert.False(t, ans.Unknown)
	require.NotEmpty(t, ans.Sources)
	assert.Contains(t, ans.Sources[0].Chunk.Text, "Routers forward packets")
	assert.Equal(t, []int{1}, ans.Citations)
	assert.Contains(t, ans.Text, "[Source 1]")
}

func TestNew_EmptyCorpusIsUnknown(t *testing.T) {
	cfg := config.Defaults()
	cfg.Offline()
	cfg.Store = "memory"

	a, err := New(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer a.Close()

	ans, err := a.Answerer.Answer(context.Background(), "anything at all?")
	require.NoError(t, err)
	assert.True(t, ans.Unknown)
	assert.Equal(t, llm.UnknownAnswer, ans.Text)
}

func TestNew_SQLiteStore(t *testing.T) {
	cfg := config.Defaults()
	cfg.Offline()
	cfg.Store = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "chunks.db")

	a, err := New(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.Store.(*store.SQLite)
	assert.True(t, ok)
}
