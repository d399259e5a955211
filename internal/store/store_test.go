package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/document"
)

func backends(t *testing.T) map[string]ChunkStore {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, sq.Close()) })
	return map[string]ChunkStore{
		"sqlite": sq,
		"memory": NewMemory(),
	}
}

func testChunks(docID string, texts ...string) []document.Chunk {
	out := make([]document.Chunk, len(texts))
	for i, text := range texts {
		out[i] = document.Chunk{
			ID:         document.ChunkID(docID, i, text),
			DocumentID: docID,
			Index:      i,
			Text:       text,
			RawText:    text,
			CharCount:  len(text),
		}
	}
	return out
}

func TestChunkStore_SaveAndGetChunks(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			chunks := testChunks("doc-1", "alpha", "beta")
			chunks[1].Subject = "NETWORKS"
			chunks[1].HeaderPath = []string{"1. Intro", "1.1 History"}
			chunks[1].PageStart, chunks[1].PageEnd = 2, 3

			info := document.Info{ID: "doc-1", Title: "Doc", Filename: "doc.txt", ContentHash: "h1", CreatedAt: "2024-01-01T00:00:00Z"}
			require.NoError(t, s.SaveDocument(ctx, info, chunks))

			got, err := s.GetChunks(ctx, []string{chunks[0].ID, chunks[1].ID, "missing"})
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, chunks[1], got[chunks[1].ID])
			_, ok := got["missing"]
			assert.False(t, ok)

			gotInfo, all, err := s.GetDocument(ctx, "doc-1")
			require.NoError(t, err)
			assert.Equal(t, 2, gotInfo.ChunkCount)
			require.Len(t, all, 2)
			assert.Equal(t, "alpha", all[0].Text)
		})
	}
}

func TestChunkStore_SaveReplacesPreviousChunks(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			info := document.Info{ID: "d", Title: "t", Filename: "f", ContentHash: "h", CreatedAt: "2024-01-01T00:00:00Z"}
			old := testChunks("d", "one", "two", "three")
			require.NoError(t, s.SaveDocument(ctx, info, old))
			fresh := testChunks("d", "uno")
			require.NoError(t, s.SaveDocument(ctx, info, fresh))

			got, err := s.GetChunks(ctx, []string{old[1].ID, old[2].ID, fresh[0].ID})
			require.NoError(t, err)
			assert.Len(t, got, 1)

			docs, err := s.ListDocuments(ctx)
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, 1, docs[0].ChunkCount)
		})
	}
}

func TestChunkStore_FindByHashAndDelete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			info := document.Info{ID: "d", Title: "t", Filename: "f", ContentHash: "abc", CreatedAt: "2024-01-01T00:00:00Z"}
			chunks := testChunks("d", "text")
			require.NoError(t, s.SaveDocument(ctx, info, chunks))

			found, ok, err := s.FindByHash(ctx, "abc")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "d", found.ID)

			_, ok, err = s.FindByHash(ctx, "zzz")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.DeleteDocument(ctx, "d"))
			assert.ErrorIs(t, s.DeleteDocument(ctx, "d"), ErrNotFound)
			_, _, err = s.GetDocument(ctx, "d")
			assert.ErrorIs(t, err, ErrNotFound)

			got, err := s.GetChunks(ctx, []string{chunks[0].ID})
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestOpenSQLite_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveDocument(context.Background(), document.Info{ID: "d", CreatedAt: "x"}, testChunks("d", "kept")))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	docs, err := s.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
}
