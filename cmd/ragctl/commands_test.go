package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/document"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("RAG_CONFIG_FILE", "")
	t.Setenv("MIN_CHUNK_CHARS", "20")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "chunks.db"))
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const notes = "SUBJECT: Physics\n1. Motion\nAn object in motion stays in motion unless acted on.\n" +
	"SUBJECT: Chemistry\n1. Bonds\nCovalent bonds share electron pairs between atoms.\n"

func TestChunkCommand_JSON(t *testing.T) {
	path := writeFile(t, "notes.txt", notes)
	out, err := run(t, "--offline", "chunk", "--json", path)
	require.NoError(t, err)

	var chunks []document.Chunk
	require.NoError(t, json.Unmarshal([]byte(out), &chunks))
	require.Len(t, chunks, 2)
	assert.Equal(t, "Physics", chunks[0].Subject)
	assert.Equal(t, "Subject: Chemistry - 1. Bonds\n1. Bonds\nCovalent bonds share electron pairs between atoms.", chunks[1].Text)
}

func TestChunkCommand_UnsupportedFile(t *testing.T) {
	path := writeFile(t, "image.png", "x")
	_, err := run(t, "--offline", "chunk", path)
	assert.ErrorContains(t, err, "unsupported file extension")
}

func TestIngestCommand_RejectsDocIDWithManyFiles(t *testing.T) {
	a := writeFile(t, "a.txt", notes)
	b := writeFile(t, "b.txt", notes)
	_, err := run(t, "--offline", "ingest", "--doc-id", "x", a, b)
	assert.ErrorContains(t, err, "--doc-id")
}

func TestIngestCommand_Offline(t *testing.T) {
	path := writeFile(t, "notes.txt", notes)
	out, err := run(t, "--offline", "ingest", "--doc-id", "notes", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "completed"`)
	assert.Contains(t, out, `"doc_id": "notes"`)
}
