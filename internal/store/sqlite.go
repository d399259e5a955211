package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/document"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/store/migrations"
)

// SQLite is a ChunkStore backed by a single SQLite file.
type SQLite struct {
	db   *sql.DB
	path string
}

var _ ChunkStore = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies migrations.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLite{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *SQLite) SaveDocument(ctx context.Context, info document.Info, chunks []document.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", info.ID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	info.ChunkCount = len(chunks)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, title, filename, content_hash, chunk_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			filename = excluded.filename,
			content_hash = excluded.content_hash,
			chunk_count = excluded.chunk_count,
			created_at = excluded.created_at
	`, info.ID, info.Title, info.Filename, info.ContentHash, info.ChunkCount, info.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, text, raw_text, subject, header_path,
			char_count, page_start, page_end, boundary_forced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			chunk_index = excluded.chunk_index,
			text = excluded.text,
			raw_text = excluded.raw_text,
			subject = excluded.subject,
			header_path = excluded.header_path,
			char_count = excluded.char_count,
			page_start = excluded.page_start,
			page_end = excluded.page_end,
			boundary_forced = excluded.boundary_forced
	`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, ch := range chunks {
		path, err := json.Marshal(nonNilPath(ch.HeaderPath))
		if err != nil {
			return fmt.Errorf("marshalling header path: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, ch.ID, info.ID, ch.Index, ch.Text, ch.RawText, ch.Subject,
			string(path), ch.CharCount, ch.PageStart, ch.PageEnd, ch.BoundaryForced); err != nil {
			return fmt.Errorf("saving chunk %s: %w", ch.ID, err)
		}
	}
	return tx.Commit()
}

const chunkColumns = `id, document_id, chunk_index, text, raw_text, subject, header_path,
	char_count, page_start, page_end, boundary_forced`

func (s *SQLite) GetChunks(ctx context.Context, ids []string) (map[string]document.Chunk, error) {
	out := make(map[string]document.Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out[ch.ID] = ch
	}
	return out, rows.Err()
}

func (s *SQLite) ListDocuments(ctx context.Context) ([]document.Info, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, filename, content_hash, chunk_count, created_at
		FROM documents ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []document.Info
	for rows.Next() {
		var info document.Info
		if err := rows.Scan(&info.ID, &info.Title, &info.Filename, &info.ContentHash, &info.ChunkCount, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, info)
	}
	return docs, rows.Err()
}

func (s *SQLite) GetDocument(ctx context.Context, id string) (document.Info, []document.Chunk, error) {
	var info document.Info
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, filename, content_hash, chunk_count, created_at
		FROM documents WHERE id = ?
	`, id).Scan(&info.ID, &info.Title, &info.Filename, &info.ContentHash, &info.ChunkCount, &info.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return document.Info{}, nil, ErrNotFound
	}
	if err != nil {
		return document.Info{}, nil, fmt.Errorf("getting document: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE document_id = ? ORDER BY chunk_index", id)
	if err != nil {
		return document.Info{}, nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []document.Chunk
	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return document.Info{}, nil, err
		}
		chunks = append(chunks, ch)
	}
	return info, chunks, rows.Err()
}

func (s *SQLite) FindByHash(ctx context.Context, contentHash string) (document.Info, bool, error) {
	var info document.Info
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, filename, content_hash, chunk_count, created_at
		FROM documents WHERE content_hash = ? LIMIT 1
	`, contentHash).Scan(&info.ID, &info.Title, &info.Filename, &info.ContentHash, &info.ChunkCount, &info.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return document.Info{}, false, nil
	}
	if err != nil {
		return document.Info{}, false, fmt.Errorf("finding document by hash: %w", err)
	}
	return info, true, nil
}

func (s *SQLite) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(row scanner) (document.Chunk, error) {
	var ch document.Chunk
	var path string
	if err := row.Scan(&ch.ID, &ch.DocumentID, &ch.Index, &ch.Text, &ch.RawText, &ch.Subject, &path,
		&ch.CharCount, &ch.PageStart, &ch.PageEnd, &ch.BoundaryForced); err != nil {
		return document.Chunk{}, fmt.Errorf("scanning chunk: %w", err)
	}
	if err := json.Unmarshal([]byte(path), &ch.HeaderPath); err != nil {
		return document.Chunk{}, fmt.Errorf("unmarshalling header path: %w", err)
	}
	if len(ch.HeaderPath) == 0 {
		ch.HeaderPath = nil
	}
	return ch, nil
}

func nonNilPath(p []string) []string {
	if p == nil {
		return []string{}
	}
	return p
}
