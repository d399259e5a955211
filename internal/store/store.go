// Package store persists chunk text and document metadata. The vector index
// holds only ids and vectors; hydration of search hits goes through here.
package store

import (
	"context"
	"errors"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/document"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

// ChunkStore is the durable chunk-id → chunk mapping.
type ChunkStore interface {
	// SaveDocument replaces any previously stored chunks of info.ID.
	SaveDocument(ctx context.Context, info document.Info, chunks []document.Chunk) error
	// GetChunks returns the chunks that exist among ids. Missing ids are absent from the map.
	GetChunks(ctx context.Context, ids []string) (map[string]document.Chunk, error)
	ListDocuments(ctx context.Context) ([]document.Info, error)
	GetDocument(ctx context.Context, id string) (document.Info, []document.Chunk, error)
	FindByHash(ctx context.Context, contentHash string) (document.Info, bool, error)
	DeleteDocument(ctx context.Context, id string) error
	Close() error
}
