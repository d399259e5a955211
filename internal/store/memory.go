package store

import (
	"context"
	"sort"
	"sync"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/document"
)

// Memory is a ChunkStore held in process memory.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]document.Info
	chunks map[string]document.Chunk
	byDoc  map[string][]string
}

var _ ChunkStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		docs:   make(map[string]document.Info),
		chunks: make(map[string]document.Chunk),
		byDoc:  make(map[string][]string),
	}
}

func (m *Memory) SaveDocument(_ context.Context, info document.Info, chunks []document.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(info.ID)

	info.ChunkCount = len(chunks)
	m.docs[info.ID] = info
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ch.DocumentID = info.ID
		m.chunks[ch.ID] = ch
		ids[i] = ch.ID
	}
	m.byDoc[info.ID] = ids
	return nil
}

func (m *Memory) GetChunks(_ context.Context, ids []string) (map[string]document.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]document.Chunk, len(ids))
	for _, id := range ids {
		if ch, ok := m.chunks[id]; ok {
			out[id] = ch
		}
	}
	return out, nil
}

func (m *Memory) ListDocuments(_ context.Context) ([]document.Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make([]document.Info, 0, len(m.docs))
	for _, d := range m.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt != docs[j].CreatedAt {
			return docs[i].CreatedAt < docs[j].CreatedAt
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (m *Memory) GetDocument(_ context.Context, id string) (document.Info, []document.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.docs[id]
	if !ok {
		return document.Info{}, nil, ErrNotFound
	}
	chunks := make([]document.Chunk, 0, len(m.byDoc[id]))
	for _, cid := range m.byDoc[id] {
		chunks = append(chunks, m.chunks[cid])
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return info, chunks, nil
}

func (m *Memory) FindByHash(_ context.Context, contentHash string) (document.Info, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.docs {
		if d.ContentHash == contentHash {
			return d, true, nil
		}
	}
	return document.Info{}, false, nil
}

func (m *Memory) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	m.deleteLocked(id)
	return nil
}

func (m *Memory) deleteLocked(id string) {
	for _, cid := range m.byDoc[id] {
		delete(m.chunks, cid)
	}
	delete(m.byDoc, id)
	delete(m.docs, id)
}

func (m *Memory) Close() error { return nil }
