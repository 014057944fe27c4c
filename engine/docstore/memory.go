package docstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DocMesh/docmesh-mvp/engine/domain"
)

// Memory is an in-process Store for tests and throwaway runs.
type Memory struct {
	mu     sync.RWMutex
	nextID int64
	docs   map[int64]domain.Document
	byName map[string]int64
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID: 1,
		docs:   make(map[int64]domain.Document),
		byName: make(map[string]int64),
	}
}

func (m *Memory) Create(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byName[doc.Filename]; ok {
		return domain.ErrDuplicateDocument
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	doc.ID = m.nextID
	m.nextID++
	m.docs[doc.ID] = *doc
	m.byName[doc.Filename] = doc.ID
	return nil
}

func (m *Memory) GetByID(_ context.Context, id int64) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

func (m *Memory) GetByFilename(_ context.Context, filename string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byName[filename]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc := m.docs[id]
	return &doc, nil
}

func (m *Memory) List(_ context.Context) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]domain.Document, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *Memory) SetChunkCount(_ context.Context, id int64, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.ChunkCount = count
	m.docs[id] = doc
	return nil
}

func (m *Memory) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil
	}
	delete(m.byName, doc.Filename)
	delete(m.docs, id)
	return nil
}
