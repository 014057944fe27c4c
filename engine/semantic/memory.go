package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/DocMesh/docmesh-mvp/engine/domain"
)

// entry is one stored chunk in insertion order.
type entry struct {
	id     string
	text   string
	meta   domain.ChunkMeta
	vector []float32
}

// MemoryIndex is a brute-force cosine-similarity index. Ties in the query
// ranking are broken by insertion order.
type MemoryIndex struct {
	mu      sync.RWMutex
	embed   Embedder
	entries []entry
	byID    map[string]int
}

// NewMemory creates an empty in-memory index.
func NewMemory(embed Embedder) *MemoryIndex {
	return &MemoryIndex{embed: embed, byID: make(map[string]int)}
}

// Add embeds texts and inserts them. Fails if any id already exists.
func (m *MemoryIndex) Add(ctx context.Context, ids, texts []string, metas []domain.ChunkMeta) error {
	if len(ids) == 0 {
		return nil
	}
	if err := validateAdd(ids, texts, metas); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if _, ok := m.byID[id]; ok {
			return domain.NewIndexError("add", fmt.Errorf("%w: %s", domain.ErrChunkExists, id))
		}
	}

	vectors, err := m.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return domain.NewIndexError("add", err)
	}
	if len(vectors) != len(texts) {
		return domain.NewIndexError("add", fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts)))
	}

	for i, id := range ids {
		m.byID[id] = len(m.entries)
		m.entries = append(m.entries, entry{id: id, text: texts[i], meta: metas[i], vector: vectors[i]})
	}
	return nil
}

// Query embeds the query text and returns the topK nearest entries by
// cosine similarity, highest first.
func (m *MemoryIndex) Query(ctx context.Context, query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return nil, nil
	}

	qv, err := m.embed.Embed(ctx, query)
	if err != nil {
		return nil, domain.NewIndexError("query", err)
	}

	type scored struct {
		pos   int
		score float32
	}
	scores := make([]scored, len(m.entries))
	for i, e := range m.entries {
		scores[i] = scored{pos: i, score: cosine(qv, e.vector)}
	}
	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if topK > len(scores) {
		topK = len(scores)
	}
	hits := make([]Hit, topK)
	for i := 0; i < topK; i++ {
		e := m.entries[scores[i].pos]
		hits[i] = Hit{ID: e.id, Text: e.text, Meta: e.meta, Score: scores[i].score}
	}
	return hits, nil
}

// Delete removes entries by id. Absent ids are ignored.
func (m *MemoryIndex) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := m.byID[id]; ok {
			drop[id] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return nil
	}

	kept := m.entries[:0]
	for _, e := range m.entries {
		if _, gone := drop[e.id]; !gone {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	m.byID = make(map[string]int, len(kept))
	for i, e := range kept {
		m.byID[e.id] = i
	}
	return nil
}

// Count returns the number of stored entries.
func (m *MemoryIndex) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
