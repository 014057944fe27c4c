package semantic

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/DocMesh/docmesh-mvp/engine/domain"
)

// ChromemIndex is an embedded Index backed by chromem-go, for single-binary
// deployments without a Qdrant instance. Presence checks go through the
// collection itself, so they hold across restarts of a persisted index.
type ChromemIndex struct {
	mu    sync.Mutex
	col   *chromem.Collection
	embed Embedder
}

// NewChromem opens (or creates) an embedded collection. An empty path keeps
// the index purely in memory; otherwise it is persisted under path.
func NewChromem(path, collection string, embed Embedder) (*ChromemIndex, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("semantic: open chromem db %s: %w", path, err)
		}
	}

	ef := chromem.EmbeddingFunc(func(ctx context.Context, text string) ([]float32, error) {
		return embed.Embed(ctx, text)
	})
	col, err := db.GetOrCreateCollection(collection, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("semantic: chromem collection %s: %w", collection, err)
	}
	return &ChromemIndex{col: col, embed: embed}, nil
}

// Add embeds texts and stores them. Fails if any id was already added.
func (c *ChromemIndex) Add(ctx context.Context, ids, texts []string, metas []domain.ChunkMeta) error {
	if len(ids) == 0 {
		return nil
	}
	if err := validateAdd(ids, texts, metas); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if _, err := c.col.GetByID(ctx, id); err == nil {
			return domain.NewIndexError("add", fmt.Errorf("%w: %s", domain.ErrChunkExists, id))
		}
	}

	vectors, err := c.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return domain.NewIndexError("add", err)
	}

	docs := make([]chromem.Document, len(ids))
	for i := range ids {
		docs[i] = chromem.Document{
			ID:        ids[i],
			Content:   texts[i],
			Embedding: vectors[i],
			Metadata: map[string]string{
				payloadDocID:      strconv.FormatInt(metas[i].DocID, 10),
				payloadChunkIndex: strconv.Itoa(metas[i].ChunkIndex),
				payloadFilename:   metas[i].Filename,
			},
		}
	}
	if err := c.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return domain.NewIndexError("add", err)
	}
	return nil
}

// Query performs similarity search over the embedded collection.
func (c *ChromemIndex) Query(ctx context.Context, query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, nil
	}
	// chromem rejects nResults larger than the collection size.
	n := c.col.Count()
	if n == 0 {
		return nil, nil
	}
	if topK > n {
		topK = n
	}

	results, err := c.col.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, domain.NewIndexError("query", err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		docID, _ := strconv.ParseInt(r.Metadata[payloadDocID], 10, 64)
		chunkIndex, _ := strconv.Atoi(r.Metadata[payloadChunkIndex])
		hits[i] = Hit{
			ID:    r.ID,
			Text:  r.Content,
			Score: r.Similarity,
			Meta: domain.ChunkMeta{
				DocID:      docID,
				ChunkIndex: chunkIndex,
				Filename:   r.Metadata[payloadFilename],
			},
		}
	}
	return hits, nil
}

// Delete removes documents by id. Absent ids are ignored.
func (c *ChromemIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.col.Delete(ctx, nil, nil, ids...); err != nil {
		return domain.NewIndexError("delete", err)
	}
	return nil
}

// Count returns the number of stored documents.
func (c *ChromemIndex) Count(_ context.Context) (int, error) {
	return c.col.Count(), nil
}
