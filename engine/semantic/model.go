// Package semantic provides the chunk vector index: a mapping from chunk id
// to embedding, text, and metadata, with similarity query and delete-by-id.
// Three backends share one interface: Qdrant over gRPC for production, an
// embedded chromem store for single-binary deployments, and an in-memory
// store for tests.
package semantic

import (
	"context"
	"fmt"

	"github.com/DocMesh/docmesh-mvp/engine/domain"
)

// Embedder converts text into fixed-length vectors, order-preserving.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Hit is a single similarity-query result.
type Hit struct {
	ID    string           `json:"id"`
	Text  string           `json:"text"`
	Meta  domain.ChunkMeta `json:"meta"`
	Score float32          `json:"score"`
}

// Index stores chunk embeddings keyed by chunk id.
//
// Add fails when any id is already present; the lifecycle manager
// guarantees fresh ids per upload. Delete of an absent id is a no-op, so
// callers may purge a generous candidate range. Query returns at most topK
// hits ordered by descending similarity and an empty slice on an empty
// index.
type Index interface {
	Add(ctx context.Context, ids []string, texts []string, metas []domain.ChunkMeta) error
	Query(ctx context.Context, query string, topK int) ([]Hit, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
}

// validateAdd checks the parallel-slice contract shared by all backends.
func validateAdd(ids, texts []string, metas []domain.ChunkMeta) error {
	if len(ids) != len(texts) || len(ids) != len(metas) {
		return fmt.Errorf("semantic: mismatched lengths: %d ids, %d texts, %d metas",
			len(ids), len(texts), len(metas))
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return domain.NewIndexError("add", fmt.Errorf("%w: %s", domain.ErrChunkExists, id))
		}
		seen[id] = struct{}{}
	}
	return nil
}
