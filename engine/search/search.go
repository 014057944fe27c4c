// Package search answers semantic queries over the chunk index, flattening
// index hits into per-chunk result records for the outward-facing surface.
package search

import (
	"context"
	"log/slog"

	"github.com/DocMesh/docmesh-mvp/engine/domain"
	"github.com/DocMesh/docmesh-mvp/engine/semantic"
)

// DefaultTopK is used when the caller does not request a result count.
const DefaultTopK = 5

// Result is a retrieved chunk with its unwrapped metadata.
type Result struct {
	Text       string  `json:"text"`
	DocID      int64   `json:"doc_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
}

// Service performs semantic retrieval against a vector index.
type Service struct {
	index  semantic.Index
	logger *slog.Logger
}

// New creates a retrieval Service.
func New(index semantic.Index, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{index: index, logger: logger}
}

// Search returns the topK most similar chunks in ranking order. Index or
// embedding failures surface as a domain.RetrievalError; an empty index
// yields an empty result list.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if err := domain.ValidateQuery(query); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	hits, err := s.index.Query(ctx, query, topK)
	if err != nil {
		return nil, domain.NewRetrievalError(query, err)
	}
	s.logger.Info("search done", "query_len", len(query), "hits", len(hits))

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			Text:       h.Text,
			DocID:      h.Meta.DocID,
			Filename:   h.Meta.Filename,
			ChunkIndex: h.Meta.ChunkIndex,
			Score:      h.Score,
		}
	}
	return results, nil
}
