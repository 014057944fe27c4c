package semantic

import (
	"context"
	"errors"
	"testing"

	"github.com/DocMesh/docmesh-mvp/engine/domain"
)

func openChromem(t *testing.T, dir string, embed Embedder) *ChromemIndex {
	t.Helper()
	idx, err := NewChromem(dir, "chunks", embed)
	if err != nil {
		t.Fatalf("open chromem: %v", err)
	}
	return idx
}

func TestChromem_AddQueryDelete(t *testing.T) {
	ctx := context.Background()
	embed := &stubEmbedder{vectors: map[string][]float32{
		"cats are pets":  {1, 0, 0},
		"tax law basics": {0, 1, 0},
		"about cats":     {1, 0, 0},
	}}
	idx := openChromem(t, "", embed)

	err := idx.Add(ctx,
		[]string{"1_0", "2_0"},
		[]string{"cats are pets", "tax law basics"},
		[]domain.ChunkMeta{meta(1, 0, "pets.pdf"), meta(2, 0, "tax.pdf")},
	)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	// topK above the collection size must clamp, not error.
	hits, err := idx.Query(ctx, "about cats", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 2 || hits[0].ID != "1_0" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	if hits[0].Meta.DocID != 1 || hits[0].Meta.Filename != "pets.pdf" {
		t.Fatalf("metadata lost: %+v", hits[0].Meta)
	}

	if err := idx.Delete(ctx, []string{"1_0", "1_1"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := idx.Count(ctx); n != 1 {
		t.Fatalf("count after delete = %d, want 1", n)
	}
}

func TestChromem_DeleteAfterReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	embed := &stubEmbedder{vectors: map[string][]float32{
		"cats are pets": {1, 0, 0},
		"dogs are pets": {0, 1, 0},
		"about cats":    {1, 0, 0},
	}}

	idx := openChromem(t, dir, embed)
	err := idx.Add(ctx,
		[]string{"1_0", "1_1"},
		[]string{"cats are pets", "dogs are pets"},
		[]domain.ChunkMeta{meta(1, 0, "pets.pdf"), meta(1, 1, "pets.pdf")},
	)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	// A fresh process over the same path must still purge persisted chunks,
	// absent candidate ids included.
	reopened := openChromem(t, dir, embed)
	if n, _ := reopened.Count(ctx); n != 2 {
		t.Fatalf("count after reopen = %d, want 2", n)
	}
	if err := reopened.Delete(ctx, []string{"1_0", "1_1", "1_2"}); err != nil {
		t.Fatalf("delete after reopen: %v", err)
	}
	if n, _ := reopened.Count(ctx); n != 0 {
		t.Fatalf("count after delete = %d, want 0", n)
	}

	hits, err := reopened.Query(ctx, "about cats", 5)
	if err != nil {
		t.Fatalf("query after delete: %v", err)
	}
	for _, h := range hits {
		if h.Meta.DocID == 1 {
			t.Fatalf("deleted document still searchable: %+v", h)
		}
	}
}

func TestChromem_AddDuplicateAfterReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	embed := &stubEmbedder{vectors: map[string][]float32{
		"cats are pets": {1, 0, 0},
	}}

	idx := openChromem(t, dir, embed)
	err := idx.Add(ctx, []string{"1_0"}, []string{"cats are pets"}, []domain.ChunkMeta{meta(1, 0, "pets.pdf")})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	reopened := openChromem(t, dir, embed)
	err = reopened.Add(ctx, []string{"1_0"}, []string{"cats are pets"}, []domain.ChunkMeta{meta(1, 0, "pets.pdf")})
	if !errors.Is(err, domain.ErrChunkExists) {
		t.Fatalf("expected ErrChunkExists after reopen, got %v", err)
	}
}
