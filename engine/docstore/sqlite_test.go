package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DocMesh/docmesh-mvp/engine/domain"
)

// both backends must satisfy the same contract.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := NewSQLite(t.TempDir())
	if err != nil {
		t.Fatalf("opening sqlite store: %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"sqlite": sq,
		"memory": NewMemory(),
	}
}

func TestStore_CreateAssignsID(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc := &domain.Document{Filename: "a.pdf", Filepath: "/data/a.pdf", Content: "hello"}
			if err := store.Create(ctx, doc); err != nil {
				t.Fatal(err)
			}
			if doc.ID == 0 {
				t.Error("expected an assigned id")
			}
			if doc.UploadedAt.IsZero() {
				t.Error("expected uploaded_at to be set")
			}

			got, err := store.GetByID(ctx, doc.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.Filename != "a.pdf" || got.Content != "hello" {
				t.Errorf("round trip lost fields: %+v", got)
			}
		})
	}
}

func TestStore_DuplicateFilename(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Create(ctx, &domain.Document{Filename: "dup.pdf", Filepath: "/x"}); err != nil {
				t.Fatal(err)
			}
			err := store.Create(ctx, &domain.Document{Filename: "dup.pdf", Filepath: "/y"})
			if !errors.Is(err, domain.ErrDuplicateDocument) {
				t.Fatalf("expected ErrDuplicateDocument, got %v", err)
			}
		})
	}
}

func TestStore_GetByFilename(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc := &domain.Document{Filename: "find.pdf", Filepath: "/x"}
			if err := store.Create(ctx, doc); err != nil {
				t.Fatal(err)
			}

			got, err := store.GetByFilename(ctx, "find.pdf")
			if err != nil {
				t.Fatal(err)
			}
			if got.ID != doc.ID {
				t.Errorf("id = %d, want %d", got.ID, doc.ID)
			}

			if _, err := store.GetByFilename(ctx, "missing.pdf"); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_SetChunkCount(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc := &domain.Document{Filename: "c.pdf", Filepath: "/x"}
			if err := store.Create(ctx, doc); err != nil {
				t.Fatal(err)
			}
			if err := store.SetChunkCount(ctx, doc.ID, 7); err != nil {
				t.Fatal(err)
			}
			got, err := store.GetByID(ctx, doc.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.ChunkCount != 7 {
				t.Errorf("chunk_count = %d, want 7", got.ChunkCount)
			}

			if err := store.SetChunkCount(ctx, 9999, 1); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("expected ErrNotFound for missing id, got %v", err)
			}
		})
	}
}

func TestStore_DeleteFreesFilename(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc := &domain.Document{Filename: "gone.pdf", Filepath: "/x"}
			if err := store.Create(ctx, doc); err != nil {
				t.Fatal(err)
			}
			if err := store.Delete(ctx, doc.ID); err != nil {
				t.Fatal(err)
			}
			if _, err := store.GetByID(ctx, doc.ID); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("expected ErrNotFound after delete, got %v", err)
			}

			// Filename is reusable after delete.
			if err := store.Create(ctx, &domain.Document{Filename: "gone.pdf", Filepath: "/y"}); err != nil {
				t.Errorf("re-create after delete: %v", err)
			}

			// Deleting a missing record is a no-op.
			if err := store.Delete(ctx, 12345); err != nil {
				t.Errorf("delete of missing id: %v", err)
			}
		})
	}
}

func TestStore_ListOrdered(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, fn := range []string{"1.pdf", "2.pdf", "3.pdf"} {
				if err := store.Create(ctx, &domain.Document{Filename: fn, Filepath: "/x/" + fn}); err != nil {
					t.Fatal(err)
				}
			}
			docs, err := store.List(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(docs) != 3 {
				t.Fatalf("expected 3 documents, got %d", len(docs))
			}
			for i := 1; i < len(docs); i++ {
				if docs[i].ID < docs[i-1].ID {
					t.Fatal("list not ordered by id")
				}
			}
		})
	}
}

func TestSQLite_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	sq, err := NewSQLite(dir)
	if err != nil {
		t.Fatal(err)
	}
	doc := &domain.Document{Filename: "persist.pdf", Filepath: "/x", Content: "body"}
	if err := sq.Create(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if err := sq.Close(); err != nil {
		t.Fatal(err)
	}

	sq2, err := NewSQLite(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer sq2.Close()

	got, err := sq2.GetByFilename(ctx, "persist.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "body" {
		t.Errorf("content lost across reopen: %q", got.Content)
	}
}
