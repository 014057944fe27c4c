// Package docstore persists document records: the uploaded file's name and
// location, its extracted text, and how many chunks were indexed for it.
package docstore

import (
	"context"

	"github.com/DocMesh/docmesh-mvp/engine/domain"
)

// Store is the document record storage port. Create assigns the record ID
// and returns domain.ErrDuplicateDocument when the filename is already
// registered. Lookups return domain.ErrNotFound for missing records.
type Store interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	GetByFilename(ctx context.Context, filename string) (*domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
	SetChunkCount(ctx context.Context, id int64, count int) error
	Delete(ctx context.Context, id int64) error
}
