// Package docs owns the document lifecycle: upload runs the file through
// extraction, registration, chunking, and indexing; delete unwinds all of
// it. Uploads for the same filename are serialized so concurrent retries
// cannot race the duplicate check.
package docs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/DocMesh/docmesh-mvp/engine/chunk"
	"github.com/DocMesh/docmesh-mvp/engine/docstore"
	"github.com/DocMesh/docmesh-mvp/engine/domain"
	"github.com/DocMesh/docmesh-mvp/engine/semantic"
	"github.com/DocMesh/docmesh-mvp/pkg/fn"
)

const (
	// TextSampleRunes is how much extracted text an upload result carries.
	TextSampleRunes = 500
	// DeleteMargin widens the candidate chunk id range on delete, covering
	// records whose chunk count was written before a partial re-index.
	DeleteMargin = 16
	// FallbackPurgeBound is the candidate range when no chunk count was
	// recorded for the document.
	FallbackPurgeBound = 1000
)

// Extractor produces the plain text of a stored PDF.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Service coordinates the stores and the index for document lifecycle
// operations.
type Service struct {
	store     docstore.Store
	index     semantic.Index
	extractor Extractor
	chunker   *chunk.Chunker
	uploadDir string
	logger    *slog.Logger
	locks     *keyedMutex
}

// New creates a lifecycle Service writing uploads under uploadDir.
func New(store docstore.Store, index semantic.Index, extractor Extractor, chunker *chunk.Chunker, uploadDir string, logger *slog.Logger) *Service {
	if chunker == nil {
		chunker = chunk.New(chunk.DefaultMaxSize, chunk.DefaultOverlap)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		index:     index,
		extractor: extractor,
		chunker:   chunker,
		uploadDir: uploadDir,
		logger:    logger,
		locks:     newKeyedMutex(),
	}
}

// UploadResult reports a completed upload.
type UploadResult struct {
	ID         int64  `json:"id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	TextSample string `json:"text_sample"`
}

// DeleteResult reports what a delete actually touched.
type DeleteResult struct {
	Removed         bool `json:"removed"`
	ChunksAttempted int  `json:"chunks_attempted"`
	FileRemoved     bool `json:"file_removed"`
}

// upload state passed between pipeline stages.

type saved struct {
	filename string
	path     string
}

type extracted struct {
	saved
	text string
}

type recorded struct {
	extracted
	doc *domain.Document
}

// Upload persists data under the original filename, extracts its text,
// registers the document, and indexes its chunks. A filename already on
// record fails with domain.ErrDuplicateDocument before anything is
// re-chunked or re-indexed.
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (UploadResult, error) {
	if err := domain.ValidateFilename(filename); err != nil {
		return UploadResult{}, err
	}

	unlock := s.locks.lock(filename)
	defer unlock()

	pipeline := fn.Then(
		fn.TracedStage("upload.save", s.saveStage(data)),
		fn.Then(
			fn.TracedStage("upload.extract", s.extractStage()),
			fn.Then(
				fn.TracedStage("upload.record", s.recordStage()),
				fn.TracedStage("upload.index", s.indexStage()),
			),
		),
	)

	result, err := pipeline(ctx, filename).Unwrap()
	if err != nil {
		return UploadResult{}, err
	}
	s.logger.Info("document uploaded", "doc_id", result.ID, "filename", filename, "chunks", result.ChunkCount)
	return result, nil
}

func (s *Service) saveStage(data []byte) fn.Stage[string, saved] {
	return func(_ context.Context, filename string) fn.Result[saved] {
		if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
			return fn.Err[saved](fmt.Errorf("creating upload dir: %w", err))
		}
		path := filepath.Join(s.uploadDir, filename)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fn.Err[saved](fmt.Errorf("writing upload: %w", err))
		}
		return fn.Ok(saved{filename: filename, path: path})
	}
}

func (s *Service) extractStage() fn.Stage[saved, extracted] {
	return func(ctx context.Context, sv saved) fn.Result[extracted] {
		text, err := s.extractor.Extract(ctx, sv.path)
		if err != nil {
			return fn.Err[extracted](err)
		}
		return fn.Ok(extracted{saved: sv, text: text})
	}
}

func (s *Service) recordStage() fn.Stage[extracted, recorded] {
	return func(ctx context.Context, ex extracted) fn.Result[recorded] {
		_, err := s.store.GetByFilename(ctx, ex.filename)
		switch {
		case err == nil:
			return fn.Err[recorded](domain.ErrDuplicateDocument)
		case !errors.Is(err, domain.ErrNotFound):
			return fn.Err[recorded](fmt.Errorf("duplicate check: %w", err))
		}

		doc := &domain.Document{
			Filename: ex.filename,
			Filepath: ex.path,
			Content:  ex.text,
		}
		if err := s.store.Create(ctx, doc); err != nil {
			return fn.Err[recorded](err)
		}
		return fn.Ok(recorded{extracted: ex, doc: doc})
	}
}

func (s *Service) indexStage() fn.Stage[recorded, UploadResult] {
	return func(ctx context.Context, rec recorded) fn.Result[UploadResult] {
		pieces := s.chunker.Split(rec.text)

		if len(pieces) > 0 {
			ids := make([]string, len(pieces))
			metas := make([]domain.ChunkMeta, len(pieces))
			for i := range pieces {
				ids[i] = chunk.ID(rec.doc.ID, i)
				metas[i] = domain.ChunkMeta{DocID: rec.doc.ID, ChunkIndex: i, Filename: rec.filename}
			}
			if err := s.index.Add(ctx, ids, pieces, metas); err != nil {
				return fn.Err[UploadResult](err)
			}
		}

		if err := s.store.SetChunkCount(ctx, rec.doc.ID, len(pieces)); err != nil {
			return fn.Err[UploadResult](fmt.Errorf("recording chunk count: %w", err))
		}

		return fn.Ok(UploadResult{
			ID:         rec.doc.ID,
			Filename:   rec.filename,
			ChunkCount: len(pieces),
			TextSample: sample(rec.text, TextSampleRunes),
		})
	}
}

// Delete removes a document: its indexed chunks first, then its stored
// file, then the record. Chunk purge and file removal are best effort and
// never block the record delete; a missing document is domain.ErrNotFound.
func (s *Service) Delete(ctx context.Context, id int64) (DeleteResult, error) {
	doc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}

	unlock := s.locks.lock(doc.Filename)
	defer unlock()

	bound := doc.ChunkCount + DeleteMargin
	if doc.ChunkCount == 0 {
		bound = FallbackPurgeBound
	}
	candidates := chunk.IDRange(id, bound)

	result := DeleteResult{ChunksAttempted: len(candidates)}
	if err := s.index.Delete(ctx, candidates); err != nil {
		s.logger.Warn("chunk purge failed", "doc_id", id, "error", err)
	}

	if err := os.Remove(doc.Filepath); err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("file removal failed", "doc_id", id, "path", doc.Filepath, "error", err)
		}
	} else {
		result.FileRemoved = true
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return result, fmt.Errorf("deleting record: %w", err)
	}
	result.Removed = true
	s.logger.Info("document deleted", "doc_id", id, "filename", doc.Filename, "file_removed", result.FileRemoved)
	return result, nil
}

// List returns all registered documents.
func (s *Service) List(ctx context.Context) ([]domain.Document, error) {
	return s.store.List(ctx)
}

// Get returns one document record by id.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Document, error) {
	return s.store.GetByID(ctx, id)
}

func sample(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
