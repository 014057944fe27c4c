package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for lifecycle and index failures.
var (
	ErrDuplicateDocument = errors.New("duplicate document")
	ErrNotFound          = errors.New("document not found")
	ErrChunkExists       = errors.New("chunk id already indexed")
	ErrEmptyFilename     = errors.New("empty filename")
	ErrInvalidFilename   = errors.New("invalid filename")
	ErrEmptyQuery        = errors.New("empty query")
)

// ExtractionError means the source file could not be opened or parsed.
// No document record is created when extraction fails.
type ExtractionError struct {
	Path    string
	Wrapped error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract: %s: %v", e.Path, e.Wrapped)
}

func (e *ExtractionError) Unwrap() error { return e.Wrapped }

// NewExtractionError creates an ExtractionError.
func NewExtractionError(path string, wrapped error) *ExtractionError {
	return &ExtractionError{Path: path, Wrapped: wrapped}
}

// IndexError means a vector index write failed. When it happens after the
// document record was committed, the document exists but is not searchable.
type IndexError struct {
	Op      string
	Wrapped error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index: %s: %v", e.Op, e.Wrapped)
}

func (e *IndexError) Unwrap() error { return e.Wrapped }

// NewIndexError creates an IndexError.
func NewIndexError(op string, wrapped error) *IndexError {
	return &IndexError{Op: op, Wrapped: wrapped}
}

// RetrievalError means the index or the embedding collaborator was
// unavailable during a search. Surfaced to the caller, never retried.
type RetrievalError struct {
	Query   string
	Wrapped error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval: %q: %v", e.Query, e.Wrapped)
}

func (e *RetrievalError) Unwrap() error { return e.Wrapped }

// NewRetrievalError creates a RetrievalError.
func NewRetrievalError(query string, wrapped error) *RetrievalError {
	return &RetrievalError{Query: query, Wrapped: wrapped}
}
