// Package domain defines core domain types, errors, and validation for the
// DocMesh engine. It acts as the validation gate at pipeline entry points.
package domain

import "time"

// Document is a stored source document with its extracted text.
// Immutable once created, except for deletion.
type Document struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	Filepath   string    `json:"filepath"`
	Content    string    `json:"content"`
	ChunkCount int       `json:"chunk_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ChunkMeta is the metadata carried alongside every indexed chunk.
type ChunkMeta struct {
	DocID      int64  `json:"doc_id"`
	ChunkIndex int    `json:"chunk_index"`
	Filename   string `json:"filename"`
}

// Theme is a synthesized label over one batch of retrieved chunks.
// Computed per query, never persisted.
type Theme struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Documents []string `json:"documents"`
}
