// Package chunk splits extracted document text into bounded, overlapping
// segments and derives the positional identifiers they are indexed under.
// Chunking is deterministic: the same text and parameters always produce
// the same segments, which the identifier scheme depends on.
package chunk

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxSize is the maximum chunk length in runes.
	DefaultMaxSize = 500
	// DefaultOverlap is the number of runes shared between consecutive chunks.
	DefaultOverlap = 50
)

// separators are tried in order when looking for a natural cut point.
var separators = []string{"\n\n", "\n", ". ", " "}

// Chunker splits text into overlapping segments of bounded size.
type Chunker struct {
	maxSize int
	overlap int
}

// New creates a Chunker. Non-positive maxSize falls back to DefaultMaxSize;
// an overlap that is negative or not smaller than maxSize is clamped.
func New(maxSize, overlap int) *Chunker {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize / 10
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}
}

// Split breaks text into chunks of at most maxSize runes, preferring to cut
// on paragraph, line, or sentence boundaries in the trailing half of each
// window. Consecutive chunks share up to overlap runes. Empty or
// whitespace-only input yields an empty slice.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.maxSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.cut(runes, start, end)
		}

		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			chunks = append(chunks, piece)
		}
		// A clamped final window ends the walk. A full window that lands
		// exactly on the end still yields a trailing overlap chunk.
		if end == len(runes) && end-start < c.maxSize {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// cut returns the rune offset to end the window at, preferring the last
// natural boundary in the second half of the window so chunks stay
// reasonably sized.
func (c *Chunker) cut(runes []rune, start, end int) int {
	window := string(runes[start:end])
	min := c.maxSize / 2
	for _, sep := range separators {
		i := strings.LastIndex(window, sep)
		if i == -1 {
			continue
		}
		r := utf8.RuneCountInString(window[:i]) + utf8.RuneCountInString(sep)
		if r >= min {
			return start + r
		}
	}
	return end
}

// ID derives the identifier a chunk is indexed under from its owning
// document id and zero-based position.
func ID(docID int64, index int) string {
	return fmt.Sprintf("%d_%d", docID, index)
}

// IDRange returns the identifiers for chunk positions 0..n-1 of a document.
func IDRange(docID int64, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = ID(docID, i)
	}
	return ids
}
