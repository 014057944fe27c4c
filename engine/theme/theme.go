// Package theme groups retrieved chunks into small batches and produces a
// synthesized summary per batch via the summarization collaborator.
package theme

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DocMesh/docmesh-mvp/engine/domain"
	"github.com/DocMesh/docmesh-mvp/engine/search"
	"github.com/DocMesh/docmesh-mvp/pkg/fn"
)

const (
	// GroupSize is how many consecutive chunks form one theme.
	GroupSize = 3
	// InputCap bounds the text handed to the summarizer, in runes.
	InputCap = 2000
)

// Summarizer produces a short summary of the given text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Service synthesizes themes from retrieval results.
type Service struct {
	summarizer Summarizer
	logger     *slog.Logger
}

// New creates a theme Service.
func New(summarizer Summarizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{summarizer: summarizer, logger: logger}
}

// Synthesize partitions chunks into consecutive groups of GroupSize (the
// last group may be smaller) and summarizes each. Chunk text and metadata
// travel as one record, so group boundaries can never drift apart. A failed
// group gets a placeholder summary carrying the error instead of aborting
// the rest. Empty input yields an empty theme list.
func (s *Service) Synthesize(ctx context.Context, query string, chunks []search.Result) []domain.Theme {
	var themes []domain.Theme
	for start := 0; start < len(chunks); start += GroupSize {
		end := start + GroupSize
		if end > len(chunks) {
			end = len(chunks)
		}
		group := chunks[start:end]
		n := len(themes) + 1

		summary, err := s.summarizer.Summarize(ctx, groupInput(group))
		if err != nil {
			s.logger.Warn("theme summarization failed", "theme", n, "query_len", len(query), "error", err)
			summary = fmt.Sprintf("Failed to summarize theme %d: %v", n, err)
		}

		themes = append(themes, domain.Theme{
			Title:     fmt.Sprintf("Theme %d", n),
			Summary:   summary,
			Documents: sourceFiles(group),
		})
	}
	return themes
}

// groupInput joins group chunk texts, capped at InputCap runes.
func groupInput(group []search.Result) string {
	var b strings.Builder
	for i, c := range group {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c.Text)
	}
	runes := []rune(b.String())
	if len(runes) > InputCap {
		return string(runes[:InputCap])
	}
	return b.String()
}

// sourceFiles returns the deduplicated filenames of a group, in first-seen
// order.
func sourceFiles(group []search.Result) []string {
	return fn.Unique(fn.Map(group, func(c search.Result) string { return c.Filename }))
}
