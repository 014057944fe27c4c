// Package rag composes retrieval and generation into a conversational
// answer flow: fetch the closest chunks, fold in prior turns, prompt the
// model, and report which files the answer drew from.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DocMesh/docmesh-mvp/engine/search"
	"github.com/DocMesh/docmesh-mvp/pkg/fn"
)

// ContextChunks is how many retrieved chunks feed the prompt.
const ContextChunks = 3

// Generator produces model completions for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Searcher retrieves chunks for a query.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]search.Result, error)
}

// Answer is a generated reply plus the filenames it was grounded on.
type Answer struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
}

// Service answers questions over the indexed corpus.
type Service struct {
	searcher  Searcher
	generator Generator
	logger    *slog.Logger
}

// New creates a rag Service.
func New(searcher Searcher, generator Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{searcher: searcher, generator: generator, logger: logger}
}

// Chat retrieves the ContextChunks most relevant chunks for query, builds a
// prompt from them plus the alternating user/bot history, and returns the
// generated answer with its deduplicated source filenames. Retrieval errors
// propagate unchanged; an empty retrieval still produces an answer, just
// without document context.
func (s *Service) Chat(ctx context.Context, query string, history []string) (Answer, error) {
	results, err := s.searcher.Search(ctx, query, ContextChunks)
	if err != nil {
		return Answer{}, err
	}

	text, err := s.generator.Generate(ctx, buildPrompt(query, history, results))
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	s.logger.Info("chat answered", "query_len", len(query), "context_chunks", len(results), "history_turns", len(history))

	return Answer{Text: strings.TrimSpace(text), Sources: sources(results)}, nil
}

func buildPrompt(query string, history []string, results []search.Result) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant answering questions about the user's documents.\n")

	if len(results) > 0 {
		b.WriteString("\nContext from the documents:\n")
		for _, r := range results {
			fmt.Fprintf(&b, "[%s]\n%s\n", r.Filename, r.Text)
		}
	}

	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for i, turn := range history {
			role := "User"
			if i%2 == 1 {
				role = "Bot"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, turn)
		}
	}

	fmt.Fprintf(&b, "\nUser: %s\nBot:", query)
	return b.String()
}

func sources(results []search.Result) []string {
	return fn.Unique(fn.Map(results, func(r search.Result) string { return r.Filename }))
}
