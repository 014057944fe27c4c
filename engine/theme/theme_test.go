package theme

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DocMesh/docmesh-mvp/engine/search"
)

// stubSummarizer records inputs and can fail on selected calls.
type stubSummarizer struct {
	inputs  []string
	failOn  map[int]error // 0-based call number
	summary string
}

func (s *stubSummarizer) Summarize(_ context.Context, text string) (string, error) {
	call := len(s.inputs)
	s.inputs = append(s.inputs, text)
	if err, ok := s.failOn[call]; ok {
		return "", err
	}
	return s.summary, nil
}

func chunkResult(text string, docID int64, idx int, filename string) search.Result {
	return search.Result{Text: text, DocID: docID, ChunkIndex: idx, Filename: filename}
}

func TestSynthesize_Empty(t *testing.T) {
	svc := New(&stubSummarizer{summary: "s"}, nil)
	themes := svc.Synthesize(context.Background(), "q", nil)
	if len(themes) != 0 {
		t.Errorf("expected no themes, got %d", len(themes))
	}
}

func TestSynthesize_Grouping(t *testing.T) {
	sum := &stubSummarizer{summary: "a summary"}
	svc := New(sum, nil)

	chunks := []search.Result{
		chunkResult("one", 1, 0, "a.pdf"),
		chunkResult("two", 1, 1, "a.pdf"),
		chunkResult("three", 2, 0, "b.pdf"),
		chunkResult("four", 3, 0, "c.pdf"),
	}
	themes := svc.Synthesize(context.Background(), "q", chunks)
	if len(themes) != 2 {
		t.Fatalf("expected 2 themes for 4 chunks, got %d", len(themes))
	}

	if themes[0].Title != "Theme 1" || themes[1].Title != "Theme 2" {
		t.Errorf("titles wrong: %q, %q", themes[0].Title, themes[1].Title)
	}

	// First group holds chunks 0-2, second the remainder.
	if sum.inputs[0] != "one\ntwo\nthree" {
		t.Errorf("group 1 input = %q", sum.inputs[0])
	}
	if sum.inputs[1] != "four" {
		t.Errorf("group 2 input = %q", sum.inputs[1])
	}

	// Sources follow the same group boundaries as the texts, deduplicated.
	if len(themes[0].Documents) != 2 || themes[0].Documents[0] != "a.pdf" || themes[0].Documents[1] != "b.pdf" {
		t.Errorf("theme 1 sources = %v", themes[0].Documents)
	}
	if len(themes[1].Documents) != 1 || themes[1].Documents[0] != "c.pdf" {
		t.Errorf("theme 2 sources = %v", themes[1].Documents)
	}
}

func TestSynthesize_InputCap(t *testing.T) {
	sum := &stubSummarizer{summary: "s"}
	svc := New(sum, nil)

	long := strings.Repeat("x", 1500)
	chunks := []search.Result{
		chunkResult(long, 1, 0, "a.pdf"),
		chunkResult(long, 1, 1, "a.pdf"),
	}
	svc.Synthesize(context.Background(), "q", chunks)
	if got := len([]rune(sum.inputs[0])); got != InputCap {
		t.Errorf("summarizer input %d runes, want capped at %d", got, InputCap)
	}
}

func TestSynthesize_PartialFailure(t *testing.T) {
	sum := &stubSummarizer{
		summary: "good summary",
		failOn:  map[int]error{1: errors.New("model overloaded")},
	}
	svc := New(sum, nil)

	chunks := make([]search.Result, 6)
	for i := range chunks {
		chunks[i] = chunkResult("text", int64(i), 0, "f.pdf")
	}
	themes := svc.Synthesize(context.Background(), "q", chunks)
	if len(themes) != 2 {
		t.Fatalf("expected 2 themes, got %d", len(themes))
	}
	if themes[0].Summary != "good summary" {
		t.Errorf("theme 1 summary = %q", themes[0].Summary)
	}
	if !strings.Contains(themes[1].Summary, "Failed to summarize theme 2") ||
		!strings.Contains(themes[1].Summary, "model overloaded") {
		t.Errorf("theme 2 placeholder = %q", themes[1].Summary)
	}
}
