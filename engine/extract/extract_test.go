package extract

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/DocMesh/docmesh-mvp/engine/domain"
)

type fakeOCR struct {
	text string
	err  error
	got  []byte
}

func (f *fakeOCR) Recognize(_ context.Context, image []byte) (string, error) {
	f.got = image
	return f.text, f.err
}

type fakeRunner struct {
	out  []byte
	err  error
	args []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.args = append([]string{name}, args...)
	return f.out, f.err
}

func TestExtract_MissingFile(t *testing.T) {
	e := New(nil, nil, nil)
	_, err := e.Extract(context.Background(), "/nonexistent/file.pdf")
	var extErr *domain.ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if extErr.Path != "/nonexistent/file.pdf" {
		t.Errorf("wrong path in error: %q", extErr.Path)
	}
}

func TestOCRPage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	ocr := &fakeOCR{text: "scanned words"}
	runner := &fakeRunner{out: png}
	e := New(ocr, runner, nil)

	got := e.ocrPage(context.Background(), "doc.pdf", 3)
	if got != "scanned words" {
		t.Errorf("ocrPage = %q", got)
	}
	if !bytes.Equal(ocr.got, png) {
		t.Error("OCR did not receive the rendered image")
	}

	// pdftoppm must be constrained to the single requested page.
	want := []string{"pdftoppm", "-png", "-r", "300", "-f", "3", "-l", "3", "doc.pdf", "-"}
	if len(runner.args) != len(want) {
		t.Fatalf("runner args = %v", runner.args)
	}
	for i := range want {
		if runner.args[i] != want[i] {
			t.Errorf("arg %d = %q, want %q", i, runner.args[i], want[i])
		}
	}
}

func TestOCRPage_NoCollaborator(t *testing.T) {
	e := New(nil, &fakeRunner{}, nil)
	if got := e.ocrPage(context.Background(), "doc.pdf", 1); got != "" {
		t.Errorf("expected empty text without OCR, got %q", got)
	}
}

func TestOCRPage_FailuresAreSkipped(t *testing.T) {
	boom := errors.New("boom")

	e := New(&fakeOCR{text: "x"}, &fakeRunner{err: boom}, nil)
	if got := e.ocrPage(context.Background(), "doc.pdf", 1); got != "" {
		t.Errorf("render failure should yield empty text, got %q", got)
	}

	e = New(&fakeOCR{err: boom}, &fakeRunner{out: []byte("img")}, nil)
	if got := e.ocrPage(context.Background(), "doc.pdf", 1); got != "" {
		t.Errorf("ocr failure should yield empty text, got %q", got)
	}
}
