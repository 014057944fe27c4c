// Package extract converts PDF files into plain text. Pages with native
// text are read directly; pages that yield nothing are rasterized and sent
// to the OCR collaborator, so scanned and native pages can coexist in one
// file.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/DocMesh/docmesh-mvp/engine/domain"
)

// OCR recognizes text in a rendered page image.
type OCR interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Extractor reads PDF text page by page with an OCR fallback.
type Extractor struct {
	ocr    OCR
	runner Runner
	dpi    int
	logger *slog.Logger
}

// New creates an Extractor. ocr may be nil, in which case pages without
// native text contribute nothing. A nil runner falls back to exec.
func New(ocr OCR, runner Runner, logger *slog.Logger) *Extractor {
	if runner == nil {
		runner = execRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{ocr: ocr, runner: runner, dpi: 300, logger: logger}
}

// Extract returns the concatenated text of all pages in page order.
// It fails with a domain.ExtractionError when the file cannot be opened or
// parsed; per-page OCR failures are logged and skipped.
func (e *Extractor) Extract(ctx context.Context, path string) (_ string, err error) {
	// The pdf parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewExtractionError(path, fmt.Errorf("parse: %v", r))
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", domain.NewExtractionError(path, err)
	}
	defer f.Close()

	var b strings.Builder
	total := r.NumPage()
	for page := 1; page <= total; page++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text := e.pageText(r, page)
		if strings.TrimSpace(text) == "" {
			text = e.ocrPage(ctx, path, page)
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// pageText attempts native text extraction for one page. Empty string on
// any failure so the caller falls back to OCR.
func (e *Extractor) pageText(r *pdf.Reader, page int) string {
	p := r.Page(page)
	if p.V.IsNull() {
		return ""
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		e.logger.Debug("native text extraction failed", "page", page, "error", err)
		return ""
	}
	return text
}

// ocrPage rasterizes one page and submits it to the OCR collaborator.
func (e *Extractor) ocrPage(ctx context.Context, path string, page int) string {
	if e.ocr == nil {
		return ""
	}
	img, err := e.render(ctx, path, page)
	if err != nil {
		e.logger.Warn("page render failed, skipping OCR", "page", page, "error", err)
		return ""
	}
	text, err := e.ocr.Recognize(ctx, img)
	if err != nil {
		e.logger.Warn("ocr failed, skipping page", "page", page, "error", err)
		return ""
	}
	return text
}
