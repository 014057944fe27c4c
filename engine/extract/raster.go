package extract

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	return out, nil
}

// render rasterizes a single page to PNG via poppler's pdftoppm.
func (e *Extractor) render(ctx context.Context, path string, page int) ([]byte, error) {
	n := strconv.Itoa(page)
	return e.runner.Run(ctx, "pdftoppm",
		"-png",
		"-r", strconv.Itoa(e.dpi),
		"-f", n,
		"-l", n,
		path,
		"-",
	)
}
