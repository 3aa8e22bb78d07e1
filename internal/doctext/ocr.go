package doctext

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// Confidence assigned to pages recovered through OCR and to pages that
// could not be read at all. Downstream citations inherit these values, so
// findings on such pages render as advisory.
const (
	confidenceOCR        = 0.5
	confidenceUnreadable = 0.3
)

// ocrRunner shells out to pdftoppm + tesseract, mirroring the pdftotext
// fallback approach: use the system tools when present, degrade cleanly
// when they are not.
type ocrRunner struct {
	log *slog.Logger

	once      sync.Once
	pdftoppm  string
	tesseract string
}

func newOCRRunner(log *slog.Logger) *ocrRunner {
	return &ocrRunner{log: log}
}

func (o *ocrRunner) available() bool {
	o.once.Do(func() {
		o.pdftoppm, _ = exec.LookPath("pdftoppm")
		o.tesseract, _ = exec.LookPath("tesseract")
	})
	return o.pdftoppm != "" && o.tesseract != ""
}

// page rasterizes a single PDF page and runs it through tesseract.
func (o *ocrRunner) page(ctx context.Context, pdfPath string, pageNum int) (string, error) {
	if !o.available() {
		return "", fmt.Errorf("ocr tools not installed")
	}

	dir, err := os.MkdirTemp("", "contractextract-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	render := exec.CommandContext(ctx, o.pdftoppm,
		"-f", fmt.Sprint(pageNum), "-l", fmt.Sprint(pageNum),
		"-r", "300", "-gray", "-png", pdfPath, prefix)
	if out, err := render.CombinedOutput(); err != nil {
		return "", fmt.Errorf("pdftoppm: %w (%s)", err, truncateQuote(string(out), 120))
	}

	// pdftoppm names output page-N.png with zero padding that varies by
	// total page count, so glob for it.
	matches, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("no rasterized page produced")
	}

	ocr := exec.CommandContext(ctx, o.tesseract, matches[0], "stdout")
	out, err := ocr.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil
}
