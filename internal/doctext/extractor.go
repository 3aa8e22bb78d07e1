package doctext

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fumiama/go-docx"
	pdflib "github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// Config tunes text extraction.
type Config struct {
	// OCREnabled allows rasterizing scanned pages through external OCR
	// tooling. When disabled or the tools are missing, scanned pages
	// degrade to empty text with low confidence instead of failing.
	OCREnabled bool

	// OCRMinPageChars is the scanned-page heuristic: a PDF page whose
	// direct extraction yields fewer non-whitespace characters than this
	// is treated as image-only.
	OCRMinPageChars int

	// OCRWorkers bounds concurrent per-page OCR.
	OCRWorkers int
}

// DefaultConfig returns the extraction defaults.
func DefaultConfig() Config {
	return Config{
		OCREnabled:      true,
		OCRMinPageChars: 32,
		OCRWorkers:      2,
	}
}

// Extractor converts raw document bytes into a page-addressable Document.
type Extractor struct {
	cfg Config
	log *slog.Logger
	ocr *ocrRunner
}

// NewExtractor creates an Extractor. log may not be nil.
func NewExtractor(cfg Config, log *slog.Logger) *Extractor {
	if cfg.OCRMinPageChars <= 0 {
		cfg.OCRMinPageChars = 32
	}
	if cfg.OCRWorkers <= 0 {
		cfg.OCRWorkers = 1
	}
	return &Extractor{cfg: cfg, log: log, ocr: newOCRRunner(log)}
}

// SupportedExtensions lists file extensions this extractor can handle.
var SupportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".html": true,
	".htm":  true,
	".txt":  true,
}

// IsSupportedExtension checks if a filename's extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Extract converts raw bytes into a Document. The format is chosen by file
// extension; data without a recognized extension is sniffed for the PDF
// magic and otherwise treated as plain text.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return e.extractPDF(ctx, data)
	case ".docx":
		return e.extractDOCX(data)
	case ".html", ".htm":
		return e.extractHTML(data)
	case ".txt":
		return FromText(string(data)), nil
	default:
		if bytes.HasPrefix(data, []byte("%PDF-")) {
			return e.extractPDF(ctx, data)
		}
		return FromText(string(data)), nil
	}
}

// extractPDF pulls text per page, keeping page boundaries as form feeds.
// Pages below the scanned-page threshold are routed through OCR when it is
// available; otherwise they stay empty with low confidence.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (*Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "contractextract-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	f, reader, err := pdflib.Open(tmpPath)
	if err != nil {
		return nil, &ExtractionError{Format: "pdf", Err: err}
	}
	defer f.Close()

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, &ExtractionError{Format: "pdf", Err: fmt.Errorf("no pages")}
	}

	pages := make([]string, numPages)
	confidence := make([]float64, numPages)
	var scanned []int
	for i := 1; i <= numPages; i++ {
		confidence[i-1] = 1.0
		page := reader.Page(i)
		if page.V.IsNull() {
			scanned = append(scanned, i)
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || glyphCount(text) < e.cfg.OCRMinPageChars {
			scanned = append(scanned, i)
			continue
		}
		pages[i-1] = strings.TrimSpace(text)
	}

	if len(scanned) > 0 {
		e.runOCR(ctx, tmpPath, scanned, pages, confidence)
	}

	return joinPages(pages, confidence), nil
}

// runOCR fills in scanned pages with bounded parallelism. Pages that OCR
// cannot serve stay empty and are marked advisory.
func (e *Extractor) runOCR(ctx context.Context, pdfPath string, pageNums []int, pages []string, confidence []float64) {
	available := e.cfg.OCREnabled && e.ocr.available()
	if !available {
		for _, n := range pageNums {
			confidence[n-1] = confidenceUnreadable
		}
		e.log.Warn("ocr unavailable, scanned pages degraded", "pages", len(pageNums))
		return
	}

	sem := make(chan struct{}, e.cfg.OCRWorkers)
	var wg sync.WaitGroup
	for _, n := range pageNums {
		sem <- struct{}{}
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			defer func() { <-sem }()
			text, err := e.ocr.page(ctx, pdfPath, n)
			if err != nil {
				e.log.Warn("ocr failed", "page", n, "error", err)
				confidence[n-1] = confidenceUnreadable
				return
			}
			pages[n-1] = strings.TrimSpace(text)
			confidence[n-1] = confidenceOCR
		}(n)
	}
	wg.Wait()
}

func (e *Extractor) extractDOCX(data []byte) (*Document, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ExtractionError{Format: "docx", Err: err}
	}

	var paragraphs []string
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		if text := paragraphText(para); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	// DOCX carries no fixed pagination; the whole body is one page.
	return FromText(strings.Join(paragraphs, "\n")), nil
}

func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func (e *Extractor) extractHTML(data []byte) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ExtractionError{Format: "html", Err: err}
	}

	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "footer", "header":
				return
			case "p", "li", "td", "blockquote", "h1", "h2", "h3", "h4", "h5", "h6":
				if t := textContent(n); t != "" {
					lines = append(lines, t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return FromText(strings.Join(lines, "\n")), nil
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

// glyphCount counts non-whitespace characters, the scanned-page signal.
func glyphCount(s string) int {
	n := 0
	for _, r := range s {
		if !isSpace(r) {
			n++
		}
	}
	return n
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
