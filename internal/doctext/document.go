package doctext

import (
	"fmt"
	"strings"
)

// PageBreak separates pages in extracted text. Form feed is not expected
// to occur in contract prose, so offsets of this rune double as the
// page-boundary map.
const PageBreak = "\f"

// Document is the page-addressable text of one contract, produced once per
// analysis run and read-only afterwards.
type Document struct {
	// Text is the full document text with PageBreak between pages.
	Text string

	// PageBreaks holds the character offset of each page-break marker,
	// strictly increasing. Offset 0 is the start of page 1, so a document
	// with N pages has N-1 entries.
	PageBreaks []int

	// PageConfidence holds one entry per page. 1.0 means direct text
	// extraction; lower values mark OCR-derived or unreadable pages whose
	// findings are advisory.
	PageConfidence []float64
}

// Citation points a claim back to a page/line/character location in the
// document text. Never mutated after creation.
type Citation struct {
	CharStart  int     `json:"char_start"`
	CharEnd    int     `json:"char_end"`
	Quote      string  `json:"quote"`
	Page       int     `json:"page"`
	LineStart  int     `json:"line_start"`
	LineEnd    int     `json:"line_end"`
	Confidence float64 `json:"confidence"`
}

// ExtractionError indicates the raw input could not be read as a document.
// Fatal for the single document; the caller gets no partial report.
type ExtractionError struct {
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s document: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return len(d.PageBreaks) + 1
}

// FromText builds a Document from already-extracted text. Page breaks are
// recovered from any embedded form-feed markers; text without markers is a
// single page. All pages get full confidence.
func FromText(text string) *Document {
	doc := &Document{Text: text}
	for i, r := range text {
		if r == '\f' {
			doc.PageBreaks = append(doc.PageBreaks, i)
		}
	}
	doc.PageConfidence = make([]float64, doc.PageCount())
	for i := range doc.PageConfidence {
		doc.PageConfidence[i] = 1.0
	}
	return doc
}

// joinPages assembles page texts into a Document, recording the offset of
// each separator and the per-page confidence values.
func joinPages(pages []string, confidence []float64) *Document {
	var b strings.Builder
	doc := &Document{}
	for i, page := range pages {
		if i > 0 {
			doc.PageBreaks = append(doc.PageBreaks, b.Len())
			b.WriteString(PageBreak)
		}
		b.WriteString(page)
	}
	doc.Text = b.String()
	doc.PageConfidence = confidence
	if len(doc.PageConfidence) != len(pages) {
		doc.PageConfidence = make([]float64, len(pages))
		for i := range doc.PageConfidence {
			doc.PageConfidence[i] = 1.0
		}
	}
	return doc
}
