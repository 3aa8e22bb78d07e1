package doctext

import (
	"sort"
	"strings"
)

// DefaultQuoteMaxLen caps the displayed quote of a citation. Truncation
// changes only the quote, never the character offsets.
const DefaultQuoteMaxLen = 150

// clampPenalty scales confidence down when a span runs past the end of the
// page its start falls on.
const clampPenalty = 0.8

// Mapper converts absolute character offsets into page/line citations.
// It is pure: the same document and offsets always yield the same Citation.
type Mapper struct {
	doc      *Document
	quoteMax int
}

// NewMapper builds a Mapper for one document. quoteMax <= 0 falls back to
// DefaultQuoteMaxLen.
func NewMapper(doc *Document, quoteMax int) *Mapper {
	if quoteMax <= 0 {
		quoteMax = DefaultQuoteMaxLen
	}
	return &Mapper{doc: doc, quoteMax: quoteMax}
}

// Map resolves [charStart, charEnd) to a Citation with 1-indexed page and
// line numbers. Offsets are clamped into the document bounds.
func (m *Mapper) Map(charStart, charEnd int) Citation {
	text := m.doc.Text
	if charStart < 0 {
		charStart = 0
	}
	if charStart > len(text) {
		charStart = len(text)
	}
	if charEnd < charStart {
		charEnd = charStart
	}
	if charEnd > len(text) {
		charEnd = len(text)
	}

	// Number of page breaks strictly before charStart gives the 0-indexed
	// page holding the span start.
	breaks := m.doc.PageBreaks
	pageIdx := sort.SearchInts(breaks, charStart)
	page := pageIdx + 1

	pageStart := 0
	if pageIdx > 0 {
		pageStart = breaks[pageIdx-1] + 1
	}
	pageEnd := len(text)
	if pageIdx < len(breaks) {
		pageEnd = breaks[pageIdx]
	}

	confidence := 1.0
	if pageIdx < len(m.doc.PageConfidence) {
		confidence = m.doc.PageConfidence[pageIdx]
	}

	lineStart := 1 + strings.Count(text[pageStart:charStart], "\n")
	lineEnd := lineStart
	if charEnd > pageStart {
		end := charEnd
		if end > pageEnd {
			// Span crosses the page break: clamp to the last line of the
			// start page and lower confidence to reflect the clamp.
			end = pageEnd
			confidence *= clampPenalty
		}
		lineEnd = 1 + strings.Count(text[pageStart:end], "\n")
	}

	return Citation{
		CharStart:  charStart,
		CharEnd:    charEnd,
		Quote:      truncateQuote(text[charStart:charEnd], m.quoteMax),
		Page:       page,
		LineStart:  lineStart,
		LineEnd:    lineEnd,
		Confidence: confidence,
	}
}

func truncateQuote(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Cut on a rune boundary so the ellipsis never splits UTF-8.
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
