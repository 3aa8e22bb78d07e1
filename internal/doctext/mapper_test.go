package doctext

import (
	"strings"
	"testing"
)

func twoPageDoc() *Document {
	// Page 1: two lines. Page 2: three lines.
	return FromText("first line\nsecond line\fpage two line one\nline two\nline three")
}

func TestMap_QuoteIsVerbatimSpan(t *testing.T) {
	doc := twoPageDoc()
	m := NewMapper(doc, 0)

	start := strings.Index(doc.Text, "second")
	end := start + len("second line")
	cit := m.Map(start, end)

	if cit.Quote != doc.Text[cit.CharStart:cit.CharEnd] {
		t.Errorf("quote %q is not the text at [%d,%d)", cit.Quote, cit.CharStart, cit.CharEnd)
	}
	if cit.Page != 1 {
		t.Errorf("expected page 1, got %d", cit.Page)
	}
	if cit.LineStart != 2 || cit.LineEnd != 2 {
		t.Errorf("expected lines 2-2, got %d-%d", cit.LineStart, cit.LineEnd)
	}
	if cit.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %f", cit.Confidence)
	}
}

func TestMap_SecondPageAttribution(t *testing.T) {
	doc := twoPageDoc()
	m := NewMapper(doc, 0)

	start := strings.Index(doc.Text, "line three")
	cit := m.Map(start, start+len("line three"))

	if cit.Page != 2 {
		t.Errorf("expected page 2, got %d", cit.Page)
	}
	if cit.LineStart != 3 {
		t.Errorf("expected line 3 on page 2, got %d", cit.LineStart)
	}
}

func TestMap_SpanPastPageEndClampsWithPenalty(t *testing.T) {
	doc := twoPageDoc()
	m := NewMapper(doc, 0)

	start := strings.Index(doc.Text, "second")
	// End well into page 2.
	cit := m.Map(start, len(doc.Text))

	if cit.Page != 1 {
		t.Errorf("expected page 1 (span start), got %d", cit.Page)
	}
	if cit.LineEnd != 2 {
		t.Errorf("expected line end clamped to 2, got %d", cit.LineEnd)
	}
	if cit.Confidence >= 1.0 {
		t.Errorf("expected reduced confidence for clamped span, got %f", cit.Confidence)
	}
}

func TestMap_OffsetsClampedToDocument(t *testing.T) {
	doc := twoPageDoc()
	m := NewMapper(doc, 0)

	cit := m.Map(-5, len(doc.Text)+100)
	if cit.CharStart != 0 {
		t.Errorf("expected start clamped to 0, got %d", cit.CharStart)
	}
	if cit.CharEnd != len(doc.Text) {
		t.Errorf("expected end clamped to %d, got %d", len(doc.Text), cit.CharEnd)
	}
}

func TestMap_QuoteTruncationKeepsOffsets(t *testing.T) {
	doc := FromText(strings.Repeat("a", 500))
	m := NewMapper(doc, 150)

	cit := m.Map(0, 400)
	if cit.CharEnd != 400 {
		t.Errorf("truncation must not change offsets, got end %d", cit.CharEnd)
	}
	if !strings.HasSuffix(cit.Quote, "…") {
		t.Errorf("expected truncated quote to end with ellipsis, got %q", cit.Quote)
	}
	if len(cit.Quote) > 150+len("…") {
		t.Errorf("quote too long: %d bytes", len(cit.Quote))
	}
}

func TestMap_OCRPageConfidencePropagates(t *testing.T) {
	doc := joinPages([]string{"clean page", "scanned page"}, []float64{1.0, 0.5})
	m := NewMapper(doc, 0)

	start := strings.Index(doc.Text, "scanned")
	cit := m.Map(start, start+len("scanned"))
	if cit.Confidence != 0.5 {
		t.Errorf("expected OCR page confidence 0.5, got %f", cit.Confidence)
	}
}

func TestMap_SameInputSameCitation(t *testing.T) {
	doc := twoPageDoc()
	m := NewMapper(doc, 0)

	a := m.Map(3, 17)
	b := m.Map(3, 17)
	if a != b {
		t.Errorf("mapper not deterministic: %+v vs %+v", a, b)
	}
}
