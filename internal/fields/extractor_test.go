package fields

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"contractextract/internal/doctext"
	"contractextract/internal/rulepack"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClient struct {
	response string
	err      error
	prompt   string
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func leasePolicy() *rulepack.Policy {
	return &rulepack.Policy{
		ExtractionPrompt: "Extract lease fields.",
		FieldSchema: map[string]rulepack.FieldSpec{
			"tenant_legal_name": {Type: "string"},
			"base_rent_amount":  {Type: "number"},
			"has_renewal":       {Type: "bool"},
		},
	}
}

func TestExtract_TypedFieldsWithProvenance(t *testing.T) {
	doc := doctext.FromText("LEASE\nThe tenant is Acme Holdings LLC.\nRent: $5,000.00 per month.")
	client := &fakeClient{response: `{"tenant_legal_name": "Acme Holdings LLC", "base_rent_amount": "$5,000.00", "has_renewal": "yes"}`}
	e := NewExtractor(client, time.Second, 0, testLogger())

	res, err := e.Extract(context.Background(), doc, leasePolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	name, ok := res.Fields.String("tenant_legal_name")
	if !ok || name != "Acme Holdings LLC" {
		t.Errorf("unexpected tenant: %q ok=%v", name, ok)
	}
	if cit := res.Fields["tenant_legal_name"].Citation; cit == nil {
		t.Error("expected citation for tenant name found verbatim in text")
	} else if cit.Page != 1 || cit.LineStart != 2 {
		t.Errorf("unexpected citation location: page %d line %d", cit.Page, cit.LineStart)
	}

	rent, ok := res.Fields.Number("base_rent_amount")
	if !ok || rent != 5000 {
		t.Errorf("expected rent 5000 from formatted amount, got %v ok=%v", rent, ok)
	}

	renewal, ok := res.Fields.Bool("has_renewal")
	if !ok || !renewal {
		t.Errorf("expected has_renewal true from %q", "yes")
	}
}

func TestExtract_MalformedValueBecomesNullPlusDiagnostic(t *testing.T) {
	doc := doctext.FromText("some lease text")
	client := &fakeClient{response: `{"tenant_legal_name": "Acme", "base_rent_amount": "five thousand", "has_renewal": "maybe"}`}
	e := NewExtractor(client, time.Second, 0, testLogger())

	res, err := e.Extract(context.Background(), doc, leasePolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Fields.Has("base_rent_amount") {
		t.Error("unparseable number must degrade to null")
	}
	if res.Fields.Has("has_renewal") {
		t.Error("unparseable bool must degrade to null")
	}
	if len(res.Diagnostics) < 2 {
		t.Errorf("expected diagnostics for both bad fields, got %v", res.Diagnostics)
	}
	// The good field still comes through.
	if name, _ := res.Fields.String("tenant_legal_name"); name != "Acme" {
		t.Errorf("good field lost during salvage: %q", name)
	}
}

func TestExtract_NullWordsAreNull(t *testing.T) {
	doc := doctext.FromText("text")
	client := &fakeClient{response: `{"tenant_legal_name": "Not specified", "base_rent_amount": null, "has_renewal": false}`}
	e := NewExtractor(client, time.Second, 0, testLogger())

	res, err := e.Extract(context.Background(), doc, leasePolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fields.Has("tenant_legal_name") {
		t.Error(`"Not specified" must be treated as null`)
	}
	if b, ok := res.Fields.Bool("has_renewal"); !ok || b {
		t.Errorf("explicit false must survive, got %v ok=%v", b, ok)
	}
}

func TestExtract_EverySchemaFieldPresent(t *testing.T) {
	doc := doctext.FromText("text")
	client := &fakeClient{response: `{}`}
	e := NewExtractor(client, time.Second, 0, testLogger())

	res, err := e.Extract(context.Background(), doc, leasePolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for name := range leasePolicy().FieldSchema {
		if _, present := res.Fields[name]; !present {
			t.Errorf("schema field %q missing from result", name)
		}
	}
}

func TestExtract_UnknownKeysReported(t *testing.T) {
	doc := doctext.FromText("text")
	client := &fakeClient{response: `{"tenant_legal_name": "Acme", "surprise_field": "hello"}`}
	e := NewExtractor(client, time.Second, 0, testLogger())

	res, err := e.Extract(context.Background(), doc, leasePolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, d := range res.Diagnostics {
		if strings.Contains(d, "surprise_field") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected diagnostic naming unknown key, got %v", res.Diagnostics)
	}
}

func TestExtract_NestedResponseFlattened(t *testing.T) {
	doc := doctext.FromText("text")
	client := &fakeClient{response: `{"Tenant Info": {"tenant_legal_name": "Acme"}}`}
	e := NewExtractor(client, time.Second, 0, testLogger())

	res, err := e.Extract(context.Background(), doc, leasePolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name, _ := res.Fields.String("tenant_legal_name"); name != "Acme" {
		t.Errorf("nested field not surfaced, got %q", name)
	}
}

func TestExtract_CapabilityFailureIsError(t *testing.T) {
	doc := doctext.FromText("text")
	client := &fakeClient{err: errors.New("connection refused")}
	e := NewExtractor(client, time.Second, 0, testLogger())

	if _, err := e.Extract(context.Background(), doc, leasePolicy()); err == nil {
		t.Fatal("expected error when the capability is unreachable")
	}
}

func TestExtract_GarbageResponseIsError(t *testing.T) {
	doc := doctext.FromText("text")
	client := &fakeClient{response: "I could not find any fields."}
	e := NewExtractor(client, time.Second, 0, testLogger())

	if _, err := e.Extract(context.Background(), doc, leasePolicy()); err == nil {
		t.Fatal("expected error when no JSON can be salvaged")
	}
}

func TestBuildPrompt_ListsFieldsAndTruncatesDocument(t *testing.T) {
	policy := leasePolicy()
	longText := strings.Repeat("x", 500)
	prompt := buildPrompt(longText, policy, 100)

	if !strings.Contains(prompt, "tenant_legal_name (string)") {
		t.Error("prompt missing field listing")
	}
	if strings.Contains(prompt, strings.Repeat("x", 101)) {
		t.Error("document not truncated to maxDocChars")
	}
}
