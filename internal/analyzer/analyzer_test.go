package analyzer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"contractextract/internal/config"
	"contractextract/internal/report"
	"contractextract/internal/rulepack"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func f64(v float64) *float64 { return &v }

func leasePack() *rulepack.Pack {
	return &rulepack.Pack{
		ID: "commercial_lease",
		Policy: rulepack.Policy{
			DocTypeNames:          []string{"lease agreement", "landlord", "tenant"},
			JurisdictionAllowlist: []string{"California"},
			LiabilityCap:          rulepack.LiabilityCap{MaxCapAmount: f64(1000000)},
			Fraud:                 rulepack.FraudPolicy{RequireClause: true},
			CustomRules: []rulepack.RuleDeclaration{
				{ID: "tenant_identified", Type: "lease.tenant"},
			},
			ExtractionPrompt: "Extract lease fields.",
			FieldSchema: map[string]rulepack.FieldSpec{
				"tenant_legal_name": {Type: "string"},
			},
		},
	}
}

const leaseText = `COMMERCIAL LEASE AGREEMENT

This lease agreement is made between Landlord Properties Inc and the tenant, Acme Holdings LLC.
LIMITATION OF LIABILITY. Aggregate liability shall not exceed $500,000.
Either party remains fully liable for fraud, which shall be the sole responsibility of the other party.
Governing Law: California.`

type fakeClient struct {
	response string
	err      error
	calls    int
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.response, f.err
}

func newTestAnalyzer(packs []*rulepack.Pack, client *fakeClient) *Analyzer {
	cfg := config.Config{BatchWorkers: 2}
	if client == nil {
		return New(cfg, packs, nil, testLogger())
	}
	return New(cfg, packs, client, testLogger())
}

func TestAnalyze_FullPipelineFromText(t *testing.T) {
	client := &fakeClient{response: `{"tenant_legal_name": "Acme Holdings LLC"}`}
	a := newTestAnalyzer([]*rulepack.Pack{leasePack()}, client)

	rep, err := a.Analyze(context.Background(), Input{Name: "lease.txt", Text: leaseText})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rep.Classification.PackID != "commercial_lease" {
		t.Fatalf("expected lease pack, got %q", rep.Classification.PackID)
	}
	// Four Tier 1 checks plus one declared custom rule.
	if len(rep.Findings) != 5 {
		t.Fatalf("expected 5 findings, got %d: %+v", len(rep.Findings), rep.Findings)
	}
	if !rep.OverallPassed {
		for _, f := range rep.Findings {
			if !f.Passed {
				t.Errorf("unexpected failure: %s: %s", f.RuleID, f.Details)
			}
		}
	}
	if name, _ := rep.ExtractedFields.String("tenant_legal_name"); name != "Acme Holdings LLC" {
		t.Errorf("extracted fields missing tenant, got %q", name)
	}
}

func TestAnalyze_ForcedPackSkipsClassification(t *testing.T) {
	a := newTestAnalyzer([]*rulepack.Pack{leasePack()}, nil)

	rep, err := a.Analyze(context.Background(), Input{
		Name:   "doc.txt",
		Text:   "completely unrelated content",
		PackID: "commercial_lease",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Classification.PackID != "commercial_lease" || rep.Classification.Confidence != 1.0 {
		t.Errorf("forced pack should report confidence 1.0, got %+v", rep.Classification)
	}
}

func TestAnalyze_UnknownForcedPackIsError(t *testing.T) {
	a := newTestAnalyzer([]*rulepack.Pack{leasePack()}, nil)
	_, err := a.Analyze(context.Background(), Input{Name: "d.txt", Text: "x", PackID: "no_such_pack"})
	if err == nil || !strings.Contains(err.Error(), "no_such_pack") {
		t.Fatalf("expected unknown pack error, got %v", err)
	}
}

func TestAnalyze_UnclassifiedGetsFailingFindingOnly(t *testing.T) {
	a := newTestAnalyzer([]*rulepack.Pack{leasePack()}, nil)

	rep, err := a.Analyze(context.Background(), Input{Name: "grocery.txt", Text: "eggs, milk, bread"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Classification.PackID != "" {
		t.Fatalf("expected no pack, got %q", rep.Classification.PackID)
	}
	if rep.OverallPassed {
		t.Error("unclassified document must not pass")
	}
	if len(rep.Findings) != 1 {
		t.Fatalf("expected only the classification finding, got %d", len(rep.Findings))
	}
	if !rep.Findings[0].HasTag(report.TagClassification) {
		t.Errorf("expected classification_failed tag, got %v", rep.Findings[0].Tags)
	}
}

func TestAnalyze_FieldExtractionFailureDegrades(t *testing.T) {
	client := &fakeClient{err: errors.New("api down")}
	a := newTestAnalyzer([]*rulepack.Pack{leasePack()}, client)

	rep, err := a.Analyze(context.Background(), Input{
		Name:   "lease.txt",
		Text:   leaseText,
		PackID: "commercial_lease",
	})
	if err != nil {
		t.Fatalf("extraction failure must not abort the analysis: %v", err)
	}

	if len(rep.Diagnostics) == 0 {
		t.Error("expected a diagnostic for the failed extraction")
	}
	var degraded bool
	for _, f := range rep.Findings {
		if f.HasTag(report.TagExtractionFailed) {
			degraded = true
			if !f.HasTag(report.TagInformational) {
				t.Error("extraction failure finding must be informational")
			}
		}
	}
	if !degraded {
		t.Error("expected an extraction_failed finding")
	}
	// Tier 1 still ran on document text.
	if len(rep.Findings) < 5 {
		t.Errorf("compliance checks should still run, got %d findings", len(rep.Findings))
	}
}

func TestAnalyzeBatch_IsolatesBadDocuments(t *testing.T) {
	a := newTestAnalyzer([]*rulepack.Pack{leasePack()}, nil)

	inputs := []Input{
		{Name: "good.txt", Text: leaseText, PackID: "commercial_lease"},
		{Name: "bad.pdf", Data: []byte("%PDF- corrupt")},
		{Name: "also_good.txt", Text: leaseText, PackID: "commercial_lease"},
	}
	outcomes := a.AnalyzeBatch(context.Background(), inputs)

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	for i, in := range inputs {
		if outcomes[i].Name != in.Name {
			t.Errorf("outcome %d: got name %q, want %q (order must be preserved)", i, outcomes[i].Name, in.Name)
		}
	}
	if outcomes[0].Report == nil || outcomes[2].Report == nil {
		t.Error("good documents must produce reports")
	}
	if outcomes[1].Err == "" {
		t.Error("corrupt document must carry its error")
	}
	if outcomes[1].Report != nil {
		t.Error("failed document must not carry a report")
	}
}
