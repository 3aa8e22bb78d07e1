package rules

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"contractextract/internal/doctext"
	"contractextract/internal/fields"
	"contractextract/internal/report"
	"contractextract/internal/rulepack"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strValue(s string) fields.Value {
	return fields.Value{Value: s}
}

func TestEvaluate_OneFindingPerDeclaration(t *testing.T) {
	d := NewDispatcher(0, testLogger())
	doc := doctext.FromText("a lease document")
	decls := []rulepack.RuleDeclaration{
		{ID: "r1", Type: "lease.property"},
		{ID: "r2", Type: "lease.unknown_check"},
		{ID: "r3", Type: "lease.tenant"},
	}

	findings := d.Evaluate(doc, decls, nil)
	if len(findings) != len(decls) {
		t.Fatalf("expected %d findings, got %d", len(decls), len(findings))
	}
	for i, decl := range decls {
		if findings[i].RuleID != decl.ID {
			t.Errorf("position %d: got rule id %q, want %q", i, findings[i].RuleID, decl.ID)
		}
	}
}

func TestEvaluate_UnsupportedTypeIsLoudFailure(t *testing.T) {
	d := NewDispatcher(0, testLogger())
	doc := doctext.FromText("text")
	decls := []rulepack.RuleDeclaration{{ID: "custom_check", Type: "lease.unknown_check"}}

	f := d.Evaluate(doc, decls, nil)[0]
	if f.Passed {
		t.Fatal("unsupported rule type must fail, not silently pass")
	}
	if !f.HasTag(report.TagUnsupportedType) {
		t.Errorf("expected unsupported_type tag, got %v", f.Tags)
	}
	if !strings.Contains(f.Details, "lease.unknown_check") || !strings.Contains(f.Details, "custom_check") {
		t.Errorf("details must name the type and declaration: %s", f.Details)
	}
}

func TestEvaluate_UnknownParamsFlaggedButStillEvaluated(t *testing.T) {
	d := NewDispatcher(0, testLogger())
	doc := doctext.FromText("text")
	fs := fields.Set{"tenant_legal_name": strValue("Acme Corp")}
	decls := []rulepack.RuleDeclaration{{
		ID:   "tenant_check",
		Type: "lease.tenant",
		Params: map[string]any{
			"require_tenant_details": true,
			"strictness_level":       "high",
		},
	}}

	findings := d.Evaluate(doc, decls, fs)
	if len(findings) != 1 {
		t.Fatalf("expected exactly 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if !f.Passed {
		t.Errorf("recognized params must still be evaluated: %s", f.Details)
	}
	if !f.HasTag(report.TagUnknownParameter) {
		t.Errorf("expected unknown_parameter tag, got %v", f.Tags)
	}
	if !strings.Contains(f.Details, "strictness_level") {
		t.Errorf("details must name the ignored parameter: %s", f.Details)
	}
}

func TestEvaluate_DefaultsApplyWhenParamsOmitted(t *testing.T) {
	d := NewDispatcher(0, testLogger())
	doc := doctext.FromText("no tenant named anywhere in this text")

	// require_tenant_details defaults to true, so a missing tenant fails.
	f := d.Evaluate(doc, []rulepack.RuleDeclaration{{ID: "t", Type: "lease.tenant"}}, nil)[0]
	if f.Passed {
		t.Errorf("default-required tenant must fail without evidence: %s", f.Details)
	}

	// Explicitly disabling the requirement turns the rule into a no-op.
	f = d.Evaluate(doc, []rulepack.RuleDeclaration{{
		ID: "t", Type: "lease.tenant",
		Params: map[string]any{"require_tenant_details": false},
	}}, nil)[0]
	if !f.Passed || !f.HasTag(report.TagNotConfigured) {
		t.Errorf("disabled requirement must be an informational pass: %+v", f)
	}
}

func TestEvaluate_PanickingHandlerBecomesFinding(t *testing.T) {
	d := NewDispatcher(0, testLogger())
	d.Register("lease.broken", Handler{
		Params: map[string]ParamSpec{},
		Run: func(rc *RuleContext) report.Finding {
			panic("boom")
		},
	})
	doc := doctext.FromText("text")
	decls := []rulepack.RuleDeclaration{
		{ID: "breaks", Type: "lease.broken"},
		{ID: "survives", Type: "lease.options"},
	}

	findings := d.Evaluate(doc, decls, nil)
	if len(findings) != 2 {
		t.Fatalf("a crashing handler must not abort the rest, got %d findings", len(findings))
	}
	f := findings[0]
	if f.Passed {
		t.Error("crashed rule must fail")
	}
	if !f.HasTag(report.TagEvaluationError) {
		t.Errorf("expected evaluation_error tag, got %v", f.Tags)
	}
	if !strings.Contains(f.Details, "boom") {
		t.Errorf("details should carry the panic value: %s", f.Details)
	}
}

func TestLeaseTenant_PrefersExtractedField(t *testing.T) {
	d := NewDispatcher(0, testLogger())
	doc := doctext.FromText("The tenant shall comply with all terms.")
	fs := fields.Set{"tenant_legal_name": strValue("Acme Holdings LLC")}

	f := d.Evaluate(doc, []rulepack.RuleDeclaration{{ID: "t", Type: "lease.tenant"}}, fs)[0]
	if !f.Passed {
		t.Fatalf("expected pass: %s", f.Details)
	}
	if !strings.Contains(f.Details, "Acme Holdings LLC") {
		t.Errorf("details should name the tenant from the extracted field: %s", f.Details)
	}
	if f.HasTag(report.TagHeuristic) {
		t.Error("field-backed evidence must not be tagged heuristic")
	}
}

func TestLeaseTenant_TextFallbackIsHeuristic(t *testing.T) {
	d := NewDispatcher(0, testLogger())
	doc := doctext.FromText("The tenant shall comply with all terms.")

	f := d.Evaluate(doc, []rulepack.RuleDeclaration{{ID: "t", Type: "lease.tenant"}}, nil)[0]
	if !f.Passed {
		t.Fatalf("text mention should satisfy the check: %s", f.Details)
	}
	if !f.HasTag(report.TagHeuristic) {
		t.Errorf("text-only evidence must be tagged heuristic, got %v", f.Tags)
	}
	if len(f.Citations) == 0 {
		t.Error("text fallback should cite the match")
	}
}

func TestLeaseDates_RequiredDatesEnforced(t *testing.T) {
	d := NewDispatcher(0, testLogger())
	doc := doctext.FromText("The Commencement Date is January 1. The term expires on the Expiration Date.")

	f := d.Evaluate(doc, []rulepack.RuleDeclaration{{ID: "dates", Type: "lease.dates"}}, nil)[0]
	if !f.Passed {
		t.Fatalf("both default-required dates are present: %s", f.Details)
	}

	missing := doctext.FromText("this lease never mentions when it starts")
	f = d.Evaluate(missing, []rulepack.RuleDeclaration{{ID: "dates", Type: "lease.dates"}}, nil)[0]
	if f.Passed {
		t.Fatalf("missing dates must fail: %s", f.Details)
	}
	if !strings.Contains(f.Details, "commencement date") {
		t.Errorf("details must name what is missing: %s", f.Details)
	}
}

func TestLeaseRent_FieldAmountReported(t *testing.T) {
	d := NewDispatcher(0, testLogger())
	doc := doctext.FromText("Base Rent is due monthly.")
	fs := fields.Set{"base_rent_amount": {Value: float64(4500)}}

	f := d.Evaluate(doc, []rulepack.RuleDeclaration{{ID: "rent", Type: "lease.rent"}}, fs)[0]
	if !f.Passed {
		t.Fatalf("expected pass: %s", f.Details)
	}
	if !strings.Contains(f.Details, "4500") {
		t.Errorf("details should report the rent amount: %s", f.Details)
	}
}

func TestLeaseOptions_AlwaysInformational(t *testing.T) {
	d := NewDispatcher(0, testLogger())
	doc := doctext.FromText("no options of any kind are granted")

	f := d.Evaluate(doc, []rulepack.RuleDeclaration{{
		ID: "opts", Type: "lease.options",
		Params: map[string]any{"check_termination_rights": true},
	}}, nil)[0]
	if !f.Passed {
		t.Error("options survey must not gate compliance")
	}
	if !f.HasTag(report.TagInformational) {
		t.Errorf("expected informational tag, got %v", f.Tags)
	}
	if !strings.Contains(f.Details, "Not found") {
		t.Errorf("absent options should still be reported: %s", f.Details)
	}
}

func TestTypes_SortedRegistry(t *testing.T) {
	d := NewDispatcher(0, testLogger())
	types := d.Types()
	if len(types) != 6 {
		t.Fatalf("expected 6 built-in handlers, got %d: %v", len(types), types)
	}
	for i := 1; i < len(types); i++ {
		if types[i-1] >= types[i] {
			t.Fatalf("types not sorted: %v", types)
		}
	}
}
