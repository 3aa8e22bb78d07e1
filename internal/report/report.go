// Package report holds the serializable output of an analysis run. Field
// names and ordering are stable so external renderers stay deterministic.
package report

import (
	"slices"

	"contractextract/internal/doctext"
	"contractextract/internal/fields"
)

// Finding tags. Informational and not-configured findings never gate the
// overall result; the remaining tags surface dispatcher and handler
// problems to rule-pack authors instead of swallowing them.
const (
	TagInformational    = "informational"
	TagNotConfigured    = "not_configured"
	TagUnsupportedType  = "unsupported_type"
	TagUnknownParameter = "unknown_parameter"
	TagEvaluationError  = "evaluation_error"
	TagHeuristic        = "heuristic"
	TagClassification   = "classification_failed"
	TagExtractionFailed = "extraction_failed"
)

// Finding is one evaluated check's outcome. Created once, never mutated,
// never dropped: a rule that cannot be evaluated still yields a Finding
// explaining why.
type Finding struct {
	RuleID    string             `json:"rule_id"`
	Passed    bool               `json:"passed"`
	Details   string             `json:"details"`
	Citations []doctext.Citation `json:"citations"`
	Tags      []string           `json:"tags,omitempty"`
}

// HasTag reports whether the finding carries the tag.
func (f Finding) HasTag(tag string) bool {
	return slices.Contains(f.Tags, tag)
}

// informational findings never affect the overall result.
func (f Finding) informational() bool {
	return f.HasTag(TagInformational) || f.HasTag(TagNotConfigured)
}

// Candidate is one ranked classification alternative.
type Candidate struct {
	PackID string  `json:"pack_id"`
	Score  float64 `json:"score"`
}

// Classification records which rule pack was selected and how. An empty
// PackID means classification failed and evaluation was skipped.
type Classification struct {
	PackID      string      `json:"pack_id"`
	Confidence  float64     `json:"confidence"`
	LLMAssisted bool        `json:"llm_assisted,omitempty"`
	Candidates  []Candidate `json:"candidates,omitempty"`
}

// Report is the complete result for one document.
type Report struct {
	DocumentName    string         `json:"document_name"`
	OverallPassed   bool           `json:"overall_passed"`
	Findings        []Finding      `json:"findings"`
	ExtractedFields fields.Set     `json:"extracted_fields"`
	Classification  Classification `json:"classification"`
	Diagnostics     []string       `json:"diagnostics,omitempty"`
}

// Assemble concatenates Tier 1 then Tier 2 findings and computes the
// overall result: the AND over every non-informational finding. No I/O.
func Assemble(documentName string, tier1, tier2 []Finding, extracted fields.Set, cls Classification) *Report {
	findings := make([]Finding, 0, len(tier1)+len(tier2))
	findings = append(findings, tier1...)
	findings = append(findings, tier2...)

	passed := true
	for _, f := range findings {
		if f.informational() {
			continue
		}
		passed = passed && f.Passed
	}

	return &Report{
		DocumentName:    documentName,
		OverallPassed:   passed,
		Findings:        findings,
		ExtractedFields: extracted,
		Classification:  cls,
	}
}
