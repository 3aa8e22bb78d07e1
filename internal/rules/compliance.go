package rules

import (
	"fmt"
	"regexp"
	"strings"

	"contractextract/internal/doctext"
	"contractextract/internal/report"
	"contractextract/internal/rulepack"
)

var (
	liabSectionRe = regexp.MustCompile(`(?i)(limitation of liability|liability(?:\s+limit|\s+cap)?)`)
	// The capture stays on one line so a clause never swallows the next
	// heading.
	govLawRe = regexp.MustCompile(`(?i)(governing law|jurisdiction|venue)[ \t]*[:\-]?[ \t]*(?:of|in)?[ \t]*([A-Za-z][A-Za-z ().,&\-]+)`)
	fraudRe      = regexp.MustCompile(`(?i)\bfraud\b`)
	otherPartyRe = regexp.MustCompile(`(?i)(sole|entire)\s+responsibility|liab(?:ility)?\s+(?:of|on)\s+(?:the\s+)?other\s+party`)
)

// Window sizes around located clauses.
const (
	liabSectionBefore = 600
	liabSectionAfter  = 1200
	citationPad       = 140
	fraudWindow       = 300
)

// Compliance runs the four fixed Tier 1 checks. Output order is always
// liability cap, contract value, fraud clause, jurisdiction, so reports
// stay stable.
type Compliance struct {
	quoteMax int
}

// NewCompliance builds the Tier 1 evaluator. quoteMax caps citation quotes.
func NewCompliance(quoteMax int) *Compliance {
	return &Compliance{quoteMax: quoteMax}
}

// Evaluate returns exactly four findings for the document.
func (c *Compliance) Evaluate(doc *doctext.Document, policy *rulepack.Policy) []report.Finding {
	mapper := doctext.NewMapper(doc, c.quoteMax)
	return []report.Finding{
		c.checkLiabilityCap(doc, mapper, policy),
		c.checkContractValue(doc, mapper, policy),
		c.checkFraudClause(doc, mapper, policy),
		c.checkJurisdiction(doc, mapper, policy),
	}
}

func (c *Compliance) checkLiabilityCap(doc *doctext.Document, mapper *doctext.Mapper, policy *rulepack.Policy) report.Finding {
	const ruleID = "liability_cap_present_and_within_bounds"
	cap := policy.LiabilityCap
	if cap.MaxCapAmount == nil && cap.MaxCapMultiplier == nil {
		return report.Finding{
			RuleID:    ruleID,
			Passed:    true,
			Details:   "No liability cap bounds configured; check not enforced.",
			Citations: []doctext.Citation{},
			Tags:      []string{report.TagNotConfigured, report.TagInformational},
		}
	}

	text := doc.Text
	loc := liabSectionRe.FindStringIndex(text)
	if loc == nil {
		return report.Finding{
			RuleID:    ruleID,
			Passed:    false,
			Details:   "No clear 'Limitation of Liability' section found.",
			Citations: []doctext.Citation{},
		}
	}

	secStart := max(0, loc[0]-liabSectionBefore)
	secEnd := min(len(text), loc[1]+liabSectionAfter)
	section := text[secStart:secEnd]
	citations := []doctext.Citation{
		mapper.Map(max(0, loc[0]-citationPad), min(len(text), loc[1]+citationPad)),
	}

	passed := true
	var notes []string

	mult, multSpan, hasMult := FeeMultiplier(section)
	if hasMult {
		notes = append(notes, fmt.Sprintf("Found fee-based cap (~%.2fx annual fees).", mult))
		citations = append(citations, mapper.Map(secStart+multSpan[0], secStart+multSpan[1]))
		if cap.MaxCapMultiplier != nil && mult > *cap.MaxCapMultiplier {
			passed = false
			notes = append(notes, fmt.Sprintf("Multiplier %.2fx exceeds allowed %.2fx.", mult, *cap.MaxCapMultiplier))
		}
	}

	sectionMoney := ParseMoney(section)
	if len(sectionMoney) > 0 {
		highest := sectionMoney[0]
		for _, m := range sectionMoney[1:] {
			if m.Amount > highest.Amount {
				highest = m
			}
		}
		notes = append(notes, fmt.Sprintf("Found explicit monetary cap candidate: %s%.2f.", highest.Currency, highest.Amount))
		citations = append(citations, mapper.Map(secStart+highest.Start, secStart+highest.End))
		if cap.MaxCapAmount != nil && highest.Amount > *cap.MaxCapAmount {
			passed = false
			notes = append(notes, fmt.Sprintf("Cap %.2f exceeds allowed %.2f.", highest.Amount, *cap.MaxCapAmount))
		}
		// A flat dollar cap is also held against the multiplier bound,
		// using the largest credible amount in the document as the
		// inferred contract value.
		if cap.MaxCapMultiplier != nil {
			if value, ok := MaxMoney(doc.Text); ok {
				if highest.Amount > *cap.MaxCapMultiplier*value.Amount {
					passed = false
					notes = append(notes, fmt.Sprintf("Cap %.2f exceeds %.2fx inferred contract value %.2f.",
						highest.Amount, *cap.MaxCapMultiplier, value.Amount))
				}
			}
		}
	}

	if !hasMult && len(sectionMoney) == 0 {
		passed = false
		notes = append(notes, "Liability section found but no qualifying cap ('N months of fees' or explicit monetary amount) detected.")
	}

	return report.Finding{
		RuleID:    ruleID,
		Passed:    passed,
		Details:   strings.Join(notes, " "),
		Citations: citations,
	}
}

func (c *Compliance) checkContractValue(doc *doctext.Document, mapper *doctext.Mapper, policy *rulepack.Policy) report.Finding {
	const ruleID = "contract_value_within_limit"
	if policy.ContractValueCeiling == nil {
		return report.Finding{
			RuleID:    ruleID,
			Passed:    true,
			Details:   "No max contract value configured; check not enforced.",
			Citations: []doctext.Citation{},
			Tags:      []string{report.TagNotConfigured, report.TagInformational},
		}
	}

	mm, ok := MaxMoney(doc.Text)
	if !ok {
		return report.Finding{
			RuleID:    ruleID,
			Passed:    true,
			Details:   "Could not identify a contract value; no amounts with credible currency context found.",
			Citations: []doctext.Citation{},
		}
	}

	ceiling := *policy.ContractValueCeiling
	passed := mm.Amount <= ceiling
	verb := "is within"
	if !passed {
		verb = "exceeds"
	}
	return report.Finding{
		RuleID:    ruleID,
		Passed:    passed,
		Details:   fmt.Sprintf("Largest detected amount %s%.2f %s configured limit %.2f.", mm.Currency, mm.Amount, verb, ceiling),
		Citations: []doctext.Citation{mapper.Map(mm.Start, mm.End)},
	}
}

func (c *Compliance) checkFraudClause(doc *doctext.Document, mapper *doctext.Mapper, policy *rulepack.Policy) report.Finding {
	const ruleID = "fraud_clause_present_and_assigned"
	if !policy.Fraud.RequireClause {
		return report.Finding{
			RuleID:    ruleID,
			Passed:    true,
			Details:   "Fraud clause not required by policy.",
			Citations: []doctext.Citation{},
			Tags:      []string{report.TagNotConfigured, report.TagInformational},
		}
	}

	text := doc.Text
	matches := fraudRe.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return report.Finding{
			RuleID:    ruleID,
			Passed:    false,
			Details:   "No 'fraud' mention found.",
			Citations: []doctext.Citation{},
		}
	}

	// Report every fraud mention, not just the first.
	citations := make([]doctext.Citation, 0, len(matches))
	assigned := 0
	for _, m := range matches {
		ws := max(0, m[0]-fraudWindow)
		we := min(len(text), m[1]+fraudWindow)
		citations = append(citations, mapper.Map(ws, we))
		if otherPartyRe.MatchString(text[ws:we]) {
			assigned++
		}
	}

	passed := true
	note := fmt.Sprintf("'fraud' found (%d instance(s)).", len(matches))
	if policy.Fraud.RequireLiabilityOnCounterparty {
		if assigned == len(matches) {
			note += " Liability appears assigned to the counterparty."
		} else {
			passed = false
			note += fmt.Sprintf(" %d/%d instance(s) confirm liability assigned to the counterparty; assignment is ambiguous.", assigned, len(matches))
		}
	}

	return report.Finding{
		RuleID:    ruleID,
		Passed:    passed,
		Details:   note,
		Citations: citations,
	}
}

func (c *Compliance) checkJurisdiction(doc *doctext.Document, mapper *doctext.Mapper, policy *rulepack.Policy) report.Finding {
	const ruleID = "jurisdiction_present_and_allowed"
	text := doc.Text
	matches := govLawRe.FindAllStringSubmatchIndex(text, -1)

	var jurisdictions []string
	var citations []doctext.Citation
	for _, m := range matches {
		loc := cleanJurisdiction(text[m[4]:m[5]])
		if loc == "" {
			continue
		}
		jurisdictions = append(jurisdictions, loc)
		citations = append(citations, mapper.Map(max(0, m[0]-citationPad), min(len(text), m[5])))
	}

	if len(policy.JurisdictionAllowlist) == 0 {
		details := "No jurisdiction allowlist configured; check not enforced."
		if len(jurisdictions) > 0 {
			details += fmt.Sprintf(" Detected: %s.", quoteJoin(jurisdictions))
		}
		return report.Finding{
			RuleID:    ruleID,
			Passed:    true,
			Details:   details,
			Citations: citations,
			Tags:      []string{report.TagNotConfigured, report.TagInformational},
		}
	}

	if len(jurisdictions) == 0 {
		return report.Finding{
			RuleID:    ruleID,
			Passed:    false,
			Details:   "No clear 'governing law / jurisdiction' clause detected.",
			Citations: []doctext.Citation{},
		}
	}

	// At least one allowed jurisdiction passes; boilerplate-heavy documents
	// routinely mention several, so all are surfaced for review.
	anyAllowed := false
	for _, j := range jurisdictions {
		for _, a := range policy.JurisdictionAllowlist {
			if strings.Contains(strings.ToLower(j), strings.ToLower(a)) {
				anyAllowed = true
			}
		}
	}

	var details string
	if len(jurisdictions) == 1 {
		if anyAllowed {
			details = fmt.Sprintf("Governing law/jurisdiction detected as %q. Allowed.", jurisdictions[0])
		} else {
			details = fmt.Sprintf("Governing law/jurisdiction detected as %q. Not in allowed list (%s).",
				jurisdictions[0], strings.Join(policy.JurisdictionAllowlist, ", "))
		}
	} else {
		details = fmt.Sprintf("Multiple jurisdiction clauses found: %s. ", quoteJoin(jurisdictions))
		if anyAllowed {
			details += "At least one is in the allowed list."
		} else {
			details += fmt.Sprintf("None are in the allowed list (%s).", strings.Join(policy.JurisdictionAllowlist, ", "))
		}
	}

	return report.Finding{
		RuleID:    ruleID,
		Passed:    anyAllowed,
		Details:   details,
		Citations: citations,
	}
}

// cleanJurisdiction trims a captured governing-law phrase down to the
// jurisdiction name: first line only, no trailing punctuation, bounded
// length.
func cleanJurisdiction(s string) string {
	if i := strings.IndexAny(s, "\n\f"); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexAny(s, ".;"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(strings.Trim(s, " ,-"))
	if len(s) > 60 {
		s = strings.TrimSpace(s[:60])
	}
	return s
}

func quoteJoin(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}
