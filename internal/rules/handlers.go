package rules

import (
	"fmt"
	"regexp"
	"strings"

	"contractextract/internal/doctext"
	"contractextract/internal/report"
)

var (
	propertyRe    = regexp.MustCompile(`(?i)\b(premises|demised premises|leased premises|property located at)\b`)
	tenantRe      = regexp.MustCompile(`(?i)\b(tenant|lessee)\b`)
	execDateRe    = regexp.MustCompile(`(?i)(executed|entered into|dated)\s+(?:as\s+of\s+)?(?:on\s+)?(?:this\s+)?[\w,\s]{4,40}\d{4}`)
	commenceRe    = regexp.MustCompile(`(?i)(commencement date|term\s+(?:shall\s+)?commenc\w+|lease\s+(?:shall\s+)?commenc\w+)`)
	expireRe      = regexp.MustCompile(`(?i)(expiration date|term\s+(?:shall\s+)?expir\w+|lease\s+(?:shall\s+)?expir\w+|end\s+of\s+the\s+term)`)
	baseRentRe    = regexp.MustCompile(`(?i)\b(base rent|basic rent|minimum rent|annual rent|monthly rent)\b`)
	frequencyRe   = regexp.MustCompile(`(?i)\b(monthly|per month|annually|per annum|quarterly|per quarter)\b`)
	depositRe     = regexp.MustCompile(`(?i)\bsecurity deposit\b`)
	renewalRe     = regexp.MustCompile(`(?i)\b(option to renew|renewal option|right to extend|extension option)\b`)
	expansionRe   = regexp.MustCompile(`(?i)\b(expansion option|right of first (?:offer|refusal)|additional premises)\b`)
	terminationRe = regexp.MustCompile(`(?i)\b(early termination|termination (?:right|option)|right to terminate)\b`)
)

func registerLeaseHandlers(d *Dispatcher) {
	d.Register("lease.property", Handler{
		Params: map[string]ParamSpec{
			"require_property_details": {Type: "bool", Default: true, Description: "require a property name or address"},
		},
		Run: checkLeaseProperty,
	})
	d.Register("lease.tenant", Handler{
		Params: map[string]ParamSpec{
			"require_tenant_details": {Type: "bool", Default: true, Description: "require the tenant's legal name"},
		},
		Run: checkLeaseTenant,
	})
	d.Register("lease.dates", Handler{
		Params: map[string]ParamSpec{
			"require_execution_date":    {Type: "bool", Default: false, Description: "require an execution date"},
			"require_commencement_date": {Type: "bool", Default: true, Description: "require a commencement date"},
			"require_expiration_date":   {Type: "bool", Default: true, Description: "require an expiration date"},
		},
		Run: checkLeaseDates,
	})
	d.Register("lease.rent", Handler{
		Params: map[string]ParamSpec{
			"require_base_rent":         {Type: "bool", Default: true, Description: "require a base rent amount"},
			"require_payment_frequency": {Type: "bool", Default: false, Description: "require a payment frequency"},
		},
		Run: checkLeaseRent,
	})
	d.Register("lease.security", Handler{
		Params: map[string]ParamSpec{
			"check_security_deposit": {Type: "bool", Default: true, Description: "require a security deposit amount"},
		},
		Run: checkLeaseSecurity,
	})
	d.Register("lease.options", Handler{
		Params: map[string]ParamSpec{
			"check_renewal_option":     {Type: "bool", Default: true, Description: "report on renewal options"},
			"check_expansion_option":   {Type: "bool", Default: false, Description: "report on expansion options"},
			"check_termination_rights": {Type: "bool", Default: false, Description: "report on early termination rights"},
		},
		Run: checkLeaseOptions,
	})
}

// requirement is one field-or-pattern presence check inside a handler.
type requirement struct {
	label   string
	field   string
	pattern *regexp.Regexp
}

// evalRequirements checks each requirement against extracted fields first,
// then the document text. Text-only evidence keeps the check passing but
// marks the finding heuristic.
func evalRequirements(rc *RuleContext, reqs []requirement) report.Finding {
	var satisfied, missing []string
	var citations []doctext.Citation
	heuristic := false

	for _, req := range reqs {
		if rc.Fields.Has(req.field) {
			satisfied = append(satisfied, req.label)
			if v, ok := rc.Fields[req.field]; ok && v.Citation != nil {
				citations = append(citations, *v.Citation)
			}
			continue
		}
		if m := req.pattern.FindStringIndex(rc.Doc.Text); m != nil {
			satisfied = append(satisfied, req.label+" (from text)")
			citations = append(citations, rc.Mapper.Map(max(0, m[0]-citationPad), min(len(rc.Doc.Text), m[1]+citationPad)))
			heuristic = true
			continue
		}
		missing = append(missing, req.label)
	}

	f := report.Finding{
		Passed:    len(missing) == 0,
		Citations: citations,
	}
	if heuristic {
		f.Tags = append(f.Tags, report.TagHeuristic)
	}
	switch {
	case len(reqs) == 0:
		f.Passed = true
		f.Details = "No requirements enabled for this rule."
		f.Tags = append(f.Tags, report.TagNotConfigured, report.TagInformational)
	case len(missing) == 0:
		f.Details = fmt.Sprintf("Found: %s.", strings.Join(satisfied, "; "))
	default:
		f.Details = fmt.Sprintf("Missing: %s.", strings.Join(missing, "; "))
		if len(satisfied) > 0 {
			f.Details += fmt.Sprintf(" Found: %s.", strings.Join(satisfied, "; "))
		}
	}
	return f
}

func checkLeaseProperty(rc *RuleContext) report.Finding {
	if !rc.Bool("require_property_details") {
		return evalRequirements(rc, nil)
	}
	if rc.Fields.Has("property_name") || rc.Fields.Has("property_address") {
		var citations []doctext.Citation
		var parts []string
		for _, name := range []string{"property_name", "property_address"} {
			if s, ok := rc.Fields.String(name); ok {
				parts = append(parts, s)
				if v := rc.Fields[name]; v.Citation != nil {
					citations = append(citations, *v.Citation)
				}
			}
		}
		return report.Finding{
			Passed:    true,
			Details:   fmt.Sprintf("Property identified: %s.", strings.Join(parts, ", ")),
			Citations: citations,
		}
	}
	return evalRequirements(rc, []requirement{
		{label: "property identification", field: "property_address", pattern: propertyRe},
	})
}

func checkLeaseTenant(rc *RuleContext) report.Finding {
	if !rc.Bool("require_tenant_details") {
		return evalRequirements(rc, nil)
	}
	if name, ok := rc.Fields.String("tenant_legal_name"); ok {
		f := report.Finding{
			Passed:  true,
			Details: fmt.Sprintf("Tenant identified: %s.", name),
		}
		if v := rc.Fields["tenant_legal_name"]; v.Citation != nil {
			f.Citations = []doctext.Citation{*v.Citation}
		}
		return f
	}
	return evalRequirements(rc, []requirement{
		{label: "tenant legal name", field: "tenant_legal_name", pattern: tenantRe},
	})
}

func checkLeaseDates(rc *RuleContext) report.Finding {
	var reqs []requirement
	if rc.Bool("require_execution_date") {
		reqs = append(reqs, requirement{label: "execution date", field: "lease_execution_date", pattern: execDateRe})
	}
	if rc.Bool("require_commencement_date") {
		reqs = append(reqs, requirement{label: "commencement date", field: "lease_commencement_date", pattern: commenceRe})
	}
	if rc.Bool("require_expiration_date") {
		reqs = append(reqs, requirement{label: "expiration date", field: "lease_expiration_date", pattern: expireRe})
	}
	return evalRequirements(rc, reqs)
}

func checkLeaseRent(rc *RuleContext) report.Finding {
	var reqs []requirement
	if rc.Bool("require_base_rent") {
		reqs = append(reqs, requirement{label: "base rent amount", field: "base_rent_amount", pattern: baseRentRe})
	}
	if rc.Bool("require_payment_frequency") {
		reqs = append(reqs, requirement{label: "payment frequency", field: "base_rent_frequency", pattern: frequencyRe})
	}
	f := evalRequirements(rc, reqs)
	if amt, ok := rc.Fields.Number("base_rent_amount"); ok {
		f.Details += fmt.Sprintf(" Base rent: %.2f.", amt)
	}
	return f
}

func checkLeaseSecurity(rc *RuleContext) report.Finding {
	if !rc.Bool("check_security_deposit") {
		return evalRequirements(rc, nil)
	}
	f := evalRequirements(rc, []requirement{
		{label: "security deposit", field: "security_deposit_amount", pattern: depositRe},
	})
	if amt, ok := rc.Fields.Number("security_deposit_amount"); ok {
		f.Details += fmt.Sprintf(" Deposit: %.2f.", amt)
	}
	return f
}

// checkLeaseOptions surveys optional rights. Options are not obligatory, so
// the finding is informational and always passes; what was (not) found is
// still reported for review.
func checkLeaseOptions(rc *RuleContext) report.Finding {
	type optionCheck struct {
		param   string
		label   string
		field   string
		pattern *regexp.Regexp
	}
	checks := []optionCheck{
		{"check_renewal_option", "renewal option", "option_to_renew_terms", renewalRe},
		{"check_expansion_option", "expansion option", "expansion_option_terms", expansionRe},
		{"check_termination_rights", "early termination rights", "early_termination_rights", terminationRe},
	}

	var found, absent []string
	var citations []doctext.Citation
	for _, c := range checks {
		if !rc.Bool(c.param) {
			continue
		}
		if s, ok := rc.Fields.String(c.field); ok {
			found = append(found, fmt.Sprintf("%s (%s)", c.label, s))
			if v := rc.Fields[c.field]; v.Citation != nil {
				citations = append(citations, *v.Citation)
			}
			continue
		}
		if m := c.pattern.FindStringIndex(rc.Doc.Text); m != nil {
			found = append(found, c.label)
			citations = append(citations, rc.Mapper.Map(max(0, m[0]-citationPad), min(len(rc.Doc.Text), m[1]+citationPad)))
			continue
		}
		absent = append(absent, c.label)
	}

	var parts []string
	if len(found) > 0 {
		parts = append(parts, fmt.Sprintf("Present: %s.", strings.Join(found, "; ")))
	}
	if len(absent) > 0 {
		parts = append(parts, fmt.Sprintf("Not found: %s.", strings.Join(absent, "; ")))
	}
	if len(parts) == 0 {
		parts = append(parts, "No option checks enabled.")
	}
	return report.Finding{
		Passed:    true,
		Details:   strings.Join(parts, " "),
		Citations: citations,
		Tags:      []string{report.TagInformational},
	}
}
