package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
)

// RenderMarkdown renders a report as a human-readable compliance summary.
func RenderMarkdown(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Compliance Report: %s\n\n", r.DocumentName)

	if r.OverallPassed {
		b.WriteString("**Overall:** PASS\n\n")
	} else {
		b.WriteString("**Overall:** FAIL\n\n")
	}

	if r.Classification.PackID != "" {
		fmt.Fprintf(&b, "**Rule pack:** %s (confidence %.2f", r.Classification.PackID, r.Classification.Confidence)
		if r.Classification.LLMAssisted {
			b.WriteString(", LLM-assisted")
		}
		b.WriteString(")\n\n")
	} else {
		b.WriteString("**Rule pack:** none (document type could not be classified)\n\n")
	}

	for _, f := range r.Findings {
		fmt.Fprintf(&b, "## %s\n", titleCase(f.RuleID))
		result := "FAIL"
		if f.Passed {
			result = "PASS"
		}
		if f.informational() {
			result += " (informational)"
		}
		fmt.Fprintf(&b, "- **Result:** %s\n", result)
		fmt.Fprintf(&b, "- **Details:** %s\n", f.Details)
		if len(f.Tags) > 0 {
			fmt.Fprintf(&b, "- **Tags:** %s\n", strings.Join(f.Tags, ", "))
		}
		if len(f.Citations) > 0 {
			b.WriteString("- **Citations:**\n")
			for _, c := range f.Citations {
				quote := strings.ReplaceAll(strings.ReplaceAll(c.Quote, "\r", " "), "\n", " ")
				fmt.Fprintf(&b, "  - page %d, lines %d-%d (chars %d-%d): “%s”",
					c.Page, c.LineStart, c.LineEnd, c.CharStart, c.CharEnd, strings.TrimSpace(quote))
				if c.Confidence < 1.0 {
					fmt.Fprintf(&b, " _(confidence %.2f)_", c.Confidence)
				}
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}

	if r.ExtractedFields != nil {
		b.WriteString("## Extracted Fields\n")
		names := make([]string, 0, len(r.ExtractedFields))
		for name := range r.ExtractedFields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			v := r.ExtractedFields[name]
			if v.Value == nil {
				fmt.Fprintf(&b, "- %s: _not extracted_\n", name)
				continue
			}
			fmt.Fprintf(&b, "- %s: %v", name, v.Value)
			if v.Citation != nil {
				fmt.Fprintf(&b, " (page %d)", v.Citation.Page)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	for _, d := range r.Diagnostics {
		fmt.Fprintf(&b, "> %s\n", d)
	}

	return b.String()
}

// RenderHTML converts the markdown rendering to HTML.
func RenderHTML(r *Report) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(RenderMarkdown(r)), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

func titleCase(ruleID string) string {
	parts := strings.FieldsFunc(ruleID, func(r rune) bool {
		return r == '_' || r == '.'
	})
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	if len(parts) == 0 {
		return "Finding"
	}
	return strings.Join(parts, " ")
}
