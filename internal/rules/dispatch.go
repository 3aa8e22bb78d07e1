package rules

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"contractextract/internal/doctext"
	"contractextract/internal/fields"
	"contractextract/internal/report"
	"contractextract/internal/rulepack"
)

// ParamSpec declares one handler parameter. The default is part of the
// handler's published contract: a declaration that omits the parameter gets
// exactly this value, never an incidental fallback inside the handler body.
type ParamSpec struct {
	Type        string // "bool", "number", "string"
	Default     any
	Description string
}

// RuleContext is what a handler gets to work with. Handlers prefer
// structured Fields and fall back to narrow text search only when the
// relevant field is null.
type RuleContext struct {
	Decl   rulepack.RuleDeclaration
	Doc    *doctext.Document
	Fields fields.Set
	Params map[string]any
	Mapper *doctext.Mapper
}

// Bool reads a merged parameter as bool.
func (rc *RuleContext) Bool(name string) bool {
	b, _ := rc.Params[name].(bool)
	return b
}

// HandlerFunc evaluates one declaration and returns exactly one Finding.
type HandlerFunc func(rc *RuleContext) report.Finding

// Handler pairs an evaluation function with its parameter schema.
type Handler struct {
	Params map[string]ParamSpec
	Run    HandlerFunc
}

// Dispatcher routes rule declarations to registered handlers by type.
// Unknown types and unknown parameters are reported in findings, never
// silently dropped.
type Dispatcher struct {
	registry map[string]Handler
	quoteMax int
	log      *slog.Logger
}

// NewDispatcher builds a dispatcher with the built-in lease handler family
// registered.
func NewDispatcher(quoteMax int, log *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		registry: make(map[string]Handler),
		quoteMax: quoteMax,
		log:      log,
	}
	registerLeaseHandlers(d)
	return d
}

// Register adds or replaces a handler for a rule type.
func (d *Dispatcher) Register(ruleType string, h Handler) {
	d.registry[ruleType] = h
}

// Types lists registered rule types in sorted order.
func (d *Dispatcher) Types() []string {
	types := make([]string, 0, len(d.registry))
	for t := range d.registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Evaluate runs every declaration in order and returns exactly one Finding
// per declaration.
func (d *Dispatcher) Evaluate(doc *doctext.Document, decls []rulepack.RuleDeclaration, fs fields.Set) []report.Finding {
	mapper := doctext.NewMapper(doc, d.quoteMax)
	findings := make([]report.Finding, 0, len(decls))
	for _, decl := range decls {
		findings = append(findings, d.evalOne(doc, mapper, decl, fs))
	}
	return findings
}

func (d *Dispatcher) evalOne(doc *doctext.Document, mapper *doctext.Mapper, decl rulepack.RuleDeclaration, fs fields.Set) (finding report.Finding) {
	// A crashing handler becomes a failing finding; the remaining rules
	// still run.
	defer func() {
		if r := recover(); r != nil {
			if d.log != nil {
				d.log.Error("rule handler panicked", "rule_id", decl.ID, "type", decl.Type, "panic", r)
			}
			finding = report.Finding{
				RuleID:    decl.ID,
				Passed:    false,
				Details:   fmt.Sprintf("Rule handler for type %q crashed: %v.", decl.Type, r),
				Citations: []doctext.Citation{},
				Tags:      []string{report.TagEvaluationError},
			}
		}
	}()

	handler, ok := d.registry[decl.Type]
	if !ok {
		return report.Finding{
			RuleID: decl.ID,
			Passed: false,
			Details: fmt.Sprintf("Rule %q declares unsupported type %q; registered types: %s.",
				decl.ID, decl.Type, strings.Join(d.Types(), ", ")),
			Citations: []doctext.Citation{},
			Tags:      []string{report.TagUnsupportedType},
		}
	}

	// Merge declared params over the schema defaults, keeping track of
	// anything the handler does not understand.
	params := make(map[string]any, len(handler.Params))
	for name, spec := range handler.Params {
		params[name] = spec.Default
	}
	var unknown []string
	for name, value := range decl.Params {
		if _, declared := handler.Params[name]; !declared {
			unknown = append(unknown, name)
			continue
		}
		params[name] = value
	}
	sort.Strings(unknown)

	finding = handler.Run(&RuleContext{
		Decl:   decl,
		Doc:    doc,
		Fields: fs,
		Params: params,
		Mapper: mapper,
	})
	finding.RuleID = decl.ID

	if len(unknown) > 0 {
		finding.Tags = append(finding.Tags, report.TagUnknownParameter)
		finding.Details += fmt.Sprintf(" Ignored unknown parameter(s): %s.", strings.Join(unknown, ", "))
		if d.log != nil {
			d.log.Warn("rule declared unknown parameters", "rule_id", decl.ID, "type", decl.Type, "params", unknown)
		}
	}
	return finding
}
