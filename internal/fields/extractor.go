package fields

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"contractextract/internal/doctext"
	"contractextract/internal/llm"
	"contractextract/internal/rulepack"
)

// Extractor invokes the extraction capability with a pack's prompt and
// examples and validates the response against the pack's field schema.
type Extractor struct {
	client      llm.Client
	timeout     time.Duration
	maxDocChars int
	log         *slog.Logger
}

// Result is a field bag plus the soft warnings collected while building it.
type Result struct {
	Fields      Set
	Diagnostics []string
}

// NewExtractor builds a field extractor. timeout is the per-document call
// budget; on budget exceeded the extraction fails without crashing the
// surrounding analysis.
func NewExtractor(client llm.Client, timeout time.Duration, maxDocChars int, log *slog.Logger) *Extractor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if maxDocChars <= 0 {
		maxDocChars = 8000
	}
	return &Extractor{client: client, timeout: timeout, maxDocChars: maxDocChars, log: log}
}

// Extract runs the pack's extraction prompt over the document and returns a
// Set covering every schema-declared field. It errors only on total
// capability failure (unreachable, timed out, or no parseable JSON at all);
// per-field problems become nulls plus diagnostics.
func (e *Extractor) Extract(ctx context.Context, doc *doctext.Document, policy *rulepack.Policy) (*Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	prompt := buildPrompt(doc.Text, policy, e.maxDocChars)
	raw, err := llm.CompleteWithRetry(callCtx, e.client, prompt)
	if err != nil {
		return nil, fmt.Errorf("extraction capability: %w", err)
	}

	parsed, err := llm.ParseJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("extraction response: %w", err)
	}
	flat := flatten(parsed)

	result := &Result{Fields: make(Set, len(policy.FieldSchema))}
	mapper := doctext.NewMapper(doc, 0)

	for name, spec := range policy.FieldSchema {
		raw, present := flat[name]
		if !present || raw == nil {
			// Absent fields stay explicit nulls; never invent data.
			result.Fields[name] = Value{}
			continue
		}
		coerced := coerce(raw, spec.Type)
		if coerced == nil {
			result.Fields[name] = Value{}
			result.Diagnostics = append(result.Diagnostics,
				fmt.Sprintf("field %q: value %v not usable as %s", name, raw, spec.Type))
			continue
		}
		result.Fields[name] = Value{
			Value:    coerced,
			Citation: provenance(doc, mapper, coerced),
		}
	}

	for key := range flat {
		if _, declared := policy.FieldSchema[key]; !declared {
			result.Diagnostics = append(result.Diagnostics,
				fmt.Sprintf("field %q: not in pack schema, ignored", key))
		}
	}

	if e.log != nil {
		e.log.Debug("field extraction complete",
			"fields", len(result.Fields), "diagnostics", len(result.Diagnostics))
	}
	return result, nil
}

// buildPrompt assembles the pack prompt, few-shot examples, and document
// head into one extraction request that demands bare JSON back.
func buildPrompt(text string, policy *rulepack.Policy, maxDocChars int) string {
	var sb strings.Builder
	sb.WriteString(policy.ExtractionPrompt)
	sb.WriteString("\n\nReturn ONLY a JSON object mapping field names to extracted values.")
	sb.WriteString(" Use null for fields not found in the document.")
	sb.WriteString(" No explanatory text, no markdown fences.\n")

	if len(policy.FieldSchema) > 0 {
		sb.WriteString("\nFields to extract:\n")
		for _, name := range sortedFieldNames(policy.FieldSchema) {
			spec := policy.FieldSchema[name]
			sb.WriteString(fmt.Sprintf("- %s (%s)", name, spec.Type))
			if spec.Description != "" {
				sb.WriteString(": " + spec.Description)
			}
			sb.WriteString("\n")
		}
	}

	for _, ex := range policy.ExtractionExamples {
		sb.WriteString("\nExample input:\n")
		sb.WriteString(ex.Text)
		sb.WriteString("\nExample output:\n{")
		first := true
		for _, k := range sortedExampleKeys(ex.Fields) {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			sb.WriteString(fmt.Sprintf("%q: %q", k, ex.Fields[k]))
		}
		sb.WriteString("}\n")
	}

	head := text
	if len(head) > maxDocChars {
		head = head[:maxDocChars]
	}
	sb.WriteString("\n---\nContract text:\n")
	sb.WriteString(head)
	sb.WriteString("\n---\nReturn the JSON object now:")
	return sb.String()
}

var keyCleanRe = regexp.MustCompile(`[^a-z0-9]+`)

// flatten collapses nested response objects into snake_case keys, since
// models regularly nest fields under headings the prompt never asked for.
func flatten(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := strings.Trim(keyCleanRe.ReplaceAllString(strings.ToLower(k), "_"), "_")
			if prefix != "" {
				key = prefix + "_" + key
			}
			switch child := v.(type) {
			case map[string]any:
				walk(key, child)
				// Also surface leaf names without the nesting prefix so
				// {"property": {"address": ...}} satisfies "address".
				for ck, cv := range child {
					leaf := strings.Trim(keyCleanRe.ReplaceAllString(strings.ToLower(ck), "_"), "_")
					if _, exists := out[leaf]; !exists {
						if _, isMap := cv.(map[string]any); !isMap {
							out[leaf] = cv
						}
					}
				}
			case []any:
				// Lists are not representable in the flat schema types.
			default:
				out[key] = v
			}
		}
	}
	walk("", obj)
	return out
}

// provenance locates a string value in the document and cites it. The
// capability reports no spans, so an exact-match search is the best
// available grounding; short values are skipped to avoid false anchors.
func provenance(doc *doctext.Document, mapper *doctext.Mapper, value any) *doctext.Citation {
	s, ok := value.(string)
	if !ok || len(s) < 4 {
		return nil
	}
	idx := strings.Index(doc.Text, s)
	if idx < 0 {
		return nil
	}
	cit := mapper.Map(idx, idx+len(s))
	return &cit
}

func sortedFieldNames(schema map[string]rulepack.FieldSpec) []string {
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedExampleKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
