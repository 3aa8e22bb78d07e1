// Package fields turns LLM extraction output into a typed field bag with
// provenance. One bad extraction never aborts an analysis: malformed values
// degrade to explicit nulls plus a diagnostic.
package fields

import (
	"strconv"
	"strings"

	"contractextract/internal/doctext"
)

// Value is one extracted field. A nil inner Value means "not extracted",
// which is distinct from an extracted empty string.
type Value struct {
	Value    any               `json:"value"`
	Citation *doctext.Citation `json:"citation,omitempty"`
}

// Set maps field name to extracted value. Every field the pack's schema
// declares is present, so downstream checks can tell "not extracted" from
// "omitted".
type Set map[string]Value

// Has reports whether the field was extracted with a non-null value.
func (s Set) Has(name string) bool {
	v, ok := s[name]
	return ok && v.Value != nil
}

// String returns the field as a string.
func (s Set) String(name string) (string, bool) {
	v, ok := s[name]
	if !ok || v.Value == nil {
		return "", false
	}
	str, ok := v.Value.(string)
	return str, ok
}

// Number returns the field as a float64.
func (s Set) Number(name string) (float64, bool) {
	v, ok := s[name]
	if !ok || v.Value == nil {
		return 0, false
	}
	n, ok := v.Value.(float64)
	return n, ok
}

// Bool returns the field as a bool.
func (s Set) Bool(name string) (bool, bool) {
	v, ok := s[name]
	if !ok || v.Value == nil {
		return false, false
	}
	b, ok := v.Value.(bool)
	return b, ok
}

// coerce converts a raw extracted value to the declared field type.
// Returns nil when the value cannot be represented as that type.
func coerce(raw any, fieldType string) any {
	switch fieldType {
	case "string":
		switch v := raw.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" && !isNullWord(trimmed) {
				return trimmed
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
	case "number":
		switch v := raw.(type) {
		case float64:
			return v
		case string:
			// Models often return formatted amounts like "$5,000.00".
			cleaned := strings.TrimSpace(v)
			cleaned = strings.TrimLeft(cleaned, "$£€ ")
			cleaned = strings.ReplaceAll(cleaned, ",", "")
			if n, err := strconv.ParseFloat(cleaned, 64); err == nil {
				return n
			}
		}
	case "bool":
		switch v := raw.(type) {
		case bool:
			return v
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "yes", "y", "1":
				return true
			case "false", "no", "n", "0":
				return false
			}
		}
	}
	return nil
}

// isNullWord catches the textual nulls models emit instead of JSON null.
func isNullWord(s string) bool {
	switch strings.ToLower(s) {
	case "null", "none", "n/a", "not specified", "not found", "unknown":
		return true
	}
	return false
}
