package rulepack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// packSchema validates a rule pack document before it becomes a Policy, so
// authoring mistakes surface at load time rather than as odd findings.
const packSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "doc_type_names"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "doc_type_names": {"type": "array", "items": {"type": "string"}, "minItems": 1},
    "jurisdiction_allowlist": {"type": "array", "items": {"type": "string"}},
    "liability_cap": {
      "type": "object",
      "properties": {
        "max_cap_amount": {"type": ["number", "null"]},
        "max_cap_multiplier": {"type": ["number", "null"]}
      },
      "additionalProperties": false
    },
    "contract_value_ceiling": {"type": ["number", "null"]},
    "fraud": {
      "type": "object",
      "properties": {
        "require_clause": {"type": "boolean"},
        "require_liability_on_counterparty": {"type": "boolean"}
      },
      "additionalProperties": false
    },
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string", "pattern": "^[a-z0-9_]+\\.[a-z0-9_]+$"},
          "params": {"type": "object"}
        },
        "additionalProperties": false
      }
    },
    "extraction_prompt": {"type": "string"},
    "extraction_examples": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["text", "fields"],
        "properties": {
          "text": {"type": "string"},
          "fields": {"type": "object", "additionalProperties": {"type": "string"}}
        },
        "additionalProperties": false
      }
    },
    "field_schema": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"enum": ["string", "number", "bool"]},
          "description": {"type": "string"}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

var compiledSchema = jsonschema.MustCompileString("rulepack.schema.json", packSchema)

// Parse validates and decodes one rule pack document.
func Parse(data []byte) (*Pack, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	// The schema validator expects json-decoded values (float64 numbers),
	// so round-trip the yaml document through JSON first.
	jsonBytes, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert rule pack: %w", err)
	}
	var doc any
	if err := json.Unmarshal(jsonBytes, &doc); err != nil {
		return nil, fmt.Errorf("convert rule pack: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("validate rule pack: %w", err)
	}

	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("decode rule pack: %w", err)
	}
	return &pack, nil
}

// LoadDir reads every *.yml / *.yaml pack in a directory, sorted by pack id
// for deterministic candidate order.
func LoadDir(dir string) ([]*Pack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read pack dir: %w", err)
	}

	var packs []*Pack
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		pack, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		packs = append(packs, pack)
	}
	if len(packs) == 0 {
		return nil, fmt.Errorf("no rule packs found in %s", dir)
	}

	sort.Slice(packs, func(i, j int) bool { return packs[i].ID < packs[j].ID })
	return packs, nil
}
