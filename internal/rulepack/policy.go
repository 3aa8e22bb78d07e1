// Package rulepack defines the structured policy of a rule pack and loads
// pack definitions from YAML. Pack lifecycle (versioning, publication,
// storage) is owned elsewhere; the analysis engine consumes Policy values
// read-only for the duration of a run.
package rulepack

// Policy is the non-prose configuration of a rule pack.
type Policy struct {
	// DocTypeNames are the document type phrases the classifier scores
	// against, e.g. "Strategic Alliance Agreement".
	DocTypeNames []string `yaml:"doc_type_names" json:"doc_type_names"`

	// JurisdictionAllowlist lists acceptable governing-law jurisdictions.
	// Empty means the jurisdiction check is informational.
	JurisdictionAllowlist []string `yaml:"jurisdiction_allowlist" json:"jurisdiction_allowlist"`

	LiabilityCap         LiabilityCap `yaml:"liability_cap" json:"liability_cap"`
	ContractValueCeiling *float64     `yaml:"contract_value_ceiling" json:"contract_value_ceiling"`
	Fraud                FraudPolicy  `yaml:"fraud" json:"fraud"`

	// CustomRules are Tier 2 declarations, evaluated in order.
	CustomRules []RuleDeclaration `yaml:"rules" json:"rules,omitempty"`

	// ExtractionPrompt triggers LLM field extraction when non-empty.
	ExtractionPrompt   string               `yaml:"extraction_prompt" json:"extraction_prompt,omitempty"`
	ExtractionExamples []Example            `yaml:"extraction_examples" json:"extraction_examples,omitempty"`
	FieldSchema        map[string]FieldSpec `yaml:"field_schema" json:"field_schema,omitempty"`
}

// LiabilityCap bounds the limitation-of-liability clause. Nil values mean
// the bound is not configured.
type LiabilityCap struct {
	MaxCapAmount     *float64 `yaml:"max_cap_amount" json:"max_cap_amount"`
	MaxCapMultiplier *float64 `yaml:"max_cap_multiplier" json:"max_cap_multiplier"`
}

// FraudPolicy configures the fraud-clause check.
type FraudPolicy struct {
	RequireClause                  bool `yaml:"require_clause" json:"require_clause"`
	RequireLiabilityOnCounterparty bool `yaml:"require_liability_on_counterparty" json:"require_liability_on_counterparty"`
}

// RuleDeclaration names one custom rule. Type must resolve to a registered
// handler and Params keys must be a subset of that handler's parameter
// schema; the dispatcher reports violations instead of dropping the rule.
type RuleDeclaration struct {
	ID     string         `yaml:"id" json:"id"`
	Type   string         `yaml:"type" json:"type"`
	Params map[string]any `yaml:"params" json:"params,omitempty"`
}

// FieldSpec types one extractable field.
type FieldSpec struct {
	// Type is one of "string", "number", "bool".
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// Example is a few-shot extraction example passed to the LLM.
type Example struct {
	Text   string            `yaml:"text" json:"text"`
	Fields map[string]string `yaml:"fields" json:"fields"`
}

// Pack pairs a policy with its identity.
type Pack struct {
	ID     string `yaml:"id" json:"id"`
	Policy Policy `yaml:",inline" json:"policy"`
}
