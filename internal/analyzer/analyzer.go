// Package analyzer wires extraction, classification, field extraction, and
// rule evaluation into one document pipeline.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"

	"contractextract/internal/classify"
	"contractextract/internal/config"
	"contractextract/internal/doctext"
	"contractextract/internal/fields"
	"contractextract/internal/llm"
	"contractextract/internal/report"
	"contractextract/internal/rulepack"
	"contractextract/internal/rules"
)

// Input is one document to analyze. Text, when set, is used verbatim and
// Data is ignored. PackID, when set, skips classification.
type Input struct {
	Name   string
	Data   []byte
	Text   string
	PackID string
}

// Analyzer runs the full pipeline for single documents and batches.
type Analyzer struct {
	packs      []*rulepack.Pack
	packByID   map[string]*rulepack.Pack
	extractor  *doctext.Extractor
	classifier *classify.Classifier
	fields     *fields.Extractor
	tier1      *rules.Compliance
	dispatcher *rules.Dispatcher
	workers    int
	log        *slog.Logger
}

// New assembles the pipeline. client may be nil; LLM classification fallback
// and field extraction are then disabled.
func New(cfg config.Config, packs []*rulepack.Pack, client llm.Client, log *slog.Logger) *Analyzer {
	byID := make(map[string]*rulepack.Pack, len(packs))
	for _, p := range packs {
		byID[p.ID] = p
	}

	classifyClient := client
	if !cfg.ClassifyLLMFallback {
		classifyClient = nil
	}

	var fx *fields.Extractor
	if client != nil {
		fx = fields.NewExtractor(client, cfg.LLMTimeout, cfg.ExtractMaxDocChars, log)
	}

	workers := cfg.BatchWorkers
	if workers <= 0 {
		workers = 4
	}

	return &Analyzer{
		packs:      packs,
		packByID:   byID,
		extractor:  doctext.NewExtractor(doctext.Config{OCREnabled: cfg.OCREnabled, OCRMinPageChars: cfg.OCRMinPageChars, OCRWorkers: cfg.OCRWorkers}, log),
		classifier: classify.New(packs, classifyClient, cfg.ClassifyThreshold, cfg.ClassifyHeadChars, log),
		fields:     fx,
		tier1:      rules.NewCompliance(cfg.QuoteMaxLen),
		dispatcher: rules.NewDispatcher(cfg.QuoteMaxLen, log),
		workers:    workers,
		log:        log,
	}
}

// Packs returns the loaded rule packs.
func (a *Analyzer) Packs() []*rulepack.Pack {
	return a.packs
}

// Analyze runs the pipeline for one document. An unreadable document is an
// error; everything past extraction degrades into findings and diagnostics
// instead of failing the run.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (*report.Report, error) {
	doc, err := a.document(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", in.Name, err)
	}

	cls, err := a.classification(ctx, in, doc)
	if err != nil {
		return nil, err
	}
	if cls.PackID == "" {
		a.log.Warn("document type not classified", "document", in.Name)
		failed := report.Finding{
			RuleID:    "document_classification",
			Passed:    false,
			Details:   "Document type could not be determined with sufficient confidence; no rule pack applied.",
			Citations: []doctext.Citation{},
			Tags:      []string{report.TagClassification},
		}
		return report.Assemble(in.Name, []report.Finding{failed}, nil, nil, cls), nil
	}
	pack := a.packByID[cls.PackID]

	extracted, diags := a.extractFields(ctx, in.Name, doc, &pack.Policy)

	tier1 := a.tier1.Evaluate(doc, &pack.Policy)
	if extracted == nil && a.fields != nil && len(pack.Policy.FieldSchema) > 0 {
		tier1 = append(tier1, report.Finding{
			RuleID:    "field_extraction",
			Passed:    false,
			Details:   "Structured field extraction failed; rule evaluation used document text only.",
			Citations: []doctext.Citation{},
			Tags:      []string{report.TagExtractionFailed, report.TagInformational},
		})
	}
	tier2 := a.dispatcher.Evaluate(doc, pack.Policy.CustomRules, extracted)

	rep := report.Assemble(in.Name, tier1, tier2, extracted, cls)
	rep.Diagnostics = diags
	a.log.Info("document analyzed",
		"document", in.Name,
		"pack", cls.PackID,
		"passed", rep.OverallPassed,
		"findings", len(rep.Findings))
	return rep, nil
}

func (a *Analyzer) document(ctx context.Context, in Input) (*doctext.Document, error) {
	if in.Text != "" {
		return doctext.FromText(in.Text), nil
	}
	return a.extractor.Extract(ctx, in.Data, in.Name)
}

func (a *Analyzer) classification(ctx context.Context, in Input, doc *doctext.Document) (report.Classification, error) {
	if in.PackID != "" {
		if _, ok := a.packByID[in.PackID]; !ok {
			return report.Classification{}, fmt.Errorf("unknown rule pack %q", in.PackID)
		}
		return report.Classification{PackID: in.PackID, Confidence: 1.0}, nil
	}
	return a.classifier.Classify(ctx, doc.Text), nil
}

func (a *Analyzer) extractFields(ctx context.Context, name string, doc *doctext.Document, policy *rulepack.Policy) (fields.Set, []string) {
	if a.fields == nil || len(policy.FieldSchema) == 0 {
		return nil, nil
	}
	res, err := a.fields.Extract(ctx, doc, policy)
	if err != nil {
		a.log.Warn("field extraction failed", "document", name, "error", err)
		return nil, []string{fmt.Sprintf("field extraction failed: %v", err)}
	}
	return res.Fields, res.Diagnostics
}
