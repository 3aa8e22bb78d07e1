// Package classify selects the rule pack whose document type best matches a
// document. Keyword scoring decides whenever any pack shows signal; an
// optional LLM handles documents with none. When neither produces an answer
// the result is an empty pack ID, never a silently applied default.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"contractextract/internal/llm"
	"contractextract/internal/report"
	"contractextract/internal/rulepack"
)

const (
	// DefaultThreshold is the minimum keyword confidence for a match
	// without LLM assistance.
	DefaultThreshold = 0.65

	// DefaultHeadChars bounds how much of the document is scored. Type
	// signals live in titles and recitals, not page 40.
	DefaultHeadChars = 6000

	// llmConfidence is reported for LLM-assisted picks. The model gives no
	// calibrated score, so a fixed mid value keeps reports honest.
	llmConfidence = 0.5

	titleWindow   = 600
	occurrenceCap = 5
	titleBonus    = 2.0
)

// Classifier scores documents against the loaded packs' doc_type_names.
type Classifier struct {
	packs     []*rulepack.Pack
	client    llm.Client
	threshold float64
	headChars int
	log       *slog.Logger
}

// New builds a classifier. client may be nil to disable the LLM fallback.
func New(packs []*rulepack.Pack, client llm.Client, threshold float64, headChars int, log *slog.Logger) *Classifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if headChars <= 0 {
		headChars = DefaultHeadChars
	}
	return &Classifier{
		packs:     packs,
		client:    client,
		threshold: threshold,
		headChars: headChars,
		log:       log,
	}
}

// Classify picks the best-matching pack for the document text.
func (c *Classifier) Classify(ctx context.Context, text string) report.Classification {
	candidates := c.score(text)

	// Scores are normalized against the strongest candidate, so any
	// document with keyword signal resolves to the top candidate (ties
	// already broken by pack id). The LLM is consulted only when no pack
	// scores at all.
	if len(candidates) > 0 {
		if maxScore := candidates[0].Score; maxScore > 0 {
			best := candidates[0]
			confidence := best.Score / maxScore
			if confidence >= c.threshold {
				return report.Classification{
					PackID:     best.PackID,
					Confidence: confidence,
					Candidates: candidates,
				}
			}
		}
	}

	if c.client != nil {
		if packID, err := c.askLLM(ctx, text); err == nil {
			return report.Classification{
				PackID:      packID,
				Confidence:  llmConfidence,
				LLMAssisted: true,
				Candidates:  candidates,
			}
		} else if c.log != nil {
			c.log.Warn("llm classification failed", "error", err)
		}
	}

	return report.Classification{Candidates: candidates}
}

// score ranks packs by keyword evidence in the document head, highest score
// first with pack ID breaking ties so ordering is deterministic.
func (c *Classifier) score(text string) []report.Candidate {
	head := strings.ToLower(text)
	if len(head) > c.headChars {
		head = head[:c.headChars]
	}
	title := head
	if len(title) > titleWindow {
		title = title[:titleWindow]
	}

	candidates := make([]report.Candidate, 0, len(c.packs))
	for _, pack := range c.packs {
		var score float64
		for _, phrase := range pack.Policy.DocTypeNames {
			p := strings.ToLower(phrase)
			if p == "" {
				continue
			}
			n := strings.Count(head, p)
			if n > occurrenceCap {
				n = occurrenceCap
			}
			score += float64(n)
			if strings.Contains(title, p) {
				score += titleBonus
			}
		}
		candidates = append(candidates, report.Candidate{PackID: pack.ID, Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].PackID < candidates[j].PackID
	})
	return candidates
}

func (c *Classifier) askLLM(ctx context.Context, text string) (string, error) {
	head := text
	if len(head) > c.headChars {
		head = head[:c.headChars]
	}

	var b strings.Builder
	b.WriteString("Classify this document into exactly one of the following document types.\n\n")
	for _, pack := range c.packs {
		fmt.Fprintf(&b, "- %s: %s\n", pack.ID, strings.Join(pack.Policy.DocTypeNames, ", "))
	}
	b.WriteString("\nRespond with only a JSON object: {\"pack_id\": \"<id>\"}. ")
	b.WriteString("If none apply, use {\"pack_id\": null}.\n\nDocument:\n")
	b.WriteString(head)

	raw, err := llm.CompleteWithRetry(ctx, c.client, b.String())
	if err != nil {
		return "", err
	}
	obj, err := llm.ParseJSONObject(raw)
	if err != nil {
		return "", err
	}
	packID, _ := obj["pack_id"].(string)
	if packID == "" {
		return "", fmt.Errorf("model declined to classify")
	}
	for _, pack := range c.packs {
		if pack.ID == packID {
			return packID, nil
		}
	}
	return "", fmt.Errorf("model returned unknown pack id %q", packID)
}
