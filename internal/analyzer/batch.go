package analyzer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"contractextract/internal/report"
)

// Outcome is one batch entry's result. Err is set when the document could
// not be analyzed at all; Report is set otherwise.
type Outcome struct {
	Name   string         `json:"name"`
	Report *report.Report `json:"report,omitempty"`
	Err    string         `json:"error,omitempty"`
}

// AnalyzeBatch analyzes documents concurrently with a bounded worker count.
// One unreadable document never sinks the batch; its Outcome carries the
// error and the rest proceed. Results keep input order.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, inputs []Input) []Outcome {
	outcomes := make([]Outcome, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, in := range inputs {
		g.Go(func() error {
			outcomes[i].Name = in.Name
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = err.Error()
				return nil
			}
			rep, err := a.Analyze(ctx, in)
			if err != nil {
				outcomes[i].Err = err.Error()
				return nil
			}
			outcomes[i].Report = rep
			return nil
		})
	}
	_ = g.Wait() // workers report per-document errors via Outcome
	return outcomes
}
