package lazy

import (
	"context"
	"time"

	"github.com/hanpama/gqlpath/internal/matcher"
	"github.com/hanpama/gqlpath/internal/reference"
)

// Comparison reports a full-document evaluation and a lazy evaluation of
// the same expression side by side.
type Comparison struct {
	DocumentID            string            `json:"documentId"`
	Expression            string            `json:"expression"`
	TraditionalTime       time.Duration     `json:"traditionalTimeNanos"`
	LazyTime              time.Duration     `json:"lazyTimeNanos"`
	Traditional           *reference.Result `json:"traditionalResult"`
	Lazy                  *Result           `json:"lazyResult"`
	ImprovementPercentage float64           `json:"improvementPercentage"`
}

// ResultsMatch reports whether both evaluations succeeded and found the
// same nodes.
func (c *Comparison) ResultsMatch() bool {
	return c.Traditional.Success() && c.Lazy.Success() &&
		matcher.SameNodes(c.Traditional.Matches, c.Lazy.Matches)
}

// SameCount reports whether both evaluations succeeded with the same
// number of matches, whatever the nodes.
func (c *Comparison) SameCount() bool {
	return c.Traditional.Success() && c.Lazy.Success() &&
		len(c.Traditional.Matches) == len(c.Lazy.Matches)
}

func (c *Comparison) IsLazyFaster() bool { return c.LazyTime < c.TraditionalTime }

// Compare evaluates expr on docID with the full-document evaluator and
// then lazily. The lazy run uses the caches and counters like any Process
// call.
func (e *Evaluator) Compare(ctx context.Context, docID, expr string) *Comparison {
	trad := e.reference.Evaluate(ctx, docID, expr)
	lazy := e.Process(ctx, docID, expr)
	c := &Comparison{
		DocumentID:      docID,
		Expression:      expr,
		TraditionalTime: trad.Duration,
		LazyTime:        lazy.Duration,
		Traditional:     trad,
		Lazy:            lazy,
	}
	if trad.Duration > 0 {
		c.ImprovementPercentage = float64(trad.Duration-lazy.Duration) / float64(trad.Duration) * 100
	}
	return c
}
