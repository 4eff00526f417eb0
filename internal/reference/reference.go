// Package reference evaluates path expressions against fully parsed
// documents. Its answers are the ground truth the lazy evaluator is
// checked against.
package reference

import (
	"context"
	"strings"
	"time"

	"github.com/hanpama/gqlpath/internal/eventbus"
	"github.com/hanpama/gqlpath/internal/events"
	"github.com/hanpama/gqlpath/internal/language"
	"github.com/hanpama/gqlpath/internal/matcher"
	"github.com/hanpama/gqlpath/internal/pathexpr"
	"github.com/hanpama/gqlpath/internal/reqid"
	"github.com/hanpama/gqlpath/internal/section"
	"github.com/hanpama/gqlpath/internal/tree"
)

// Parse parses every definition of doc into one tree.
//
// Executable and type-system definitions need different parsers, so the
// document is parsed twice with the other kind of section blanked out.
// Blanking keeps rune offsets and line breaks, so node positions are those
// of the original text.
func Parse(doc *section.Document) (*tree.Tree, error) {
	var hasExec, hasSchema bool
	for _, s := range doc.Sections {
		if s.Type.Executable() {
			hasExec = true
		} else {
			hasSchema = true
		}
	}
	b := tree.NewBuilder()
	if hasExec {
		q, err := language.ParseQuery(doc.ID, blank(doc, func(s *section.Section) bool { return !s.Type.Executable() }))
		if err != nil {
			return nil, err
		}
		b.AddQuery(q, tree.DocumentBase)
	}
	if hasSchema {
		sd, err := language.ParseSchema(doc.ID, blank(doc, func(s *section.Section) bool { return s.Type.Executable() }))
		if err != nil {
			return nil, err
		}
		b.AddSchema(sd, tree.DocumentBase)
	}
	return b.Tree(), nil
}

// blank replaces every rune of the sections selected by drop with a space,
// keeping line breaks.
func blank(doc *section.Document, drop func(*section.Section) bool) string {
	var b strings.Builder
	b.Grow(len(doc.Text))
	pos := 0
	for _, s := range doc.Sections {
		if !drop(s) {
			continue
		}
		b.WriteString(doc.Text[pos:s.Start])
		for _, r := range doc.Text[s.Start:s.End] {
			if r == '\n' || r == '\r' {
				b.WriteRune(r)
			} else {
				b.WriteByte(' ')
			}
		}
		pos = s.End
	}
	b.WriteString(doc.Text[pos:])
	return b.String()
}

// EvaluateFull parses doc completely and matches a against it.
func EvaluateFull(doc *section.Document, a *pathexpr.Analysis) ([]matcher.Match, error) {
	if a.Empty() {
		return nil, nil
	}
	t, err := Parse(doc)
	if err != nil {
		return nil, err
	}
	return matcher.Evaluate(t, a.Expression), nil
}

// Result is the outcome of one reference evaluation.
type Result struct {
	Matches  []matcher.Match    `json:"matches"`
	Analysis *pathexpr.Analysis `json:"analysis"`
	Duration time.Duration      `json:"duration"`
	Err      error              `json:"-"`
}

// Success reports whether the evaluation completed without error.
func (r *Result) Success() bool { return r.Err == nil }

// Evaluator runs reference evaluations over documents read by a Loader.
// It keeps no caches: every call reads and parses the document again.
type Evaluator struct {
	loader *section.Loader
	bus    *eventbus.Bus
}

type Option func(*Evaluator)

// WithEventBus publishes evaluation events to b.
func WithEventBus(b *eventbus.Bus) Option { return func(e *Evaluator) { e.bus = b } }

// New creates an Evaluator. A nil loader reads documents through afs.
func New(loader *section.Loader, opts ...Option) *Evaluator {
	if loader == nil {
		loader = section.NewLoader(nil)
	}
	e := &Evaluator{loader: loader}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate reads docID and evaluates expr against the whole document.
func (e *Evaluator) Evaluate(ctx context.Context, docID, expr string) *Result {
	start := time.Now()
	id := reqid.New()
	eventbus.Publish(ctx, e.bus, events.EvaluationStart{ID: id, Mode: events.ModeFull, DocumentID: docID, Expression: expr})

	res := &Result{Analysis: pathexpr.Analyze(expr)}
	doc, err := e.loader.Load(ctx, docID)
	if err == nil {
		res.Matches, err = EvaluateFull(doc, res.Analysis)
	}
	res.Err = err
	res.Duration = time.Since(start)

	eventbus.Publish(ctx, e.bus, events.EvaluationFinish{
		ID:         id,
		Mode:       events.ModeFull,
		DocumentID: docID,
		Expression: expr,
		Matches:    len(res.Matches),
		Err:        res.Err,
		Duration:   res.Duration,
	})
	return res
}
