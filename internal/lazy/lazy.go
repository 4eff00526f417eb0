// Package lazy answers path expressions by parsing only the sections of a
// document the expression can reach.
//
// Evaluate flow: analyze the expression, read and index the document, plan
// the sections to load (requirements plus their fragment closure), parse
// them through the section cache, merge the partial trees and match. The
// answer equals the one a full-document evaluation gives.
//
// An Evaluator is safe for concurrent use. Caches and counters are the only
// shared state; parsed section trees are never modified after caching.
package lazy

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hanpama/gqlpath/internal/digest"
	"github.com/hanpama/gqlpath/internal/eventbus"
	"github.com/hanpama/gqlpath/internal/events"
	"github.com/hanpama/gqlpath/internal/matcher"
	"github.com/hanpama/gqlpath/internal/pathexpr"
	"github.com/hanpama/gqlpath/internal/reference"
	"github.com/hanpama/gqlpath/internal/reqid"
	"github.com/hanpama/gqlpath/internal/section"
	"github.com/hanpama/gqlpath/internal/tree"
)

// Result is the outcome of one lazy evaluation.
type Result struct {
	Matches []matcher.Match `json:"matches"`
	// Sections lists the sections the answer was computed from, in
	// document order.
	Sections []*section.Section `json:"sections"`
	Analysis *pathexpr.Analysis `json:"analysis"`
	// Tree is the merged partial tree. It is nil for answers served from
	// the result cache.
	Tree     *tree.Tree    `json:"-"`
	Duration time.Duration `json:"duration"`
	Cached   bool          `json:"cached"`
	Err      error         `json:"-"`
}

// Success reports whether the evaluation completed without error.
func (r *Result) Success() bool { return r.Err == nil }

// Section returns the first section the answer was computed from, or an
// empty section when none was needed.
func (r *Result) Section() *section.Section {
	if len(r.Sections) == 0 {
		return &section.Section{}
	}
	return r.Sections[0]
}

// Evaluator answers expressions lazily and keeps caches across calls until
// they are cleared.
type Evaluator struct {
	opt       Options
	loader    *section.Loader
	reference *reference.Evaluator
	caches    caches
	stats     *counters
}

// New creates an Evaluator. Both caches are enabled by default.
func New(opts ...Option) *Evaluator {
	o := defaultOptions()
	for _, f := range opts {
		f(&o)
	}
	loader := section.NewLoader(o.Source)
	return &Evaluator{
		opt:       o,
		loader:    loader,
		reference: reference.New(loader, reference.WithEventBus(o.Bus)),
		stats:     newCounters(),
	}
}

// Document reads and indexes the document docID without evaluating
// anything.
func (e *Evaluator) Document(ctx context.Context, docID string) (*section.Document, error) {
	return e.loader.Load(ctx, docID)
}

// Reference returns the full-document evaluator sharing this evaluator's
// source and event bus.
func (e *Evaluator) Reference() *reference.Evaluator { return e.reference }

// Process evaluates expr against the document docID. Failures are reported
// in the result, never as a panic, and still count towards the statistics.
func (e *Evaluator) Process(ctx context.Context, docID, expr string) (res *Result) {
	start := time.Now()
	id := reqid.New()
	eventbus.Publish(ctx, e.opt.Bus, events.EvaluationStart{ID: id, Mode: events.ModeLazy, DocumentID: docID, Expression: expr})

	res = &Result{}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: %v", ErrMatchEvaluation, r)
		}
		if res.Err != nil {
			res.Matches, res.Tree, res.Cached = nil, nil, false
		}
		res.Duration = time.Since(start)
		e.stats.record(res.Duration)
		eventbus.Publish(ctx, e.opt.Bus, events.EvaluationFinish{
			ID:         id,
			Mode:       events.ModeLazy,
			DocumentID: docID,
			Expression: expr,
			Matches:    len(res.Matches),
			Sections:   len(res.Sections),
			Cached:     res.Cached,
			Err:        res.Err,
			Duration:   res.Duration,
		})
	}()

	res.Analysis = pathexpr.Analyze(expr)
	res.Err = e.process(ctx, id, docID, res)
	return res
}

func (e *Evaluator) process(ctx context.Context, evalID, docID string, res *Result) error {
	doc, err := e.loader.Load(ctx, docID)
	if err != nil {
		return err
	}

	key := resultKey{doc: docID, expr: res.Analysis.Normalized}
	if e.opt.ResultCache {
		if ent, ok := e.caches.result(key); ok && ent.hash == doc.Hash {
			e.stats.resultHits.Add(1)
			res.Matches = slices.Clone(ent.matches)
			res.Sections = ent.sections
			res.Cached = true
			return nil
		}
		e.stats.resultMisses.Add(1)
	}

	secs := Plan(doc, res.Analysis)
	trees := make([]*tree.Tree, 0, len(secs))
	for _, s := range secs {
		t, err := e.sectionTree(ctx, evalID, doc, s)
		if err != nil {
			return err
		}
		trees = append(trees, t)
	}
	res.Sections = secs
	res.Tree = tree.Merge(trees...)
	res.Matches = matcher.Evaluate(res.Tree, res.Analysis.Expression)

	if e.opt.SelfCheck {
		if err := e.check(doc, res); err != nil {
			return err
		}
	}
	if e.opt.ResultCache {
		e.caches.results.Store(key, &resultEntry{
			hash:     doc.Hash,
			matches:  slices.Clone(res.Matches),
			sections: secs,
		})
	}
	return nil
}

// Plan selects the sections of doc that a can read: those named by its
// requirements and every fragment they reach.
func Plan(doc *section.Document, a *pathexpr.Analysis) []*section.Section {
	if a.Empty() {
		return nil
	}
	var seed []*section.Section
	for _, s := range doc.Sections {
		for _, r := range a.Requirements {
			if r.Type != "" {
				if r.Accepts(s) {
					seed = append(seed, s)
					break
				}
				continue
			}
			if doc.ClosureContains(s, r.Terms) {
				seed = append(seed, s)
				break
			}
		}
	}
	return doc.Closure(seed)
}

func (e *Evaluator) sectionTree(ctx context.Context, evalID string, doc *section.Document, s *section.Section) (*tree.Tree, error) {
	key := sectionKey{doc: doc.ID, typ: s.Type, name: s.Name, ordinal: s.Ordinal}
	hash := digest.String(s.Text)
	base := tree.BaseOf(s)
	if e.opt.SectionCache {
		if ent, ok := e.caches.section(key); ok && ent.hash == hash && ent.base == base {
			e.stats.sectionHits.Add(1)
			return ent.tree, nil
		}
		e.stats.sectionMisses.Add(1)
	}

	start := time.Now()
	t, err := tree.FromSection(doc.ID, s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s, err)
	}
	eventbus.Publish(ctx, e.opt.Bus, events.SectionParsed{
		EvaluationID: evalID,
		DocumentID:   doc.ID,
		Type:         string(s.Type),
		Name:         s.Name,
		Size:         s.Size(),
		Duration:     time.Since(start),
	})
	if e.opt.SectionCache {
		e.caches.sections.Store(key, &sectionEntry{hash: hash, base: base, tree: t})
	}
	return t, nil
}

func (e *Evaluator) check(doc *section.Document, res *Result) error {
	want, err := reference.EvaluateFull(doc, res.Analysis)
	if err != nil {
		return err
	}
	if !matcher.SameNodes(want, res.Matches) {
		return fmt.Errorf("%w: %q on %s: lazy found %d nodes, full evaluation %d",
			ErrMatchEvaluation, res.Analysis.Normalized, doc.ID, len(res.Matches), len(want))
	}
	return nil
}

// Stats returns a snapshot of the performance counters.
func (e *Evaluator) Stats() Stats {
	s := e.stats.snapshot()
	s.CacheStats.SectionEntries, s.CacheStats.ResultEntries = e.caches.sizes()
	s.CacheSize = s.CacheStats.SectionEntries + s.CacheStats.ResultEntries
	return s
}

// ClearCaches drops every cached section and result and resets all
// counters.
func (e *Evaluator) ClearCaches() {
	e.caches.clear()
	e.stats.reset()
}

// ClearDocumentCache drops the cached sections and results of one
// document. Unknown or empty ids are ignored.
func (e *Evaluator) ClearDocumentCache(docID string) {
	if docID == "" {
		return
	}
	e.caches.clearDocument(docID)
}
