// Package matcher walks a tree.Tree along the components of a path and
// returns the addressed nodes in visiting order.
//
// The same matcher serves partial trees built from a few sections and trees
// built from whole documents, which is what makes their answers comparable.
package matcher

import (
	"github.com/hanpama/gqlpath/internal/digest"
	"github.com/hanpama/gqlpath/internal/pathexpr"
	"github.com/hanpama/gqlpath/internal/tree"
)

// MaxSpreadDepth bounds how many fragment spreads may be expanded inside
// one another.
const MaxSpreadDepth = 64

// Match is one addressed node.
type Match struct {
	Node   tree.NodeID `json:"-"`
	Kind   tree.Kind   `json:"kind"`
	Tag    string      `json:"tag"`
	Name   string      `json:"name,omitempty"`
	Alias  string      `json:"alias,omitempty"`
	Value  string      `json:"value,omitempty"`
	Depth  int         `json:"depth"`
	Offset int         `json:"offset"`
	Line   int         `json:"line"`
	Column int         `json:"column"`
	Path   string      `json:"path"`
}

// Key identifies the matched node independently of the tree it was found
// in.
func (m Match) Key() uint64 {
	return digest.Fields([]string{m.Kind.String(), m.Name}, m.Offset)
}

func newMatch(t *tree.Tree, id tree.NodeID) Match {
	n := t.Node(id)
	return Match{
		Node:   id,
		Kind:   n.Kind,
		Tag:    n.Kind.Tag(),
		Name:   n.Name,
		Alias:  n.Alias,
		Value:  n.Value,
		Depth:  n.Depth,
		Offset: n.Offset,
		Line:   n.Line,
		Column: n.Column,
		Path:   t.Path(id),
	}
}

// Evaluate runs every alternative of e, concatenates their matches and
// applies the range of e.
func Evaluate(t *tree.Tree, e *pathexpr.Expression) []Match {
	if t == nil || e == nil {
		return nil
	}
	var out []Match
	for _, p := range e.Paths {
		out = append(out, Find(t, p.Components)...)
	}
	if e.Range != nil {
		lo, hi := e.Range.Bounds(len(out))
		out = out[lo:hi]
	}
	return out
}

// Find matches one path against t starting at the document root.
func Find(t *tree.Tree, components []pathexpr.Component) []Match {
	if t == nil || len(components) == 0 {
		return nil
	}
	w := &walker{t: t, comps: components, active: map[tree.NodeID]bool{}}
	w.match(t.Root(), 0)
	out := make([]Match, len(w.out))
	for i, id := range w.out {
		out[i] = newMatch(t, id)
	}
	return out
}

// SameNodes reports whether a and b hold the same nodes with the same
// multiplicity, ignoring order.
func SameNodes(a, b []Match) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[uint64]int, len(a))
	for _, m := range a {
		counts[m.Key()]++
	}
	for _, m := range b {
		k := m.Key()
		if counts[k] == 0 {
			return false
		}
		counts[k]--
	}
	return true
}

type walker struct {
	t     *tree.Tree
	comps []pathexpr.Component
	// active holds the fragments being expanded on the current walk.
	active map[tree.NodeID]bool
	out    []tree.NodeID
}

func (w *walker) match(id tree.NodeID, i int) {
	if i == len(w.comps) {
		w.out = append(w.out, id)
		return
	}
	c := w.comps[i]
	if c.IsDeepWildcard() {
		w.deep(id, i+1, c.Condition)
		return
	}
	w.candidates(id, c, func(child tree.NodeID) {
		if accepts(w.t, c, child) {
			w.match(child, i+1)
		}
	})
}

// candidates lists the nodes component c is tested against below id.
func (w *walker) candidates(id tree.NodeID, c pathexpr.Component, fn func(tree.NodeID)) {
	if id == w.t.Root() {
		if c.TargetsDefinitions() {
			for _, d := range w.t.Definitions() {
				fn(d)
			}
			return
		}
		for _, d := range w.t.Definitions() {
			w.candidates(d, c, fn)
		}
		return
	}
	if c.IsWildcard() {
		w.kids(id, fn)
		return
	}
	w.visible(id, fn)
}

// deep matches the components from i on at id and at any depth below it.
// A branch is not descended past the first node where they match. When the
// wildcard carries a condition, only nodes satisfying it are passed through
// or, for a trailing wildcard, returned.
func (w *walker) deep(id tree.NodeID, i int, cond *pathexpr.Condition) {
	if i == len(w.comps) {
		w.descendants(id, cond)
		return
	}
	if id != w.t.Root() {
		w.match(id, i)
	}
	w.branches(id, func(c tree.NodeID) { w.descend(c, i, cond) })
}

func (w *walker) descend(id tree.NodeID, i int, cond *pathexpr.Condition) {
	if !w.passes(id, cond) {
		return
	}
	before := len(w.out)
	w.match(id, i)
	if len(w.out) > before {
		return
	}
	w.branches(id, func(c tree.NodeID) { w.descend(c, i, cond) })
}

// passes reports whether the walk may continue through id. Definitions are
// the scopes a rooted path starts in and are never filtered.
func (w *walker) passes(id tree.NodeID, cond *pathexpr.Condition) bool {
	if cond == nil || w.t.Node(id).Kind.IsDefinition() {
		return true
	}
	return w.holds(id, cond)
}

func (w *walker) holds(id tree.NodeID, cond *pathexpr.Condition) bool {
	return cond.Eval(func(key string) (string, bool) { return w.t.Attr(id, key) })
}

func (w *walker) descendants(id tree.NodeID, cond *pathexpr.Condition) {
	w.kids(id, func(c tree.NodeID) {
		if w.holds(c, cond) {
			w.out = append(w.out, c)
		}
		w.descendants(c, cond)
	})
}

// kids calls fn for the children of id. The children of a fragment spread
// include those of the fragment it names.
func (w *walker) kids(id tree.NodeID, fn func(tree.NodeID)) {
	for _, c := range w.t.Children(id) {
		fn(c)
	}
	if n := w.t.Node(id); n.Kind == tree.KindFragmentSpread {
		ref := n.Ref
		w.enter(ref, func() {
			for _, c := range w.t.Children(ref) {
				fn(c)
			}
		})
	}
}

// visible calls fn for the children of id and for the selections reachable
// from them through spreads and inline fragments.
func (w *walker) visible(id tree.NodeID, fn func(tree.NodeID)) {
	w.kids(id, func(c tree.NodeID) {
		fn(c)
		w.seeThrough(c, fn)
	})
}

func (w *walker) seeThrough(id tree.NodeID, fn func(tree.NodeID)) {
	n := w.t.Node(id)
	switch n.Kind {
	case tree.KindInlineFragment:
		w.selections(id, fn)
	case tree.KindFragmentSpread:
		ref := n.Ref
		w.enter(ref, func() { w.selections(ref, fn) })
	}
}

func (w *walker) selections(id tree.NodeID, fn func(tree.NodeID)) {
	for _, c := range w.t.Children(id) {
		switch w.t.Node(c).Kind {
		case tree.KindField, tree.KindFragmentSpread, tree.KindInlineFragment:
			fn(c)
			w.seeThrough(c, fn)
		}
	}
}

// branches calls fn for the children of id, replacing spreads and inline
// fragments by their own children.
func (w *walker) branches(id tree.NodeID, fn func(tree.NodeID)) {
	w.kids(id, func(c tree.NodeID) {
		switch w.t.Node(c).Kind {
		case tree.KindInlineFragment, tree.KindFragmentSpread:
			w.branches(c, fn)
		default:
			fn(c)
		}
	})
}

// enter runs fn with fragment frag marked active. Fragments already active
// and expansions deeper than MaxSpreadDepth are skipped.
func (w *walker) enter(frag tree.NodeID, fn func()) {
	if frag == tree.None || w.active[frag] || len(w.active) >= MaxSpreadDepth {
		return
	}
	w.active[frag] = true
	defer delete(w.active, frag)
	fn()
}

func accepts(t *tree.Tree, c pathexpr.Component, id tree.NodeID) bool {
	n := t.Node(id)
	if !kindAccepts(c, n) {
		return false
	}
	if c.Keyword == "" && c.Literal() && n.Name != c.Value && n.Alias != c.Value {
		return false
	}
	return c.Condition.Eval(func(key string) (string, bool) { return t.Attr(id, key) })
}

func kindAccepts(c pathexpr.Component, n *tree.Node) bool {
	switch c.Kind {
	case pathexpr.Field:
		if c.IsWildcard() {
			return true
		}
		switch n.Kind {
		case tree.KindField, tree.KindFieldDefinition, tree.KindInputValue, tree.KindEnumValue:
			return true
		}
	case pathexpr.Alias:
		return n.Kind == tree.KindField
	case pathexpr.Argument:
		return n.Kind == tree.KindArgument || n.Kind == tree.KindInputValue
	case pathexpr.Variable:
		return n.Kind == tree.KindVariable
	case pathexpr.Directive:
		return n.Kind == tree.KindDirective || n.Kind == tree.KindDirectiveDefinition
	case pathexpr.Fragment:
		if c.Spread {
			return n.Kind == tree.KindFragmentSpread
		}
		return n.Kind == tree.KindFragment
	case pathexpr.Operation:
		return n.Kind == tree.KindOperation && (c.Keyword == "" || n.Value == c.Keyword)
	case pathexpr.Definition:
		switch n.Kind {
		case tree.KindType, tree.KindSchema, tree.KindDirectiveDefinition:
			return c.Keyword == "" || n.Value == c.Keyword
		}
	}
	return false
}
