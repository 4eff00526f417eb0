package pathexpr

import (
	"strings"

	"github.com/hanpama/gqlpath/internal/section"
)

// Requirement names document sections an expression may read.
//
// A typed requirement (Type set) selects sections by type, operation keyword
// and name; empty fields match anything. An untyped requirement selects every
// section whose fragment closure contains all Terms.
type Requirement struct {
	Type      section.Type `json:"type,omitempty"`
	Operation string       `json:"operation,omitempty"`
	Name      string       `json:"name,omitempty"`
	Terms     []string     `json:"terms,omitempty"`
}

// Accepts reports whether a typed requirement selects s. Untyped
// requirements need the document and are resolved by the evaluator.
func (r Requirement) Accepts(s *section.Section) bool {
	if r.Type == "" || s.Type != r.Type {
		return false
	}
	if r.Operation != "" && s.Operation != r.Operation {
		return false
	}
	return r.Name == "" || s.Name == r.Name
}

func (r Requirement) String() string {
	if r.Type == "" {
		return "any[" + strings.Join(r.Terms, ",") + "]"
	}
	s := string(r.Type)
	if r.Operation != "" {
		s = r.Operation
	}
	if r.Name != "" {
		s += " " + r.Name
	}
	return s
}

// Analysis is the static view of an expression used to plan evaluation.
type Analysis struct {
	Expression *Expression `json:"expression"`
	Normalized string      `json:"normalized"`
	// Components lists the components of every alternative in order.
	Components   []Component       `json:"components"`
	Requirements []Requirement     `json:"requirements"`
	Predicates   map[string]string `json:"predicates,omitempty"`
	// Depth is the component count of the longest alternative.
	Depth                int  `json:"depth"`
	HasDeepWildcard      bool `json:"hasDeepWildcard"`
	NeedsFieldResolution bool `json:"needsFieldResolution"`
}

// Empty reports whether the expression has no components.
func (a *Analysis) Empty() bool { return len(a.Components) == 0 }

// Analyze parses source and derives its requirements.
func Analyze(source string) *Analysis {
	e := Parse(source)
	a := &Analysis{Expression: e, Normalized: e.String()}
	for _, p := range e.Paths {
		a.Depth = max(a.Depth, len(p.Components))
		for _, c := range p.Components {
			a.Components = append(a.Components, c)
			if c.IsDeepWildcard() {
				a.HasDeepWildcard = true
			}
			if !c.TargetsDefinitions() {
				a.NeedsFieldResolution = true
			}
			for k, v := range c.Attributes {
				if a.Predicates == nil {
					a.Predicates = map[string]string{}
				}
				a.Predicates[k] = v
			}
		}
		a.Requirements = appendUnique(a.Requirements, requirements(p)...)
	}
	return a
}

func requirements(p Path) []Requirement {
	if len(p.Components) == 0 {
		return nil
	}
	var reqs []Requirement
	first := p.Components[0]
	name := first.Attributes["name"]
	switch {
	case first.Kind == Operation:
		reqs = append(reqs, Requirement{Type: section.Operation, Operation: first.Keyword, Name: name})
	case first.Kind == Fragment && !first.Spread:
		if first.Literal() {
			name = first.Value
		}
		reqs = append(reqs, Requirement{Type: section.Fragment, Name: name})
	case first.Kind == Definition && first.Keyword != "":
		t, _ := section.TypeForKeyword(first.Keyword)
		reqs = append(reqs, Requirement{Type: t, Name: name})
	default:
		reqs = append(reqs, Requirement{Terms: p.Terms()})
	}
	for _, c := range p.Components {
		if c.Spread && c.Literal() {
			reqs = append(reqs, Requirement{Type: section.Fragment, Name: c.Value})
		}
	}
	return reqs
}

func appendUnique(dst []Requirement, reqs ...Requirement) []Requirement {
	for _, r := range reqs {
		dup := false
		for _, d := range dst {
			if d.String() == r.String() {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, r)
		}
	}
	return dst
}
