// Package pathexpr parses path expressions that address nodes of a GraphQL
// document and derives from them which document sections must be loaded.
//
// Parsing never fails. Malformed input degrades to the best component list
// that could be recovered, so callers observe "no match" rather than errors.
//
// Grammar summary:
//
//	expression  = [ "{" [start] ":" [end] "}" ] path { "|" path }
//	path        = [ "/" | "//" ] segment { "/" segment }
//	segment     = ( "..." | "..." Name | "*" | "@" Name | "$" Name | Name ) { predicate }
//	predicate   = "[" condition "]"
//	condition   = term { "or" term }
//	term        = factor { "and" factor }
//	factor      = "(" condition ")" | comparison
//	comparison  = key [ ("=" | "!=" | ">" | "<" | ">=" | "<=") value ]
package pathexpr

import (
	"fmt"
	"strings"
)

// Kind classifies a path component.
type Kind int

const (
	Field Kind = iota
	Fragment
	Argument
	Directive
	Operation
	Alias
	Variable
	// Definition selects type-system definitions (type, input, enum, ...).
	Definition
)

var kindNames = [...]string{"FIELD", "FRAGMENT", "ARGUMENT", "DIRECTIVE", "OPERATION", "ALIAS", "VARIABLE", "DEFINITION"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("pathexpr: unknown component kind %q", b)
}

const (
	// Wildcard matches any single child.
	Wildcard = "*"
	// DeepWildcard matches zero or more intermediate levels.
	DeepWildcard = "..."
)

// Component is one segment of a path.
type Component struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
	// Keyword is the definition keyword of OPERATION, FRAGMENT and DEFINITION
	// selectors written as the first segment (query, fragment, type, ...).
	Keyword  string `json:"keyword,omitempty"`
	Position int    `json:"position"`
	// Attributes holds the key=value comparisons that must all hold.
	Attributes map[string]string `json:"attributes,omitempty"`
	Condition  *Condition        `json:"-"`
	// Spread marks a `...Name` fragment spread reference.
	Spread    bool `json:"spread,omitempty"`
	Malformed bool `json:"malformed,omitempty"`
}

func (c Component) IsWildcard() bool     { return c.Value == Wildcard }
func (c Component) IsDeepWildcard() bool { return c.Value == DeepWildcard && !c.Spread }

// TargetsDefinitions reports whether the component selects top-level
// definitions rather than nodes inside them.
func (c Component) TargetsDefinitions() bool {
	switch c.Kind {
	case Operation, Definition:
		return true
	case Fragment:
		return !c.Spread
	}
	return false
}

// Literal reports whether the component names a concrete node, which the
// node's section text must then contain.
func (c Component) Literal() bool {
	return c.Value != "" && !c.IsWildcard() && !c.IsDeepWildcard()
}

func (c Component) String() string {
	var b strings.Builder
	switch {
	case c.Keyword != "":
		b.WriteString(c.Keyword)
	case c.IsDeepWildcard():
		b.WriteString(DeepWildcard)
	case c.Spread:
		b.WriteString(DeepWildcard)
		b.WriteString(c.Value)
	case c.Kind == Directive && c.Literal():
		b.WriteString("@")
		b.WriteString(c.Value)
	case c.Kind == Variable && c.Literal():
		b.WriteString("$")
		b.WriteString(c.Value)
	default:
		b.WriteString(c.Value)
	}
	if c.Condition != nil {
		b.WriteString("[")
		b.WriteString(c.Condition.String())
		b.WriteString("]")
	}
	return b.String()
}

// Path is one alternative of an expression.
type Path struct {
	Rooted     bool        `json:"rooted"`
	Components []Component `json:"components"`
}

func (p Path) String() string {
	parts := make([]string, len(p.Components))
	for i, c := range p.Components {
		parts[i] = c.String()
	}
	s := strings.Join(parts, "/")
	if p.Rooted {
		return "//" + s
	}
	return s
}

// Terms lists the literal names of the path.
func (p Path) Terms() []string {
	var terms []string
	for _, c := range p.Components {
		if c.Keyword == "" && c.Literal() {
			terms = append(terms, c.Value)
		}
	}
	return terms
}
