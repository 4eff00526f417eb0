// Package section splits GraphQL documents into top-level definitions
// ("sections") without parsing them, and loads documents from a Source.
//
// A Section is a half-open byte range [Start, End) of the document text that
// holds exactly one definition, including any leading description string.
// Scanning is lexical only: strings, block strings, comments, braces and
// parentheses are tracked so that section boundaries are exact, but no AST is
// produced. Parsing happens downstream, one section at a time.
package section

import "fmt"

// Type tags a section by the keyword that introduces its definition.
type Type string

const (
	Operation Type = "operation"
	Fragment  Type = "fragment"
	Schema    Type = "schema"
	Object    Type = "type"
	Input     Type = "input"
	Enum      Type = "enum"
	Scalar    Type = "scalar"
	Interface Type = "interface"
	Union     Type = "union"
	Directive Type = "directive"
)

// Executable reports whether sections of this type hold operations or
// fragments (as opposed to type-system definitions).
func (t Type) Executable() bool { return t == Operation || t == Fragment }

// TypeForKeyword maps a definition keyword to its section type.
func TypeForKeyword(kw string) (Type, bool) {
	switch kw {
	case "query", "mutation", "subscription":
		return Operation, true
	case "fragment":
		return Fragment, true
	case "schema":
		return Schema, true
	case "type":
		return Object, true
	case "input":
		return Input, true
	case "enum":
		return Enum, true
	case "scalar":
		return Scalar, true
	case "interface":
		return Interface, true
	case "union":
		return Union, true
	case "directive":
		return Directive, true
	}
	return "", false
}

// Section is one top-level definition of a document.
type Section struct {
	Type Type `json:"type"`
	// Operation is query, mutation or subscription for operation sections.
	Operation string `json:"operation,omitempty"`
	Name      string `json:"name,omitempty"`
	// Extension is set for `extend ...` definitions.
	Extension bool   `json:"extension,omitempty"`
	Text      string `json:"-"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	// RuneStart, Line and Column locate Start the way the GraphQL lexer
	// reports positions (rune offsets, 1-based lines and columns).
	RuneStart int `json:"runeStart"`
	Line      int `json:"line"`
	Column    int `json:"column"`
	// Ordinal counts earlier sections with the same Type and Name.
	Ordinal int `json:"ordinal"`
}

// Size is the length of the section text in bytes.
func (s *Section) Size() int {
	if s == nil {
		return 0
	}
	return len(s.Text)
}

// Empty reports whether s is the placeholder returned for a section that
// does not exist.
func (s *Section) Empty() bool { return s == nil || s.Text == "" }

func (s *Section) String() string {
	if s.Empty() {
		return "<empty>"
	}
	kw := string(s.Type)
	if s.Type == Operation {
		kw = s.Operation
	}
	if s.Extension {
		kw = "extend " + kw
	}
	if s.Name == "" {
		return fmt.Sprintf("%s [%d:%d]", kw, s.Start, s.End)
	}
	return fmt.Sprintf("%s %s [%d:%d]", kw, s.Name, s.Start, s.End)
}

func emptySection(t Type, name string) *Section {
	return &Section{Type: t, Name: name}
}
