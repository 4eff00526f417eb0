package language

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// ErrSyntax wraps every parse failure.
var ErrSyntax = errors.New("syntax error")

// ParseQuery parses executable definitions (operations and fragments).
// Positions are relative to source.
func ParseQuery(name, source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return doc, nil
}

// ParseSchema parses type-system definitions and extensions.
func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return doc, nil
}

// DefinitionKeyword maps a type definition kind to the keyword that
// introduces it in SDL.
func DefinitionKeyword(kind DefinitionKind) string {
	switch kind {
	case Object:
		return "type"
	case Interface:
		return "interface"
	case Union:
		return "union"
	case Scalar:
		return "scalar"
	case Enum:
		return "enum"
	case InputObject:
		return "input"
	}
	return string(kind)
}
