package language

import "github.com/vektah/gqlparser/v2/ast"

// Aliases for the gqlparser AST nodes the tree builder reads.
type (
	QueryDocument          = ast.QueryDocument
	SchemaDocument         = ast.SchemaDocument
	VariableDefinition     = ast.VariableDefinition
	SelectionSet           = ast.SelectionSet
	Field                  = ast.Field
	InlineFragment         = ast.InlineFragment
	FragmentSpread         = ast.FragmentSpread
	DirectiveList          = ast.DirectiveList
	SchemaDefinition       = ast.SchemaDefinition
	ArgumentList           = ast.ArgumentList
	Value                  = ast.Value
	ArgumentDefinitionList = ast.ArgumentDefinitionList
	Type                   = ast.Type
	Definition             = ast.Definition
	DefinitionList         = ast.DefinitionList
	Position               = ast.Position
)

type DefinitionKind = ast.DefinitionKind

type ValueKind = ast.ValueKind

const (
	Object      DefinitionKind = ast.Object
	Interface   DefinitionKind = ast.Interface
	Union       DefinitionKind = ast.Union
	Scalar      DefinitionKind = ast.Scalar
	Enum        DefinitionKind = ast.Enum
	InputObject DefinitionKind = ast.InputObject

	Variable     ValueKind = ast.Variable
	IntValue     ValueKind = ast.IntValue
	FloatValue   ValueKind = ast.FloatValue
	StringValue  ValueKind = ast.StringValue
	BlockValue   ValueKind = ast.BlockValue
	BooleanValue ValueKind = ast.BooleanValue
	NullValue    ValueKind = ast.NullValue
	EnumValue    ValueKind = ast.EnumValue
)
