package tree

import (
	"github.com/hanpama/gqlpath/internal/language"
)

// Base locates a parsed fragment of text inside its document. Parser
// positions are relative to the fragment; Base shifts them to absolute
// document coordinates.
type Base struct {
	Offset int
	Line   int
	Column int
}

// DocumentBase is the Base of text parsed as a whole document.
var DocumentBase = Base{Offset: 0, Line: 1, Column: 1}

// Builder appends parsed definitions to a new Tree.
type Builder struct {
	t    *Tree
	base Base
}

func NewBuilder() *Builder {
	return &Builder{t: newTree(), base: DocumentBase}
}

// Tree seals and returns the built tree. The builder must not be used
// afterwards.
func (b *Builder) Tree() *Tree {
	t := b.t
	b.t = nil
	return t.seal()
}

// BuildQuery builds a tree from executable definitions.
func BuildQuery(doc *language.QueryDocument, base Base) *Tree {
	b := NewBuilder()
	b.AddQuery(doc, base)
	return b.Tree()
}

// BuildSchema builds a tree from type-system definitions.
func BuildSchema(doc *language.SchemaDocument, base Base) *Tree {
	b := NewBuilder()
	b.AddSchema(doc, base)
	return b.Tree()
}

// AddQuery appends the operations and fragments of doc.
func (b *Builder) AddQuery(doc *language.QueryDocument, base Base) {
	if doc == nil {
		return
	}
	b.base = base
	for _, op := range doc.Operations {
		id := b.add(0, KindOperation, op.Name, string(op.Operation), op.Position)
		b.variableDefinitions(id, op.VariableDefinitions)
		b.directives(id, op.Directives)
		b.selections(id, op.SelectionSet)
	}
	for _, f := range doc.Fragments {
		id := b.add(0, KindFragment, f.Name, f.TypeCondition, f.Position)
		b.variableDefinitions(id, f.VariableDefinition)
		b.directives(id, f.Directives)
		b.selections(id, f.SelectionSet)
	}
}

// AddSchema appends schema, type and directive definitions of doc,
// extensions included.
func (b *Builder) AddSchema(doc *language.SchemaDocument, base Base) {
	if doc == nil {
		return
	}
	b.base = base
	for _, list := range [][]*language.SchemaDefinition{doc.Schema, doc.SchemaExtension} {
		for _, s := range list {
			id := b.add(0, KindSchema, "", "schema", s.Position)
			b.directives(id, s.Directives)
			for _, ot := range s.OperationTypes {
				b.add(id, KindFieldDefinition, string(ot.Operation), ot.Type, ot.Position)
			}
		}
	}
	for _, list := range []language.DefinitionList{doc.Definitions, doc.Extensions} {
		for _, d := range list {
			b.definition(d)
		}
	}
	for _, d := range doc.Directives {
		id := b.add(0, KindDirectiveDefinition, d.Name, "directive", d.Position)
		b.argumentDefinitions(id, d.Arguments)
	}
}

func (b *Builder) definition(d *language.Definition) {
	id := b.add(0, KindType, d.Name, language.DefinitionKeyword(d.Kind), d.Position)
	b.directives(id, d.Directives)
	fieldKind := KindFieldDefinition
	if d.Kind == language.InputObject {
		fieldKind = KindInputValue
	}
	for _, f := range d.Fields {
		fid := b.add(id, fieldKind, f.Name, typeString(f.Type), f.Position)
		if fieldKind == KindInputValue && f.DefaultValue != nil {
			b.t.nodes[fid].Value = literal(f.DefaultValue)
		}
		b.argumentDefinitions(fid, f.Arguments)
		b.directives(fid, f.Directives)
	}
	for _, ev := range d.EnumValues {
		eid := b.add(id, KindEnumValue, ev.Name, "", ev.Position)
		b.directives(eid, ev.Directives)
	}
}

func (b *Builder) argumentDefinitions(parent NodeID, args language.ArgumentDefinitionList) {
	for _, a := range args {
		value := typeString(a.Type)
		if a.DefaultValue != nil {
			value = literal(a.DefaultValue)
		}
		id := b.add(parent, KindInputValue, a.Name, value, a.Position)
		b.directives(id, a.Directives)
	}
}

func (b *Builder) variableDefinitions(parent NodeID, defs []*language.VariableDefinition) {
	for _, v := range defs {
		id := b.add(parent, KindVariable, v.Variable, literal(v.DefaultValue), v.Position)
		b.directives(id, v.Directives)
	}
}

func (b *Builder) directives(parent NodeID, list language.DirectiveList) {
	for _, d := range list {
		id := b.add(parent, KindDirective, d.Name, "", d.Position)
		b.arguments(id, d.Arguments)
	}
}

func (b *Builder) arguments(parent NodeID, list language.ArgumentList) {
	for _, a := range list {
		id := b.add(parent, KindArgument, a.Name, literal(a.Value), a.Position)
		b.variableUses(id, a.Value)
	}
}

// variableUses adds a variable node for every variable referenced by v.
func (b *Builder) variableUses(parent NodeID, v *language.Value) {
	if v == nil {
		return
	}
	if v.Kind == language.Variable {
		b.add(parent, KindVariable, v.Raw, "", v.Position)
		return
	}
	for _, c := range v.Children {
		b.variableUses(parent, c.Value)
	}
}

func (b *Builder) selections(parent NodeID, set language.SelectionSet) {
	for _, sel := range set {
		switch s := sel.(type) {
		case *language.Field:
			id := b.add(parent, KindField, s.Name, "", s.Position)
			if s.Alias != "" && s.Alias != s.Name {
				b.t.nodes[id].Alias = s.Alias
			}
			b.arguments(id, s.Arguments)
			b.directives(id, s.Directives)
			b.selections(id, s.SelectionSet)
		case *language.FragmentSpread:
			id := b.add(parent, KindFragmentSpread, s.Name, "", s.Position)
			b.directives(id, s.Directives)
		case *language.InlineFragment:
			id := b.add(parent, KindInlineFragment, s.TypeCondition, s.TypeCondition, s.Position)
			b.directives(id, s.Directives)
			b.selections(id, s.SelectionSet)
		}
	}
}

func (b *Builder) add(parent NodeID, kind Kind, name, value string, pos *language.Position) NodeID {
	p := &b.t.nodes[parent]
	n := Node{
		Kind:   kind,
		Name:   name,
		Value:  value,
		Parent: parent,
		Ref:    None,
		Offset: p.Offset,
		Line:   p.Line,
		Column: p.Column,
	}
	if p.Kind != KindDocument && !p.Kind.IsDefinition() {
		n.Depth = p.Depth + 1
	}
	if pos != nil {
		n.Offset = b.base.Offset + pos.Start
		n.Line = b.base.Line + pos.Line - 1
		n.Column = pos.Column
		if pos.Line == 1 {
			n.Column += b.base.Column - 1
		}
	}
	id := NodeID(len(b.t.nodes))
	b.t.nodes = append(b.t.nodes, n)
	b.t.nodes[parent].Children = append(b.t.nodes[parent].Children, id)
	return id
}

func literal(v *language.Value) string {
	if v == nil {
		return ""
	}
	switch v.Kind {
	case language.Variable:
		return "$" + v.Raw
	case language.IntValue, language.FloatValue, language.StringValue,
		language.BlockValue, language.BooleanValue, language.EnumValue:
		return v.Raw
	case language.NullValue:
		return "null"
	}
	return v.String()
}

func typeString(t *language.Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}
