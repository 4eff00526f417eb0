// Package tree stores parsed GraphQL definitions as an arena of nodes.
//
// Nodes reference each other by NodeID only. Parent links exist for path
// reconstruction and fragment spreads point at their definition through Ref,
// so cyclic fragment graphs never form owning pointer cycles. A Tree is
// immutable once built and may be shared between goroutines.
package tree

import (
	"fmt"
	"sort"
	"strings"
)

// NodeID indexes a node inside its Tree.
type NodeID int32

// None is the NodeID of a missing node.
const None NodeID = -1

// Kind classifies a node.
type Kind uint8

const (
	KindDocument Kind = iota
	KindOperation
	KindFragment
	KindField
	KindArgument
	KindVariable
	KindDirective
	KindFragmentSpread
	KindInlineFragment
	KindSchema
	KindType
	KindFieldDefinition
	KindInputValue
	KindEnumValue
	KindDirectiveDefinition
)

var kindNames = [...]string{
	"document", "operation", "fragment", "field", "argument", "variable",
	"directive", "fragment_spread", "inline_fragment", "schema", "type",
	"field_definition", "input_value", "enum_value", "directive_definition",
}

// kindTags are the values a `[type=...]` predicate compares against.
var kindTags = [...]string{
	"doc", "op", "frag", "fld", "arg", "var",
	"direc", "spread", "infrag", "schema", "type",
	"fld", "arg", "enum", "direc",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Tag is the short type tag of the kind.
func (k Kind) Tag() string {
	if int(k) < len(kindTags) {
		return kindTags[k]
	}
	return ""
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("tree: unknown node kind %q", b)
}

// IsDefinition reports whether nodes of this kind are top-level definitions.
func (k Kind) IsDefinition() bool {
	switch k {
	case KindOperation, KindFragment, KindSchema, KindType, KindDirectiveDefinition:
		return true
	}
	return false
}

// Node is one element of the arena.
type Node struct {
	Kind  Kind
	Name  string
	Alias string
	// Value holds the literal of arguments and variable defaults, the
	// operation keyword of operations, the definition keyword of type-system
	// definitions and the type condition of fragments.
	Value    string
	Parent   NodeID
	Ref      NodeID
	Children []NodeID
	// Depth counts non-definition ancestors.
	Depth int
	// Offset is the absolute rune offset of the node in its document.
	Offset int
	Line   int
	Column int
}

// Tree is an arena of nodes rooted at a document node with id 0.
type Tree struct {
	nodes     []Node
	fragments map[string]NodeID
}

func newTree() *Tree {
	return &Tree{
		nodes:     []Node{{Kind: KindDocument, Parent: None, Ref: None, Line: 1, Column: 1}},
		fragments: map[string]NodeID{},
	}
}

// Root returns the document node.
func (t *Tree) Root() NodeID { return 0 }

// Len returns the number of nodes, the document node included.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node with the given id.
func (t *Tree) Node(id NodeID) *Node { return &t.nodes[id] }

// Definitions returns the top-level definitions in document order.
func (t *Tree) Definitions() []NodeID { return t.nodes[0].Children }

// Children returns the direct children of id.
func (t *Tree) Children(id NodeID) []NodeID { return t.nodes[id].Children }

// Fragment returns the definition of the named fragment.
func (t *Tree) Fragment(name string) (NodeID, bool) {
	id, ok := t.fragments[name]
	return id, ok
}

// Path reconstructs the slash separated path from the enclosing definition
// down to id. Unnamed definitions render as their keyword.
func (t *Tree) Path(id NodeID) string {
	var parts []string
	for cur := id; cur > 0; cur = t.nodes[cur].Parent {
		parts = append(parts, t.label(cur))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

func (t *Tree) label(id NodeID) string {
	n := &t.nodes[id]
	switch n.Kind {
	case KindOperation, KindSchema, KindType:
		if n.Name == "" {
			return n.Value
		}
		return n.Name
	case KindFragmentSpread:
		return "..." + n.Name
	case KindInlineFragment:
		return "... on " + n.Name
	case KindDirective, KindDirectiveDefinition:
		return "@" + n.Name
	case KindVariable:
		return "$" + n.Name
	case KindField:
		if n.Alias != "" {
			return n.Alias + ":" + n.Name
		}
	}
	return n.Name
}

// Attr resolves a predicate attribute of id: type, name, alias and value
// are read from the node itself, any other key from the literal of the
// node's argument of that name.
func (t *Tree) Attr(id NodeID, key string) (string, bool) {
	n := &t.nodes[id]
	switch key {
	case "type":
		return n.Kind.Tag(), true
	case "name":
		return n.Name, n.Name != ""
	case "alias":
		return n.Alias, n.Alias != ""
	case "value":
		return n.Value, n.Value != ""
	}
	for _, c := range n.Children {
		cn := &t.nodes[c]
		if (cn.Kind == KindArgument || cn.Kind == KindInputValue) && cn.Name == key {
			return cn.Value, true
		}
	}
	return "", false
}

// seal orders definitions by offset and links fragment spreads to the first
// fragment definition of their name.
func (t *Tree) seal() *Tree {
	defs := t.nodes[0].Children
	sort.SliceStable(defs, func(i, j int) bool {
		return t.nodes[defs[i]].Offset < t.nodes[defs[j]].Offset
	})
	t.fragments = map[string]NodeID{}
	for _, d := range defs {
		n := &t.nodes[d]
		if n.Kind != KindFragment {
			continue
		}
		if _, dup := t.fragments[n.Name]; !dup {
			t.fragments[n.Name] = d
		}
	}
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.Kind != KindFragmentSpread {
			continue
		}
		n.Ref = None
		if f, ok := t.fragments[n.Name]; ok {
			n.Ref = f
		}
	}
	return t
}

// Merge combines sealed trees into a new tree holding copies of all their
// definitions. The inputs are not modified.
func Merge(parts ...*Tree) *Tree {
	out := newTree()
	total := 1
	for _, p := range parts {
		total += p.Len() - 1
	}
	out.nodes = append(make([]Node, 0, total), out.nodes[0])
	for _, p := range parts {
		shift := NodeID(len(out.nodes) - 1)
		remap := func(id NodeID) NodeID {
			if id <= 0 {
				return id
			}
			return id + shift
		}
		for i := 1; i < len(p.nodes); i++ {
			n := p.nodes[i]
			n.Parent = remap(n.Parent)
			n.Ref = None
			children := make([]NodeID, len(n.Children))
			for j, c := range n.Children {
				children[j] = remap(c)
			}
			n.Children = children
			out.nodes = append(out.nodes, n)
		}
		for _, d := range p.nodes[0].Children {
			out.nodes[0].Children = append(out.nodes[0].Children, remap(d))
		}
	}
	return out.seal()
}
