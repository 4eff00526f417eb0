package language

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	doc, err := ParseQuery("q.graphql", "query Q { a }\nfragment F on T { b }")
	require.NoError(t, err)
	require.Len(t, doc.Operations, 1)
	require.Len(t, doc.Fragments, 1)
	require.Equal(t, 2, doc.Fragments[0].Position.Line)

	_, err = ParseQuery("q.graphql", "query Q { a(x: ) }")
	require.True(t, errors.Is(err, ErrSyntax))
}

func TestParseSchema(t *testing.T) {
	doc, err := ParseSchema("s.graphql", "type A { a: Int }\nextend type A { b: Int }\nenum E { X }")
	require.NoError(t, err)
	require.Len(t, doc.Definitions, 2)
	require.Len(t, doc.Extensions, 1)

	_, err = ParseSchema("s.graphql", "type A {")
	require.True(t, errors.Is(err, ErrSyntax))
}

func TestDefinitionKeyword(t *testing.T) {
	cases := map[DefinitionKind]string{
		Object:      "type",
		Interface:   "interface",
		Union:       "union",
		Scalar:      "scalar",
		Enum:        "enum",
		InputObject: "input",
	}
	for kind, want := range cases {
		require.Equal(t, want, DefinitionKeyword(kind))
	}
}
